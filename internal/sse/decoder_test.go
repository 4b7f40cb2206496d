package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(d *Decoder) []Frame {
	var out []Frame
	for {
		f, ok := d.Next()
		if !ok {
			return out
		}
		out = append(out, f)
	}
}

func TestBasicEvent(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("event: put\ndata: {\"a\":1}\n\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 1)
	ev, ok := frames[0].(Event)
	require.True(t, ok)
	assert.Equal(t, "put", ev.Name)
	assert.Equal(t, `{"a":1}`, string(ev.Data))
	assert.Equal(t, "", ev.ID)
}

func TestEventWithNoDataIsDropped(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("event: patch\n\n"))
	require.NoError(t, err)
	assert.Empty(t, drain(d))
}

func TestMultipleDataFieldsJoinedWithNewline(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("data: line1\ndata: line2\ndata: line3\n\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 1)
	ev := frames[0].(Event)
	assert.Equal(t, "line1\nline2\nline3", string(ev.Data))
	assert.Equal(t, "", ev.Name) // defaults to empty
}

func TestCommentLine(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte(": heartbeat\n\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 1)
	c, ok := frames[0].(Comment)
	require.True(t, ok)
	assert.Equal(t, " heartbeat", c.Text)
}

func TestBareColonIsComment(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte(":\n\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 1)
	assert.Equal(t, Comment{Text: ""}, frames[0])
}

func TestRetryField(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte(": heartbeat\nretry: 5000\n\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 2)
	assert.Equal(t, Comment{Text: " heartbeat"}, frames[0])
	assert.Equal(t, Retry{MillisDelay: 5000}, frames[1])
}

func TestInvalidRetryIsIgnored(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("retry: not-a-number\ndata: x\n\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 1)
	assert.Equal(t, "x", string(frames[0].(Event).Data))
}

func TestIDPersistsAcrossEventsUntilChanged(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("id: abc\ndata: one\n\ndata: two\n\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 2)
	assert.Equal(t, "abc", frames[0].(Event).ID)
	assert.Equal(t, "abc", frames[1].(Event).ID)
}

func TestIDContainingNULIsIgnored(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("id: abc\ndata: one\n\n"))
	require.NoError(t, err)
	drain(d)
	_, err = d.Write(append([]byte("id: bad"), append([]byte{0}, []byte("\ndata: two\n\n")...)...))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 1)
	assert.Equal(t, "abc", frames[0].(Event).ID) // retained, not overwritten or cleared
}

func TestUnknownFieldIgnored(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("foo: bar\ndata: x\n\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 1)
	assert.Equal(t, "x", string(frames[0].(Event).Data))
}

func TestFieldWithNoColonIsFieldNameWithEmptyValue(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("data\n\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 1)
	assert.Equal(t, "", string(frames[0].(Event).Data))
}

func TestLineEndingVariants(t *testing.T) {
	for _, nl := range []string{"\n", "\r\n", "\r"} {
		input := "data: a" + nl + "data: b" + nl + nl
		d := NewDecoder(0)
		_, err := d.Write([]byte(input))
		require.NoError(t, err, nl)
		frames := drain(d)
		require.Len(t, frames, 1, nl)
		assert.Equal(t, "a\nb", string(frames[0].(Event).Data), nl)
	}
}

// TestChunkingIndependence is property P3: the same byte stream fed in any
// chunking produces the same sequence of frames.
func TestChunkingIndependence(t *testing.T) {
	input := "id: 1\nevent: put\ndata: {\"x\":1}\ndata: more\n\n: hi\nretry: 10\n\nevent: patch\ndata: z\n\n"

	whole := NewDecoder(0)
	_, err := whole.Write([]byte(input))
	require.NoError(t, err)
	expected := drain(whole)

	chunkSizes := []int{1, 2, 3, 7, 16}
	for _, size := range chunkSizes {
		d := NewDecoder(0)
		b := []byte(input)
		for len(b) > 0 {
			n := size
			if n > len(b) {
				n = len(b)
			}
			_, err := d.Write(b[:n])
			require.NoError(t, err)
			b = b[n:]
		}
		got := drain(d)
		assert.Equal(t, expected, got, "chunk size %d", size)
	}
}

func TestCRLFSplitAcrossWrites(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("data: a\r"))
	require.NoError(t, err)
	assert.Empty(t, drain(d), "ambiguous trailing \\r must not resolve early")
	_, err = d.Write([]byte("\ndata: b\r\n\r\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 1)
	assert.Equal(t, "a\nb", string(frames[0].(Event).Data))
}

func TestExceededSizeLimit(t *testing.T) {
	d := NewDecoder(8)
	_, err := d.Write([]byte("data: 0123456789\n\n"))
	require.Error(t, err)
	var sizeErr *ExceededSizeLimitError
	assert.ErrorAs(t, err, &sizeErr)
}

func TestSizeLimitAccountsForIDAndEventName(t *testing.T) {
	d := NewDecoder(10)
	_, err := d.Write([]byte("id: 12345\nevent: abcdef\n\n"))
	require.Error(t, err)
}

func TestResetClearsRetainedID(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("id: abc\ndata: x\n\n"))
	require.NoError(t, err)
	drain(d)
	d.Reset()
	_, err = d.Write([]byte("data: y\n\n"))
	require.NoError(t, err)
	frames := drain(d)
	require.Len(t, frames, 1)
	assert.Equal(t, "", frames[0].(Event).ID)
}
