package sse

import (
	"bytes"
	"unicode/utf8"
)

// Decoder turns a byte stream into a sequence of Frame values. It is
// restartable across Write calls: partial lines and partial events are
// retained internally, so feeding the same byte stream through any
// chunking produces the same sequence of frames as feeding it in one
// piece.
//
// A Decoder is not safe for concurrent use; callers must serialize Write
// and Next calls, the same single-writer discipline the rest of this
// module follows.
type Decoder struct {
	maxEventSize int // 0 means unbounded

	buf []byte // bytes not yet resolved into a complete line

	eventName   string
	dataBuf     bytes.Buffer
	haveData    bool
	lastEventID string

	pendingSize int // data + id + name bytes accumulated for the in-progress event

	frames []Frame
}

// NewDecoder creates a Decoder. maxEventSize bounds the sum of accumulated
// data/id/name bytes for a single in-progress event; 0 means unbounded.
func NewDecoder(maxEventSize int) *Decoder {
	return &Decoder{maxEventSize: maxEventSize}
}

// Write feeds additional bytes into the decoder, parsing as many complete
// lines as are available and queuing any frames they produce. The returned
// n is always len(p); a non-nil error means a line could not be parsed, and
// no further progress is made on the remaining unparsed bytes in p. Frames
// queued before the error are still available from Next.
func (d *Decoder) Write(p []byte) (n int, err error) {
	d.buf = append(d.buf, p...)
	for {
		line, rest, ok := cutLine(d.buf)
		if !ok {
			break
		}
		d.buf = rest
		if err := d.processLine(line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Next pops the oldest queued frame, if any.
func (d *Decoder) Next() (Frame, bool) {
	if len(d.frames) == 0 {
		return nil, false
	}
	f := d.frames[0]
	d.frames = d.frames[1:]
	return f, true
}

// Reset discards all buffered partial state, including the retained last
// event ID. Callers reset the Decoder whenever the underlying connection is
// re-established, since SSE's last-event-ID semantics don't span a fresh
// connection in this client (it always performs a full resync via a new
// "put").
func (d *Decoder) Reset() {
	d.buf = nil
	d.eventName = ""
	d.dataBuf.Reset()
	d.haveData = false
	d.lastEventID = ""
	d.pendingSize = 0
	d.frames = nil
}

// cutLine finds the first line terminator (\n, \r\n, or \r) in buf and
// returns the line content (without the terminator), the remaining bytes,
// and whether a complete line was found. A trailing lone \r at the very end
// of buf is ambiguous (it might be the start of a \r\n split across Write
// calls) so it is held back until more bytes arrive.
func cutLine(buf []byte) (line []byte, rest []byte, ok bool) {
	for i := 0; i < len(buf); i++ {
		switch buf[i] {
		case '\n':
			return buf[:i], buf[i+1:], true
		case '\r':
			if i+1 < len(buf) {
				if buf[i+1] == '\n' {
					return buf[:i], buf[i+2:], true
				}
				return buf[:i], buf[i+1:], true
			}
			// Ambiguous: wait for the next Write to see whether \n follows.
			return nil, buf, false
		}
	}
	return nil, buf, false
}

func (d *Decoder) processLine(line []byte) error {
	if len(line) == 0 {
		d.dispatch()
		return nil
	}
	if line[0] == ':' {
		d.frames = append(d.frames, Comment{Text: string(line[1:])})
		return nil
	}

	field, value := splitField(line)

	switch string(field) {
	case "event":
		if !utf8.Valid(value) {
			return &Utf8Error{Field: "event"}
		}
		if err := d.checkSize(len(value) - len(d.eventName)); err != nil {
			return err
		}
		d.eventName = string(value)
	case "data":
		if err := d.appendData(value); err != nil {
			return err
		}
	case "id":
		if bytes.IndexByte(value, 0) >= 0 {
			// An id containing a NUL byte is ignored entirely: not emitted,
			// not retained, and the previously retained ID (if any) is left
			// untouched.
			return nil
		}
		if !utf8.Valid(value) {
			return &Utf8Error{Field: "id"}
		}
		if err := d.checkSize(len(value) - len(d.lastEventID)); err != nil {
			return err
		}
		d.lastEventID = string(value)
	case "retry":
		ms, ok := parseNonNegativeInt(value)
		if !ok {
			// Invalid retry values are ignored, not treated as a parse
			// error; the field simply has no effect.
			return nil
		}
		d.frames = append(d.frames, Retry{MillisDelay: ms})
	default:
		// Unrecognized fields are ignored per the SSE field-name contract.
	}
	return nil
}

func (d *Decoder) appendData(value []byte) error {
	add := len(value)
	if d.haveData {
		add++ // joining newline
	}
	if err := d.checkSize(add); err != nil {
		return err
	}
	if d.haveData {
		d.dataBuf.WriteByte('\n')
	}
	d.dataBuf.Write(value)
	d.haveData = true
	return nil
}

func (d *Decoder) checkSize(delta int) error {
	if d.maxEventSize <= 0 {
		return nil
	}
	if d.pendingSize+delta > d.maxEventSize {
		return &ExceededSizeLimitError{Limit: d.maxEventSize}
	}
	d.pendingSize += delta
	return nil
}

func (d *Decoder) dispatch() {
	if d.haveData {
		d.frames = append(d.frames, Event{
			ID:   d.lastEventID,
			Name: d.eventName,
			Data: append([]byte(nil), d.dataBuf.Bytes()...),
		})
	}
	d.eventName = ""
	d.dataBuf.Reset()
	d.haveData = false
	d.pendingSize = len(d.lastEventID)
}

// splitField splits a field line on the first colon, stripping a single
// leading space from the value. A line with no colon is the field name with
// an empty value.
func splitField(line []byte) (field, value []byte) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return line, nil
	}
	field = line[:idx]
	value = line[idx+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}

// parseNonNegativeInt parses an ASCII non-negative decimal integer with no
// sign and no leading/trailing whitespace, the strict subset spec.md
// requires for retry: values.
func parseNonNegativeInt(value []byte) (int, bool) {
	if len(value) == 0 {
		return 0, false
	}
	n := 0
	for _, b := range value {
		if b < '0' || b > '9' {
			return 0, false
		}
		n = n*10 + int(b-'0')
	}
	return n, true
}
