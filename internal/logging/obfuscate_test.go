package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObfuscatePayloadRedactsKeysKeepingLastFour(t *testing.T) {
	in := `{"path":"/e/A","data":{"envID":"c1","sdkKey":"sdk-1234567890abcd","mobKey":"mob-abcdefgh1234"}}`
	out := ObfuscatePayload(in)

	assert.NotContains(t, out, "sdk-1234567890abcd")
	assert.NotContains(t, out, "mob-abcdefgh1234")
	assert.Contains(t, out, `"sdkKey":"...abcd"`)
	assert.Contains(t, out, `"mobKey":"...1234"`)
	assert.Contains(t, out, `"envID":"c1"`)
}

func TestObfuscatePayloadLeavesNonMatchingTextUntouched(t *testing.T) {
	in := `{"path":"/","data":{"environments":{}}}`
	assert.Equal(t, in, ObfuscatePayload(in))
}
