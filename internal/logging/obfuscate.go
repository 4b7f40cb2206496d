package logging

import "regexp"

// These match the sdkKey/mobKey JSON values this client's wire format
// actually uses (spec.md 6), the same obfuscation technique the reference
// stream manager applies to its own debug logging, adapted to this
// format's field names.
var (
	sdkKeyJSONRegex = regexp.MustCompile(`"sdkKey": *"[^"]*([^"][^"][^"][^"])"`)
	mobKeyJSONRegex = regexp.MustCompile(`"mobKey": *"[^"]*([^"][^"][^"][^"])"`)
)

// ObfuscatePayload redacts sdkKey/mobKey values in a raw JSON event payload
// down to their last four characters, for safe inclusion in debug logs.
func ObfuscatePayload(data string) string {
	data = sdkKeyJSONRegex.ReplaceAllString(data, `"sdkKey":"...$1"`)
	data = mobKeyJSONRegex.ReplaceAllString(data, `"mobKey":"...$1"`)
	return data
}
