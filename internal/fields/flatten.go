package fields

import (
	"strings"
)

// Flatten converts nested payload objects into a single-level map with
// dot-joined keys. Arrays are not descended into; their values are kept
// as-is under the parent key.
func Flatten(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	flattenInto(out, "", payload)
	return out
}

func flattenInto(out map[string]any, prefix string, value map[string]any) {
	for key, val := range value {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenInto(out, full, nested)
			continue
		}
		out[full] = val
	}
}

// NormalizeKey lowers a key and strips every separator and punctuation
// character, so "PCN - Call Outcome", "pcn_call_outcome" and
// "pcnCallOutcome" all collapse to the same lookup token.
func NormalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.ToLower(key) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// leafSegment returns the last dot segment of a flattened key.
func leafSegment(key string) string {
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		return key[idx+1:]
	}
	return key
}
