package audit

import "strings"

const (
	maskPrefixLen = 4
	maskChar      = "*"
)

// MaskIdentifier hides all but the first four characters of an
// identifier, preserving its length. Raw identifiers must never reach
// the audit sink unmasked.
func MaskIdentifier(id string) string {
	if id == "" {
		return ""
	}
	if len(id) <= maskPrefixLen {
		return strings.Repeat(maskChar, len(id))
	}
	return id[:maskPrefixLen] + strings.Repeat(maskChar, len(id)-maskPrefixLen)
}
