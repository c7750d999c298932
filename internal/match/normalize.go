// Package match normalizes and compares registry responses against
// caller-submitted record fields. All functions are pure: identical
// inputs always produce identical outputs.
package match

import (
	"regexp"
	"strings"
	"time"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonDigitRe   = regexp.MustCompile(`\D`)

	// Legal-form suffixes folded away when comparing company names.
	companySuffixRe = regexp.MustCompile(`\b(limited|ltd|plc|llc|inc|incorporated)\.?$`)

	rcPrefixRe = regexp.MustCompile(`(?i)^(rc|bn|it)[\s-]*`)
)

// NormalizeString lowercases, trims, and collapses internal whitespace.
func NormalizeString(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// NormalizeGender maps the registry and caller vocabularies onto
// "male"/"female". Unknown values normalize to the empty string.
func NormalizeGender(s string) string {
	switch NormalizeString(s) {
	case "m", "male":
		return "male"
	case "f", "female":
		return "female"
	default:
		return ""
	}
}

// Layouts observed across registry responses and caller submissions.
// Non-padded layout digits also accept zero-padded input.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2/1/2006",
	"2-Jan-2006",
}

// NormalizeDate parses the accepted date formats into canonical
// YYYY-MM-DD. Unparseable input yields the empty string, never an error:
// a garbled date is a mismatch, not a failure.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// NormalizePhone strips all non-digits and collapses a leading 234
// country code to the local 0 prefix.
func NormalizePhone(s string) string {
	digits := nonDigitRe.ReplaceAllString(s, "")
	if strings.HasPrefix(digits, "234") && len(digits) > 3 {
		return "0" + digits[3:]
	}
	return digits
}

// NormalizeCompanyName folds case, whitespace, punctuation, and a
// trailing legal-form suffix so that "ACME Holdings Ltd." and
// "acme holdings LIMITED" compare equal.
func NormalizeCompanyName(s string) string {
	s = NormalizeString(s)
	s = strings.NewReplacer(",", " ", ".", " ").Replace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = companySuffixRe.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.TrimSpace(s)
}

// NormalizeRCNumber strips a registration-class prefix (RC/BN/IT) and
// any separators, leaving the bare digit string.
func NormalizeRCNumber(s string) string {
	s = rcPrefixRe.ReplaceAllString(strings.TrimSpace(s), "")
	return nonDigitRe.ReplaceAllString(s, "")
}
