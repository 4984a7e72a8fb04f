// Package slug normalizes free-form labels into catalogue codes.
package slug

import (
	"regexp"
	"strings"
)

const maxLen = 40

var reSlug = regexp.MustCompile(`^[a-z0-9_]{2,40}$`)

// IsSlug reports whether s is already a code: ^[a-z0-9_]{2,40}$.
func IsSlug(s string) bool {
	return reSlug.MatchString(s)
}

// Slugify lowercases s, turns every run of other characters into one '_',
// cuts the result at 40 characters and trims '_' from both ends.
// "Credit Card" becomes "credit_card".
func Slugify(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if b.Len() >= maxLen {
			break
		}
		word := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !word {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
			if b.Len() >= maxLen {
				break
			}
		}
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), "_")
}
