// Package sanitize strips markup from user-submitted free text before it is
// validated and persisted.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Free-text fields in the catalog never carry markup, so the strict policy
// (drop every element and attribute) is the right one.
var policy = bluemonday.StrictPolicy()

// Clean removes all HTML from s and collapses the surrounding whitespace.
// Deterministic and side-effect free.
func Clean(s string) string {
	cleaned := policy.Sanitize(s)
	// bluemonday escapes the text it keeps; stored text is plain.
	cleaned = html.UnescapeString(cleaned)
	return strings.TrimSpace(cleaned)
}

// CleanField sanitizes s and checks the post-sanitization length against
// [min, max] in runes. It returns the cleaned text and whether it is
// acceptable; empty or whitespace-only input fails any min >= 1.
func CleanField(s string, min, max int) (string, bool) {
	cleaned := Clean(s)
	n := len([]rune(cleaned))
	if n < min || n > max {
		return cleaned, false
	}
	return cleaned, true
}
