package event

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// NormalizeName returns the canonical form of a stream or trigger name.
//
// The name is NFC normalised, lower-cased, trimmed, and every run of
// whitespace, underscores or slashes collapses to a single '-'.
// Returns "" if nothing but separators remain.
func NormalizeName(name string) string {
	s := lower.String(norm.NFC.String(strings.TrimSpace(name)))

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == '_' || r == '/' || r == '-' {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('-')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
