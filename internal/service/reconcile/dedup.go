package reconcile

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// normalizeText folds case, strips punctuation and collapses whitespace so
// that "Yes." and "yes" compare equal.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// sameUtterance reports whether candidate repeats existing. Both arguments
// are normalized. A fuzzy match only counts when the candidate does not add
// words, so an extended final is never swallowed by its shorter predecessor.
func sameUtterance(existing, candidate string, threshold float64) bool {
	if existing == candidate {
		return true
	}
	if threshold <= 0 || existing == "" || candidate == "" {
		return false
	}
	if len(strings.Fields(candidate)) > len(strings.Fields(existing)) {
		return false
	}
	return matchr.JaroWinkler(existing, candidate, false) >= threshold
}
