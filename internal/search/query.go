package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/errors"
)

// allowedPunct is the punctuation kept by SanitizeQuery.
const allowedPunct = "-_.'&+"

// SanitizeQuery keeps letters, digits and a small set of punctuation,
// turns everything else into spaces, and collapses whitespace. It is an
// allow-list filter, not a parser.
func SanitizeQuery(raw string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case strings.ContainsRune(allowedPunct, r):
			return r
		default:
			return ' '
		}
	}, raw)
	return strings.Join(strings.Fields(mapped), " ")
}

// Query is a parsed search request.
type Query struct {
	Text  string
	Types []Type
	Tags  []string
	Page  int
	Limit int
}

// validateText sanitizes raw and enforces the length bounds, returning the
// sanitized text.
func validateText(raw string, minLen, maxLen int) (string, error) {
	q := SanitizeQuery(raw)
	n := utf8.RuneCountInString(q)
	if n < minLen {
		return "", apperrors.Invalid("Search query must be at least %d characters", minLen)
	}
	if n > maxLen {
		return "", apperrors.Invalid("Search query must be at most %d characters", maxLen)
	}
	return q, nil
}

// keywords splits a folded query into distinct words of two or more runes.
func keywords(folded string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.Fields(folded) {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
