// Package search flattens the department's content collections into a
// uniform index, ranks entries against sanitized queries by substring and
// keyword matching, and computes facets, pagination and suggestions.
package search

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Type identifies which collection an entry came from.
type Type string

const (
	TypeFaculty     Type = "faculty"
	TypeResearch    Type = "research"
	TypeNews        Type = "news"
	TypeEvent       Type = "event"
	TypePublication Type = "publication"
	TypeDataset     Type = "dataset"
	TypeSoftware    Type = "software"
)

// Types lists every entry type in index order.
var Types = []Type{
	TypeFaculty,
	TypeResearch,
	TypeNews,
	TypeEvent,
	TypePublication,
	TypeDataset,
	TypeSoftware,
}

// ParseType maps a query-string value onto a Type.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Entry is one flattened, searchable content item. Entries are never
// mutated after a build; the whole index is replaced on expiry.
type Entry struct {
	ID             string     `json:"id"`
	Type           Type       `json:"type"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary,omitempty"`
	Tags           []string   `json:"tags"`
	URL            string     `json:"url"`
	Date           *time.Time `json:"date,omitempty"`
	SearchableText string     `json:"searchableText"`
}

// fold case-folds s for case-insensitive comparison. A Caser keeps state,
// so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
