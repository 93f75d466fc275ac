package search

import (
	"sort"
	"strings"
)

// Weights for the substring scorer.
const (
	scoreTitleContains = 10
	scoreTitlePrefix   = 5
	scoreTitleExact    = 10
	scoreTagExact      = 8
	scoreTagContains   = 4
	scoreTextContains  = 2
	scoreKeywordTitle  = 3
	scoreKeywordTag    = 2
	scoreKeywordText   = 1
)

// Hit is a ranked entry.
type Hit struct {
	Entry
	Score int `json:"score"`
}

// score rates one entry against a folded query and its keywords. Zero means
// no match.
func score(e Entry, q string, kws []string) int {
	title := fold(e.Title)
	tags := make([]string, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = fold(t)
	}

	s := 0
	if strings.Contains(title, q) {
		s += scoreTitleContains
		if strings.HasPrefix(title, q) {
			s += scoreTitlePrefix
		}
		if title == q {
			s += scoreTitleExact
		}
	}

	tagScore := 0
	for _, t := range tags {
		if t == q {
			tagScore = scoreTagExact
			break
		}
		if strings.Contains(t, q) {
			tagScore = scoreTagContains
		}
	}
	s += tagScore

	if strings.Contains(e.SearchableText, q) {
		s += scoreTextContains
	}

	for _, kw := range kws {
		if strings.Contains(title, kw) {
			s += scoreKeywordTitle
		}
		for _, t := range tags {
			if strings.Contains(t, kw) {
				s += scoreKeywordTag
				break
			}
		}
		if strings.Contains(e.SearchableText, kw) {
			s += scoreKeywordText
		}
	}
	return s
}

// Rank scores entries against the sanitized query text and returns the
// matches ordered by score, then title, then id.
func Rank(entries []Entry, text string) []Hit {
	q := fold(text)
	kws := keywords(q)
	hits := make([]Hit, 0)
	for _, e := range entries {
		if sc := score(e, q, kws); sc > 0 {
			hits = append(hits, Hit{Entry: e, Score: sc})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		ti, tj := fold(hits[i].Entry.Title), fold(hits[j].Entry.Title)
		if ti != tj {
			return ti < tj
		}
		return hits[i].Entry.ID < hits[j].Entry.ID
	})
	return hits
}
