package search

import "sort"

const maxTagFacets = 20

// TagCount is one tag facet bucket.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Facets breaks a result set down by type and tag.
type Facets struct {
	Types map[Type]int `json:"types"`
	Tags  []TagCount   `json:"tags"`
}

// filter keeps hits whose type is in types (when given) and that carry at
// least one of tags (when given). Tag comparison is case-insensitive.
func filter(hits []Hit, types []Type, tags []string) []Hit {
	if len(types) == 0 && len(tags) == 0 {
		return hits
	}
	typeSet := make(map[Type]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}
	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[fold(t)] = struct{}{}
	}

	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if len(typeSet) > 0 {
			if _, ok := typeSet[h.Entry.Type]; !ok {
				continue
			}
		}
		if len(tagSet) > 0 && !hasAnyTag(h.Entry.Tags, tagSet) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func hasAnyTag(tags []string, want map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := want[fold(t)]; ok {
			return true
		}
	}
	return false
}

// computeFacets counts hits per type and per tag. Tags are grouped
// case-insensitively under the first spelling seen, sorted by count then
// name, and capped.
func computeFacets(hits []Hit) Facets {
	f := Facets{
		Types: make(map[Type]int),
		Tags:  make([]TagCount, 0),
	}
	index := make(map[string]int)
	for _, h := range hits {
		f.Types[h.Entry.Type]++
		seen := make(map[string]struct{}, len(h.Entry.Tags))
		for _, tag := range h.Entry.Tags {
			key := fold(tag)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if i, ok := index[key]; ok {
				f.Tags[i].Count++
				continue
			}
			index[key] = len(f.Tags)
			f.Tags = append(f.Tags, TagCount{Tag: tag, Count: 1})
		}
	}
	sort.SliceStable(f.Tags, func(i, j int) bool {
		if f.Tags[i].Count != f.Tags[j].Count {
			return f.Tags[i].Count > f.Tags[j].Count
		}
		return f.Tags[i].Tag < f.Tags[j].Tag
	})
	if len(f.Tags) > maxTagFacets {
		f.Tags = f.Tags[:maxTagFacets]
	}
	return f
}
