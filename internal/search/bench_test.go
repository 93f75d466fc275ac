package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/content"
)

func syntheticEntries(n int) []Entry {
	topics := []string{"machine learning", "distributed systems", "robotics", "compilers", "security"}
	entries := make([]Entry, n)
	for i := range entries {
		topic := topics[i%len(topics)]
		title := fmt.Sprintf("Project %d on %s", i, topic)
		summary := fmt.Sprintf("Work in %s with partners from group %d", topic, i%17)
		entries[i] = Entry{
			ID:             fmt.Sprintf("r%d", i),
			Type:           TypeResearch,
			Title:          title,
			Summary:        summary,
			Tags:           []string{topic, fmt.Sprintf("group-%d", i%17)},
			URL:            fmt.Sprintf("/research/r%d", i),
			SearchableText: fold(title + " " + summary + " " + topic),
		}
	}
	return entries
}

// BenchmarkSanitizeQuery measures query cleaning for inputs of varying
// length.
func BenchmarkSanitizeQuery(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"simple", "robotics"},
		{"phrase", "distributed systems seminar"},
		{"punctuated", "<b>machine</b> learning!!! (2026)"},
		{"long", "graduate research machine learning robotics distributed systems compilers security datasets software"},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = SanitizeQuery(q.query)
			}
		})
	}
}

// BenchmarkRank measures scoring and sorting for different index sizes.
func BenchmarkRank(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		entries := syntheticEntries(n)
		b.Run(fmt.Sprintf("entries_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = Rank(entries, "machine learning")
			}
		})
	}
}

// BenchmarkSearch measures a full cached search: rank, filter, facets and
// pagination.
func BenchmarkSearch(b *testing.B) {
	cache := &memCache{entries: syntheticEntries(5000)}
	svc := NewService(&fakeSource{}, cache, DefaultOptions(), nil)
	ctx := context.Background()
	q := Query{Text: "robotics", Tags: []string{"group-3"}, Page: 2, Limit: 10}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Search(ctx, q); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSuggest measures prefix suggestions over the whole index.
func BenchmarkSuggest(b *testing.B) {
	entries := syntheticEntries(5000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = suggest(entries, "proj", 10)
	}
}

// BenchmarkBuild measures turning loaded content into index entries.
func BenchmarkBuild(b *testing.B) {
	src := &fakeSource{}
	for i := 0; i < 500; i++ {
		src.faculty = append(src.faculty, content.Faculty{
			ID:            fmt.Sprintf("f%d", i),
			Name:          fmt.Sprintf("Member %d", i),
			Title:         "Lecturer",
			ResearchAreas: []string{"Robotics"},
		})
		src.software = append(src.software, content.Software{
			ID:          fmt.Sprintf("s%d", i),
			Name:        fmt.Sprintf("tool-%d", i),
			Description: "A research tool",
			Repository:  "https://git.example.edu/tool",
		})
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Build(ctx, src, nil)
	}
}
