package analytics

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/kafka"
)

const (
	// maxLatencySamples bounds the latency window used for percentiles.
	maxLatencySamples = 10000
	topListSize       = 10
)

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	TotalSuggestions  int64            `json:"total_suggestions"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	TopTags           []QueryCount     `json:"top_tags,omitempty"`
	TypeFilters       map[string]int64 `json:"type_filters,omitempty"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// tally counts normalised strings.
type tally map[string]int64

func (t tally) add(s string) {
	if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
		t[s]++
	}
}

// top returns the n highest counts, ties broken alphabetically.
func (t tally) top(n int) []QueryCount {
	out := make([]QueryCount, 0, len(t))
	for q, c := range t {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	slices.SortFunc(out, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	return out[:min(n, len(out))]
}

// latencyWindow keeps the most recent maxLatencySamples values.
type latencyWindow struct {
	samples []int64
	next    int
}

func (w *latencyWindow) add(ms int64) {
	if len(w.samples) < maxLatencySamples {
		w.samples = append(w.samples, ms)
		return
	}
	w.samples[w.next] = ms
	w.next = (w.next + 1) % maxLatencySamples
}

func (w *latencyWindow) fill(stats *AggregatedStats) {
	if len(w.samples) == 0 {
		return
	}
	sorted := slices.Clone(w.samples)
	slices.Sort(sorted)
	var sum int64
	for _, v := range sorted {
		sum += v
	}
	stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
	stats.P50LatencyMs = percentile(sorted, 50)
	stats.P95LatencyMs = percentile(sorted, 95)
	stats.P99LatencyMs = percentile(sorted, 99)
}

// Aggregator keeps running search statistics in memory.
type Aggregator struct {
	mu               sync.RWMutex
	totalSearches    int64
	totalSuggestions int64
	cacheHits        int64
	cacheMisses      int64
	zeroResults      int64
	latencies        latencyWindow
	queries          tally
	zeroQueries      tally
	tags             tally
	types            tally
	startTime        time.Time
	now              func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		queries:     tally{},
		zeroQueries: tally{},
		tags:        tally{},
		types:       tally{},
		startTime:   time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// payloads are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Publish records a SearchEvent directly, letting the aggregator stand in
// for Kafka when no broker is configured.
func (a *Aggregator) Publish(_ context.Context, event kafka.Event) error {
	switch ev := event.Value.(type) {
	case SearchEvent:
		a.Record(ev)
	case *SearchEvent:
		a.Record(*ev)
	default:
		return fmt.Errorf("unsupported analytics event %T", event.Value)
	}
	return nil
}

// Record folds one event into the running totals.
func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Type == EventSuggest {
		a.totalSuggestions++
		return
	}
	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.latencies.add(event.LatencyMs)
	a.queries.add(event.Query)
	for _, t := range event.Tags {
		a.tags.add(t)
	}
	for _, t := range event.Types {
		a.types.add(t)
	}
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroQueries.add(event.Query)
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:     a.totalSearches,
		TotalSuggestions:  a.totalSuggestions,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		TopQueries:        a.queries.top(topListSize),
		ZeroResultQueries: a.zeroQueries.top(topListSize),
		TopTags:           a.tags.top(topListSize),
	}
	a.latencies.fill(&stats)
	if len(a.types) > 0 {
		stats.TypeFilters = make(map[string]int64, len(a.types))
		for t, c := range a.types {
			stats.TypeFilters[t] = c
		}
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// Restore seeds the running totals from a saved snapshot, typically the
// latest one at startup. Only the top lists survive a snapshot, so query
// counts beyond them start from zero, as does the latency window.
func (a *Aggregator) Restore(stats AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches += stats.TotalSearches
	a.totalSuggestions += stats.TotalSuggestions
	a.cacheHits += stats.CacheHits
	a.cacheMisses += stats.CacheMisses
	a.zeroResults += stats.ZeroResultCount
	for _, qc := range stats.TopQueries {
		a.queries[qc.Query] += qc.Count
	}
	for _, qc := range stats.ZeroResultQueries {
		a.zeroQueries[qc.Query] += qc.Count
	}
	for _, qc := range stats.TopTags {
		a.tags[qc.Query] += qc.Count
	}
	for t, c := range stats.TypeFilters {
		a.types[t] += c
	}
}

// percentile uses the nearest-rank index pct*n/100 on sorted input.
func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[min(pct*len(sorted)/100, len(sorted)-1)]
}
