package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/tracing"
	"golang.org/x/sync/singleflight"
)

const buildKey = "index"

// Cache holds the built index between requests.
type Cache interface {
	Get(ctx context.Context) ([]Entry, bool)
	Set(ctx context.Context, entries []Entry, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// Options bounds query length, page sizes and the index lifetime.
type Options struct {
	CacheTTL        time.Duration
	DefaultLimit    int
	MaxLimit        int
	MinQueryLength  int
	MaxQueryLength  int
	SuggestionLimit int
	MaxSuggestions  int
}

// DefaultOptions returns the stock search settings.
func DefaultOptions() Options {
	return Options{
		CacheTTL:        5 * time.Minute,
		DefaultLimit:    10,
		MaxLimit:        50,
		MinQueryLength:  2,
		MaxQueryLength:  100,
		SuggestionLimit: 5,
		MaxSuggestions:  10,
	}
}

// Result is one page of ranked, filtered hits.
type Result struct {
	Query      string     `json:"query"`
	Items      []Hit      `json:"items"`
	Pagination Pagination `json:"pagination"`
	Facets     Facets     `json:"facets"`
	CacheHit   bool       `json:"-"`
}

// Service answers search and suggestion queries over the cached index.
type Service struct {
	source  Source
	cache   Cache
	opts    Options
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewService wires a Service. A nil m gets a private metrics registry.
func NewService(src Source, cache Cache, opts Options, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Service{
		source:  src,
		cache:   cache,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "search"),
	}
}

// Options returns the settings the service was built with.
func (s *Service) Options() Options { return s.opts }

// Entries returns the current index, building and caching it on a miss.
// Concurrent misses share one build. The build is detached from ctx so a
// cancelled request cannot leave an empty index in the cache.
func (s *Service) Entries(ctx context.Context) ([]Entry, bool) {
	if entries, ok := s.cache.Get(ctx); ok {
		s.hits.Add(1)
		s.metrics.IndexCacheHits.Inc()
		return entries, true
	}
	s.misses.Add(1)
	s.metrics.IndexCacheMisses.Inc()

	bctx := context.WithoutCancel(ctx)
	v, _, _ := s.group.Do(buildKey, func() (any, error) {
		if entries, ok := s.cache.Get(bctx); ok {
			return entries, nil
		}
		start := time.Now()
		entries := Build(bctx, s.source, s.logger)
		if err := s.cache.Set(bctx, entries, s.opts.CacheTTL); err != nil {
			s.metrics.IndexBuildsTotal.WithLabelValues("uncached").Inc()
			s.logger.Error("storing search index failed", "error", err)
		} else {
			s.metrics.IndexBuildsTotal.WithLabelValues("ok").Inc()
		}
		s.recordSizes(entries)
		s.logger.Info("search index built",
			"entries", len(entries),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return entries, nil
	})
	return v.([]Entry), false
}

func (s *Service) recordSizes(entries []Entry) {
	counts := make(map[Type]int, len(Types))
	for _, e := range entries {
		counts[e.Type]++
	}
	for _, t := range Types {
		s.metrics.IndexEntries.WithLabelValues(string(t)).Set(float64(counts[t]))
	}
}

// Invalidate drops the cached index; the next query rebuilds it.
func (s *Service) Invalidate(ctx context.Context) error {
	s.group.Forget(buildKey)
	if err := s.cache.Invalidate(ctx); err != nil {
		return err
	}
	s.logger.Info("search index invalidated")
	return nil
}

// CacheStats reports index cache hits and misses since start.
func (s *Service) CacheStats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Search validates q, ranks the index against it, applies filters and
// returns the requested page together with facets for the filtered set.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	text, err := validateText(q.Text, s.opts.MinQueryLength, s.opts.MaxQueryLength)
	if err != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	limit := s.clampLimit(q.Limit)

	ictx, span := tracing.StartChildSpan(ctx, "search.index")
	entries, cacheHit := s.Entries(ictx)
	span.SetAttr("entries", len(entries))
	span.SetAttr("cache_hit", cacheHit)
	span.End()

	_, span = tracing.StartChildSpan(ctx, "search.rank")
	hits := filter(Rank(entries, text), q.Types, q.Tags)
	span.SetAttr("hits", len(hits))
	span.End()

	_, span = tracing.StartChildSpan(ctx, "search.facets")
	facets := computeFacets(hits)
	span.End()

	from, to, page := Paginate(len(hits), q.Page, limit)
	items := make([]Hit, to-from)
	copy(items, hits[from:to])

	outcome := "ok"
	if len(hits) == 0 {
		outcome = "zero_result"
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	s.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	s.metrics.SearchResultsCount.Observe(float64(len(hits)))

	return &Result{
		Query:      text,
		Items:      items,
		Pagination: page,
		Facets:     facets,
		CacheHit:   cacheHit,
	}, nil
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		return s.opts.MaxLimit
	}
	return limit
}

// Suggest returns distinct titles and tags containing the query, ordered
// by match position, then length, then alphabetically.
func (s *Service) Suggest(ctx context.Context, raw string, limit int) (string, []string, error) {
	text, err := validateText(raw, s.opts.MinQueryLength, s.opts.MaxQueryLength)
	if err != nil {
		return "", nil, err
	}
	switch {
	case limit <= 0:
		limit = s.opts.SuggestionLimit
	case limit > s.opts.MaxSuggestions:
		limit = s.opts.MaxSuggestions
	}
	entries, _ := s.Entries(ctx)
	return text, suggest(entries, text, limit), nil
}

type suggestion struct {
	text   string
	folded string
	pos    int
}

func suggest(entries []Entry, text string, limit int) []string {
	q := fold(text)
	seen := make(map[string]struct{})
	var found []suggestion
	consider := func(candidate string) {
		folded := fold(candidate)
		if _, dup := seen[folded]; dup {
			return
		}
		pos := strings.Index(folded, q)
		if pos < 0 {
			return
		}
		seen[folded] = struct{}{}
		found = append(found, suggestion{
			text:   candidate,
			folded: folded,
			pos:    utf8.RuneCountInString(folded[:pos]),
		})
	}
	for _, e := range entries {
		consider(e.Title)
		for _, t := range e.Tags {
			consider(t)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.pos != b.pos {
			return a.pos < b.pos
		}
		la, lb := utf8.RuneCountInString(a.text), utf8.RuneCountInString(b.text)
		if la != lb {
			return la < lb
		}
		return a.folded < b.folded
	})
	if len(found) > limit {
		found = found[:limit]
	}
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.text
	}
	return out
}
