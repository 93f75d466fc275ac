// Package handler exposes the search service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/search"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/apikey"
	apperrors "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/response"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/tracing"
)

// Searcher is the part of *search.Service the handlers use.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
	Suggest(ctx context.Context, raw string, limit int) (string, []string, error)
	Invalidate(ctx context.Context) error
	CacheStats() (hits, misses int64)
}

// Tracker receives search analytics. *analytics.Collector implements it.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

type Handler struct {
	searcher Searcher
	tracker  Tracker
	logger   *slog.Logger
}

// New builds the search handlers. tracker may be nil.
func New(searcher Searcher, tracker Tracker) *Handler {
	return &Handler{
		searcher: searcher,
		tracker:  tracker,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// SuggestionsResponse is the data payload of the suggestions endpoint.
type SuggestionsResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

// Search serves GET /api/search?q=&types=&tags=&page=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params := r.URL.Query()

	q, err := parseQuery(params.Get("q"), params.Get("types"), params.Get("tags"), params.Get("page"), params.Get("limit"))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), "search", logger.RequestID(r.Context()))
	result, err := h.searcher.Search(ctx, q)
	if err != nil {
		span.End()
		response.Error(w, r, err)
		return
	}
	span.SetAttr("total", result.Pagination.Total)
	span.SetAttr("returned", len(result.Items))
	span.End()
	span.Log(logger.FromContext(ctx))

	latency := time.Since(start).Milliseconds()
	logger.FromContext(ctx).Info("search completed",
		"query", result.Query,
		"total_hits", result.Pagination.Total,
		"returned", len(result.Items),
		"cache_hit", result.CacheHit,
		"latency_ms", latency,
	)

	eventType := analytics.EventSearch
	if result.Pagination.Total == 0 {
		eventType = analytics.EventZeroResult
	}
	h.track(ctx, analytics.SearchEvent{
		Type:      eventType,
		Query:     result.Query,
		Types:     typeNames(q.Types),
		Tags:      q.Tags,
		TotalHits: result.Pagination.Total,
		Returned:  len(result.Items),
		LatencyMs: latency,
		CacheHit:  result.CacheHit,
	})

	response.JSON(w, http.StatusOK, result)
}

// Suggestions serves GET /api/search/suggestions?q=&limit=.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params := r.URL.Query()
	limit, err := optionalInt(params.Get("limit"), "limit")
	if err != nil {
		response.Error(w, r, err)
		return
	}
	query, suggestions, err := h.searcher.Suggest(r.Context(), params.Get("q"), limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.track(r.Context(), analytics.SearchEvent{
		Type:      analytics.EventSuggest,
		Query:     query,
		TotalHits: len(suggestions),
		Returned:  len(suggestions),
		LatencyMs: time.Since(start).Milliseconds(),
	})
	response.JSON(w, http.StatusOK, SuggestionsResponse{Query: query, Suggestions: suggestions})
}

// CacheInvalidate serves POST /api/search/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.searcher.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		response.Error(w, r, err)
		return
	}
	by := "unknown"
	if key := apikey.FromContext(r.Context()); key != nil {
		by = key.Name
	}
	logger.FromContext(r.Context()).Info("search cache invalidated", "api_key", by)
	response.JSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// CacheStats serves GET /api/search/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses := h.searcher.CacheStats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": strconv.FormatFloat(hitRate, 'f', 1, 64) + "%",
	})
}

func (h *Handler) track(ctx context.Context, event analytics.SearchEvent) {
	if h.tracker == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = logger.RequestID(ctx)
	h.tracker.Track(event)
}

func parseQuery(text, types, tags, page, limit string) (search.Query, error) {
	q := search.Query{Text: text}
	for _, raw := range splitList(types) {
		t, ok := search.ParseType(raw)
		if !ok {
			return q, apperrors.Invalid("Unknown content type %q", raw)
		}
		q.Types = append(q.Types, t)
	}
	q.Tags = splitList(tags)

	var err error
	if q.Page, err = optionalInt(page, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = optionalInt(limit, "limit"); err != nil {
		return q, err
	}
	return q, nil
}

// optionalInt parses a positive integer parameter; empty means zero so the
// service applies its default.
func optionalInt(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, apperrors.Invalid("%s must be a positive integer", name)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func typeNames(types []search.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
