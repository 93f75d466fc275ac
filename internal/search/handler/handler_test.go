package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/content"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/search"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/search/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const facultyJSON = `[
	{"id":"f1","slug":"ada-lovelace","name":"Ada Lovelace","title":"Professor","email":"ada@example.edu","researchAreas":["Algorithms","Analytical Engines"]},
	{"id":"f2","name":"Grace Hopper","title":"Professor","email":"grace@example.edu","researchAreas":["Compilers"]},
	{"id":"f3","name":"Alan Turing","title":"Reader","email":"alan@example.edu","researchAreas":["Computability","Algorithms"]}
]`

type trackerFunc func(analytics.SearchEvent)

func (f trackerFunc) Track(e analytics.SearchEvent) { f(e) }

func newTestHandler(t *testing.T) (*Handler, *[]analytics.SearchEvent) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, content.CollectionFaculty+".json"), []byte(facultyJSON), 0o644))

	svc := search.NewService(content.NewLoader(dir, time.Second), cache.NewMemory(nil), search.DefaultOptions(), nil)
	var (
		mu     sync.Mutex
		events []analytics.SearchEvent
	)
	h := New(svc, trackerFunc(func(e analytics.SearchEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))
	return h, &events
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestSearchEndpoint(t *testing.T) {
	h, events := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=algorithms&limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	env := decode(t, rec)
	assert.True(t, env.Success)
	var data struct {
		Query      string            `json:"query"`
		Items      []search.Hit      `json:"items"`
		Pagination search.Pagination `json:"pagination"`
		Facets     search.Facets     `json:"facets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "algorithms", data.Query)
	assert.Len(t, data.Items, 1)
	assert.Equal(t, search.Pagination{Page: 1, Limit: 1, Total: 2, TotalPages: 2}, data.Pagination)
	assert.Equal(t, 2, data.Facets.Types[search.TypeFaculty])

	require.Len(t, *events, 1)
	assert.Equal(t, analytics.EventSearch, (*events)[0].Type)
	assert.Equal(t, 2, (*events)[0].TotalHits)
}

func TestSearchEndpointRejectsBadInput(t *testing.T) {
	h, events := newTestHandler(t)
	for _, target := range []string{
		"/api/search?q=a",
		"/api/search",
		"/api/search?q=ada&types=widgets",
		"/api/search?q=ada&page=0",
		"/api/search?q=ada&limit=abc",
	} {
		rec := httptest.NewRecorder()
		h.Search(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		env := decode(t, rec)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Error)
	}
	assert.Empty(t, *events)
}

func TestSearchEndpointZeroResults(t *testing.T) {
	h, events := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=quantum", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, *events, 1)
	assert.Equal(t, analytics.EventZeroResult, (*events)[0].Type)
}

func TestSuggestionsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Suggestions(rec, httptest.NewRequest(http.MethodGet, "/api/search/suggestions?q=al", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var data SuggestionsResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Equal(t, "al", data.Query)
	assert.Equal(t, []string{"Algorithms", "Alan Turing", "Analytical Engines"}, data.Suggestions)
}

func TestCacheEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	h.Search(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/search?q=ada", nil))
	h.Search(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/search?q=ada", nil))

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/search/cache/stats", nil))
	var stats map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stats))
	assert.EqualValues(t, 1, stats["hits"])
	assert.EqualValues(t, 1, stats["misses"])
	assert.Equal(t, "50.0%", stats["hit_rate"])

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/search/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchTraceCarriesTotals(t *testing.T) {
	h, _ := newTestHandler(t)
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=algorithms&limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var trace string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "msg=trace") {
			trace = line
		}
	}
	require.NotEmpty(t, trace)
	assert.Contains(t, trace, "total=2")
	assert.Contains(t, trace, "returned=1")
}

func TestSearchHugePage(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=algorithms&page=9223372036854775807", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Items      []search.Hit      `json:"items"`
		Pagination search.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Empty(t, data.Items)
	assert.Equal(t, 2, data.Pagination.Total)
}
