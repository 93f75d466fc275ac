// Package metrics defines the Prometheus collectors used across the portal
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Metrics holds all Prometheus collectors for the portal.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Search
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      prometheus.Histogram
	SearchResultsCount prometheus.Histogram
	IndexCacheHits     prometheus.Counter
	IndexCacheMisses   prometheus.Counter
	IndexBuildsTotal   *prometheus.CounterVec
	IndexEntries       *prometheus.GaugeVec

	// Security and forms
	RateLimitRejections  *prometheus.CounterVec
	CSRFFailuresTotal    *prometheus.CounterVec
	FormSubmissionsTotal *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with reg. Passing nil uses
// a fresh registry, which keeps tests independent of the global one. The
// registry also gets the Go runtime and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2.5, 10),
		}, []string{"method", "route"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "Requests currently being served.",
		}),

		SearchQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "queries_total",
			Help: "Search queries by outcome (ok, zero_result, invalid, error).",
		}, []string{"outcome"}),
		SearchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "latency_seconds",
			Help:    "Time to answer a search query, index lookup included.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		SearchResultsCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "results_count",
			Help:    "Matching entries per query, before pagination.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		IndexCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "index_cache_hits_total",
			Help: "Index lookups served from cache.",
		}),
		IndexCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "index_cache_misses_total",
			Help: "Index lookups that had to rebuild from content files.",
		}),
		IndexBuildsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "index_builds_total",
			Help: "Index builds by status.",
		}, []string{"status"}),
		IndexEntries: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "search", Name: "index_entries",
			Help: "Entries in the last built index, per content type.",
		}, []string{"type"}),

		RateLimitRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ratelimit", Name: "rejections_total",
			Help: "Requests rejected with 429, per route.",
		}, []string{"route"}),
		CSRFFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "csrf", Name: "failures_total",
			Help: "Token validation failures by reason.",
		}, []string{"reason"}),
		FormSubmissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "form_submissions_total",
			Help: "Form submissions by form and outcome.",
		}, []string{"form", "outcome"}),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),

		gatherer: reg,
	}
}

// Handler returns the Prometheus scrape HTTP handler for these metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
