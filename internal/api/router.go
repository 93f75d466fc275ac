// Package api wires the portal's HTTP routes and middleware chain.
package api

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/forms"
	searchhandler "github.com/Adithya-Monish-Kumar-K/department-portal/internal/search/handler"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/apikey"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/csrf"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/middleware"
)

// Handlers groups the endpoint implementations.
type Handlers struct {
	Search    *searchhandler.Handler
	Forms     *forms.Handler
	Analytics *analytics.Handler
	CSRF      *csrf.Protector
	Health    *health.Checker
}

// Limiters holds one limiter per preset. API covers every route that is
// not a form post.
type Limiters struct {
	Contact    *ratelimit.Limiter
	Newsletter *ratelimit.Limiter
	API        *ratelimit.Limiter
}

type Options struct {
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
	// AdminKeys authorises the cache and analytics routes. When nil those
	// routes answer 401 to everyone.
	AdminKeys      apikey.Validator
	TrustedProxies []netip.Prefix
}

// NewRouter builds the portal handler.
//
// Route table:
//
//	GET    /api/search                        search
//	GET    /api/search/suggestions            title suggestions
//	POST   /api/search/cache/invalidate       drop the cached index (admin)
//	GET    /api/search/cache/stats            index cache hit rate (admin)
//	GET    /api/csrf-token                    issue a form token
//	POST   /api/contact                       contact form
//	POST   /api/newsletter                    newsletter sign-up
//	GET    /api/analytics/searches            live search stats (admin)
//	GET    /api/analytics/searches/history    stored snapshots (admin)
//	GET    /health/live, /health/ready        health checks (not rate limited)
//
// Middleware chain (outermost first):
//
//	RequestID → RealIP → Recover → Metrics → CORS → SecurityHeaders → Timeout → RateLimit → [APIKey] → handler
func NewRouter(h Handlers, l Limiters, opts Options) http.Handler {
	mux := http.NewServeMux()
	routes := []string{"/health/live", "/health/ready"}

	limited := func(lim *ratelimit.Limiter, route string, fn http.HandlerFunc) http.Handler {
		return ratelimit.Middleware(lim, route, opts.Metrics)(fn)
	}
	route := func(method, path string, lim *ratelimit.Limiter, fn http.HandlerFunc) {
		mux.Handle(method+" "+path, limited(lim, path, fn))
		routes = append(routes, path)
	}

	requireKey := apikey.Require(opts.AdminKeys)
	admin := func(fn http.HandlerFunc) http.HandlerFunc {
		return requireKey(fn).ServeHTTP
	}

	mux.HandleFunc("GET /health/live", h.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", h.Health.ReadyHandler())

	route("GET", "/api/search", l.API, h.Search.Search)
	route("GET", "/api/search/suggestions", l.API, h.Search.Suggestions)
	route("POST", "/api/search/cache/invalidate", l.API, admin(h.Search.CacheInvalidate))
	route("GET", "/api/search/cache/stats", l.API, admin(h.Search.CacheStats))

	route("GET", "/api/csrf-token", l.API, h.CSRF.TokenHandler)
	route("POST", "/api/contact", l.Contact, h.Forms.Contact)
	route("POST", "/api/newsletter", l.Newsletter, h.Forms.Newsletter)

	route("GET", "/api/analytics/searches", l.API, admin(h.Analytics.Stats))
	route("GET", "/api/analytics/searches/history", l.API, admin(h.Analytics.History))

	var chain http.Handler = mux
	chain = middleware.Timeout(opts.RequestTimeout)(chain)
	chain = middleware.SecurityHeaders(chain)
	chain = middleware.CORS(opts.CORS)(chain)
	if opts.Metrics != nil {
		chain = middleware.Metrics(opts.Metrics, routes...)(chain)
	}
	chain = middleware.Recover(chain)
	chain = middleware.RealIP(opts.TrustedProxies)(chain)
	chain = middleware.RequestID(chain)
	return chain
}
