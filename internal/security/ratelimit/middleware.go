package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/response"
)

// Middleware limits requests per client address on route. Allowed
// responses carry the X-RateLimit-* headers; rejected ones get 429 with
// Retry-After. When the store fails the request is let through. m may be
// nil.
func Middleware(l *Limiter, route string, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := middleware.ClientIP(r)
			res, err := l.Check(r.Context(), Key(ip, route))
			if err != nil {
				logger.FromContext(r.Context()).Error("rate limit check failed, allowing request",
					"limiter", l.Name(),
					"route", route,
					"client_ip", logger.RedactIP(ip),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))

			if !res.Allowed {
				retry := int(math.Ceil(res.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				if m != nil {
					m.RateLimitRejections.WithLabelValues(route).Inc()
				}
				logger.FromContext(r.Context()).Warn("rate limit exceeded",
					"limiter", l.Name(),
					"route", route,
					"client_ip", logger.RedactIP(ip),
				)
				response.Fail(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", map[string]int{
					"retryAfter": retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
