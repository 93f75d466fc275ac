package middleware

import (
	"context"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/logger"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates an inbound X-Request-ID (up to 64 bytes) or mints a
// new UUID, echoing it on the response and storing it in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id for ctx, or "".
func GetRequestID(ctx context.Context) string {
	return logger.RequestID(ctx)
}
