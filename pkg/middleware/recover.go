package middleware

import (
	"net/http"
	"runtime/debug"

	apperrors "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/response"
)

// Recover turns handler panics into a generic 500 response. The panic value
// and stack go to the log only.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.FromContext(r.Context()).Error("panic in handler",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", logger.RedactIP(ClientIP(r)),
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			response.Fail(w, http.StatusInternalServerError, apperrors.PublicMessage(apperrors.ErrInternal), nil)
		}()
		next.ServeHTTP(w, r)
	})
}
