package apikey

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/response"
)

type contextKey struct{}

// Require rejects requests without a valid key with 401. The key is read
// from "Authorization: Bearer <key>" or X-API-Key, never from the query
// string. A nil validator rejects everything.
func Require(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractKey(r)
			if key == "" {
				unauthorized(w, r, "missing api key")
				return
			}
			if v == nil {
				unauthorized(w, r, "invalid api key")
				return
			}

			info, err := v.Validate(r.Context(), key)
			switch {
			case err == nil:
			case errors.Is(err, ErrExpiredKey):
				unauthorized(w, r, "expired api key")
				return
			case errors.Is(err, ErrInvalidKey):
				logger.FromContext(r.Context()).Warn("rejected admin request", "path", r.URL.Path)
				unauthorized(w, r, "invalid api key")
				return
			default:
				response.Error(w, r, fmt.Errorf("validating api key: %w", err))
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the key that authorised the request, or nil.
func FromContext(ctx context.Context) *KeyInfo {
	info, _ := ctx.Value(contextKey{}).(*KeyInfo)
	return info
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="portal-admin"`)
	response.Error(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, msg))
}

func extractKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
