// Package response writes the portal's JSON envelope:
// {success, data} on success and {success, error, details} on failure.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/logger"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Detailer is implemented by errors that carry per-field details for the
// client, such as validation failures.
type Detailer interface {
	Details() any
}

// JSON writes data inside a success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Success: true, Data: data})
}

// Fail writes an error envelope with a client-safe message.
func Fail(w http.ResponseWriter, status int, message string, details any) {
	write(w, status, Envelope{Success: false, Error: message, Details: details})
}

// Error maps err onto a status and public message. Server-side failures are
// logged with the request id and never leak their text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	var details any
	var d Detailer
	if errors.As(err, &d) {
		details = d.Details()
	}
	Fail(w, status, apperrors.PublicMessage(err), details)
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithComponent("response").Error("failed to write response", "error", err)
	}
}
