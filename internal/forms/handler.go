package forms

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/csrf"
	apperrors "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/response"
	"github.com/google/uuid"
)

// MaxBodyBytes caps a form request body.
const MaxBodyBytes = 64 << 10

const csrfFailureMessage = "Invalid or expired security token. Please refresh the page and try again."

// SubmitResponse is the data payload of a successful submission.
type SubmitResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type Handler struct {
	store   Store
	csrf    *csrf.Protector
	events  Publisher
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// NewHandler builds the form handlers. events and m may be nil.
func NewHandler(store Store, protector *csrf.Protector, events Publisher, m *metrics.Metrics) *Handler {
	return &Handler{
		store:   store,
		csrf:    protector,
		events:  events,
		metrics: m,
		now:     time.Now,
		logger:  slog.Default().With("component", "forms"),
	}
}

// Contact serves POST /api/contact.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := decode(w, r, &req, func(f formValues) {
		req = ContactRequest{
			Name:      f.get("name"),
			Email:     f.get("email"),
			Subject:   f.get("subject"),
			Message:   f.get("message"),
			Category:  f.get("category"),
			CSRFToken: f.get("csrfToken"),
		}
	}); err != nil {
		h.fail(w, r, FormContact, "invalid", err)
		return
	}
	if !h.checkCSRF(w, r, FormContact, req.CSRFToken) {
		return
	}
	if err := ValidateContact(req); err != nil {
		h.fail(w, r, FormContact, "invalid", err)
		return
	}

	clean := SanitizeContact(req)
	sub := ContactSubmission{
		ID:        uuid.NewString(),
		Name:      clean.Name,
		Email:     clean.Email,
		Subject:   clean.Subject,
		Message:   clean.Message,
		Category:  clean.Category,
		ClientIP:  middleware.ClientIP(r),
		CreatedAt: h.now().UTC(),
	}
	if err := h.store.SaveContact(r.Context(), sub); err != nil {
		h.fail(w, r, FormContact, "error", err)
		return
	}

	logger.FromContext(r.Context()).Info("contact submission received",
		"id", sub.ID,
		"category", sub.Category,
		"client_ip", logger.RedactIP(sub.ClientIP),
	)
	h.announce(r.Context(), SubmissionEvent{
		Form:      FormContact,
		ID:        sub.ID,
		Email:     sub.Email,
		Category:  sub.Category,
		CreatedAt: sub.CreatedAt,
		RequestID: logger.RequestID(r.Context()),
	})
	h.count(FormContact, "accepted")
	response.JSON(w, http.StatusCreated, SubmitResponse{
		ID:      sub.ID,
		Message: "Thank you for your message. We will get back to you soon.",
	})
}

// Newsletter serves POST /api/newsletter.
func (h *Handler) Newsletter(w http.ResponseWriter, r *http.Request) {
	var req NewsletterRequest
	if err := decode(w, r, &req, func(f formValues) {
		req = NewsletterRequest{
			Email:     f.get("email"),
			Name:      f.get("name"),
			Interests: f.list("interests"),
			CSRFToken: f.get("csrfToken"),
		}
	}); err != nil {
		h.fail(w, r, FormNewsletter, "invalid", err)
		return
	}
	if !h.checkCSRF(w, r, FormNewsletter, req.CSRFToken) {
		return
	}
	if err := ValidateNewsletter(req); err != nil {
		h.fail(w, r, FormNewsletter, "invalid", err)
		return
	}

	clean := SanitizeNewsletter(req)
	sub := Subscription{
		ID:        uuid.NewString(),
		Email:     clean.Email,
		Name:      clean.Name,
		Interests: clean.Interests,
		CreatedAt: h.now().UTC(),
	}
	if err := h.store.Subscribe(r.Context(), sub); err != nil {
		outcome := "error"
		if errors.Is(err, ErrAlreadySubscribed) {
			outcome = "duplicate"
		}
		h.fail(w, r, FormNewsletter, outcome, err)
		return
	}

	logger.FromContext(r.Context()).Info("newsletter subscription created",
		"id", sub.ID,
		"interests", sub.Interests,
	)
	h.announce(r.Context(), SubmissionEvent{
		Form:      FormNewsletter,
		ID:        sub.ID,
		Email:     sub.Email,
		Interests: sub.Interests,
		CreatedAt: sub.CreatedAt,
		RequestID: logger.RequestID(r.Context()),
	})
	h.count(FormNewsletter, "accepted")
	response.JSON(w, http.StatusCreated, SubmitResponse{
		ID:      sub.ID,
		Message: "Thank you for subscribing to our newsletter.",
	})
}

func (h *Handler) checkCSRF(w http.ResponseWriter, r *http.Request, form, token string) bool {
	err := h.csrf.Check(r, token)
	if err == nil {
		return true
	}
	if h.metrics != nil {
		h.metrics.CSRFFailuresTotal.WithLabelValues(csrf.Reason(err)).Inc()
	}
	h.count(form, "csrf_failed")
	response.Fail(w, http.StatusForbidden, csrfFailureMessage, nil)
	return false
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, form, outcome string, err error) {
	h.count(form, outcome)
	response.Error(w, r, err)
}

func (h *Handler) count(form, outcome string) {
	if h.metrics != nil {
		h.metrics.FormSubmissionsTotal.WithLabelValues(form, outcome).Inc()
	}
}

type formValues map[string][]string

func (f formValues) get(key string) string {
	if v := f[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// list accepts both repeated keys and a single comma-separated value.
func (f formValues) list(key string) []string {
	var out []string
	for _, v := range f[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// decode reads a JSON body into dst, or hands url-encoded and multipart
// form values to fromForm.
func decode(w http.ResponseWriter, r *http.Request, dst any, fromForm func(formValues)) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return bodyError(err)
		}
		fromForm(formValues(r.PostForm))
		return nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(MaxBodyBytes); err != nil {
			return bodyError(err)
		}
		fromForm(formValues(r.PostForm))
		return nil
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge, "Request body too large")
	}
	return apperrors.Invalid("Request body could not be parsed")
}
