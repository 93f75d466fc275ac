// Package forms accepts the contact and newsletter forms: it validates and
// sanitizes submissions, stores them, and announces them on Kafka.
package forms

import (
	"fmt"
	"net/http"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/sanitize"
	apperrors "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/errors"
)

const (
	FormContact    = "contact"
	FormNewsletter = "newsletter"
)

// Field limits, in characters.
const (
	maxNameLength    = 100
	maxEmailLength   = 254
	maxSubjectLength = 200
	minMessageLength = 10
	maxMessageLength = 5000
	maxInterests     = 10
)

// Categories lists the accepted contact categories.
var Categories = []string{"general", "admissions", "research", "media", "technical"}

// Interests lists the accepted newsletter interests.
var Interests = []string{"news", "events", "research", "seminars", "admissions"}

// ErrAlreadySubscribed is returned by Store.Subscribe for a known address.
var ErrAlreadySubscribed = apperrors.New(apperrors.ErrConflict, http.StatusConflict,
	"This email address is already subscribed")

var errValidation = apperrors.Invalid("Validation failed")

// ValidationError maps field names to messages. It unwraps to a 400
// AppError so the API layer can render it with its field details.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return errValidation }
func (e *ValidationError) Details() any  { return e.Fields }

type ContactRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	CSRFToken string `json:"csrfToken"`
}

type NewsletterRequest struct {
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Interests []string `json:"interests"`
	CSRFToken string   `json:"csrfToken"`
}

// ContactSubmission is a stored contact message.
type ContactSubmission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	ClientIP  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscription is a stored newsletter sign-up.
type Subscription struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Interests []string  `json:"interests"`
	CreatedAt time.Time `json:"createdAt"`
}

type validator map[string]string

func (v validator) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v[field] = fmt.Sprintf("%s is required", field)
		return false
	}
	return true
}

func (v validator) length(field, value string, lo, hi int) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	switch {
	case n < lo:
		v[field] = fmt.Sprintf("%s must be at least %d characters", field, lo)
	case n > hi:
		v[field] = fmt.Sprintf("%s must be at most %d characters", field, hi)
	}
}

func (v validator) email(field, value string) {
	value = strings.TrimSpace(value)
	if len(value) > maxEmailLength {
		v[field] = fmt.Sprintf("%s must be at most %d characters", field, maxEmailLength)
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@")+1:], ".") {
		v[field] = "email is not a valid address"
	}
}

func (v validator) oneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", "))
}

func (v validator) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}

// ValidateContact checks required fields, email syntax, lengths and the
// category allow-list. An empty category means "general".
func ValidateContact(req ContactRequest) error {
	v := validator{}
	if v.required("name", req.Name) {
		v.length("name", req.Name, 1, maxNameLength)
	}
	if v.required("email", req.Email) {
		v.email("email", req.Email)
	}
	if v.required("subject", req.Subject) {
		v.length("subject", req.Subject, 1, maxSubjectLength)
	}
	if v.required("message", req.Message) {
		v.length("message", req.Message, minMessageLength, maxMessageLength)
	}
	if c := strings.TrimSpace(strings.ToLower(req.Category)); c != "" {
		v.oneOf("category", c, Categories)
	}
	return v.err()
}

// ValidateNewsletter checks the email, the optional name and the interest
// allow-list.
func ValidateNewsletter(req NewsletterRequest) error {
	v := validator{}
	if v.required("email", req.Email) {
		v.email("email", req.Email)
	}
	if strings.TrimSpace(req.Name) != "" {
		v.length("name", req.Name, 1, maxNameLength)
	}
	if len(req.Interests) > maxInterests {
		v["interests"] = fmt.Sprintf("at most %d interests may be selected", maxInterests)
	} else {
		for _, i := range req.Interests {
			if _, bad := v["interests"]; bad {
				break
			}
			v.oneOf("interests", strings.TrimSpace(strings.ToLower(i)), Interests)
		}
	}
	return v.err()
}

// SanitizeContact returns a cleaned copy of req.
func SanitizeContact(req ContactRequest) ContactRequest {
	category := strings.TrimSpace(strings.ToLower(req.Category))
	if category == "" {
		category = "general"
	}
	return ContactRequest{
		Name:     sanitize.Line(req.Name),
		Email:    sanitize.Email(req.Email),
		Subject:  sanitize.Line(req.Subject),
		Message:  sanitize.Text(req.Message),
		Category: category,
	}
}

// SanitizeNewsletter returns a cleaned copy of req with interests
// lower-cased, de-duplicated and sorted.
func SanitizeNewsletter(req NewsletterRequest) NewsletterRequest {
	seen := make(map[string]struct{}, len(req.Interests))
	interests := make([]string, 0, len(req.Interests))
	for _, i := range req.Interests {
		i = strings.TrimSpace(strings.ToLower(i))
		if _, dup := seen[i]; dup || i == "" {
			continue
		}
		seen[i] = struct{}{}
		interests = append(interests, i)
	}
	sort.Strings(interests)
	return NewsletterRequest{
		Email:     sanitize.Email(req.Email),
		Name:      sanitize.Line(req.Name),
		Interests: interests,
	}
}
