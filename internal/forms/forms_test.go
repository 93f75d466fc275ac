package forms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/csrf"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validContact() ContactRequest {
	return ContactRequest{
		Name:     "Ada Lovelace",
		Email:    "ada@example.org",
		Subject:  "Graduate admissions",
		Message:  "I would like to know more about the PhD programme.",
		Category: "admissions",
	}
}

func TestValidateContact(t *testing.T) {
	assert.NoError(t, ValidateContact(validContact()))

	req := validContact()
	req.Category = ""
	assert.NoError(t, ValidateContact(req), "category defaults to general")

	err := ValidateContact(ContactRequest{Email: "not-an-email", Message: "short", Category: "sales"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name is required", verr.Fields["name"])
	assert.Equal(t, "subject is required", verr.Fields["subject"])
	assert.Equal(t, "email is not a valid address", verr.Fields["email"])
	assert.Equal(t, "message must be at least 10 characters", verr.Fields["message"])
	assert.Contains(t, verr.Fields["category"], "category must be one of")
}

func TestValidateContactLengths(t *testing.T) {
	req := validContact()
	req.Name = strings.Repeat("é", maxNameLength)
	req.Subject = strings.Repeat("s", maxSubjectLength+1)
	req.Message = strings.Repeat("m", maxMessageLength+1)

	var verr *ValidationError
	require.ErrorAs(t, ValidateContact(req), &verr)
	assert.NotContains(t, verr.Fields, "name", "length counts characters, not bytes")
	assert.Equal(t, "subject must be at most 200 characters", verr.Fields["subject"])
	assert.Equal(t, "message must be at most 5000 characters", verr.Fields["message"])
}

func TestValidateEmail(t *testing.T) {
	for _, email := range []string{"a@b.co", " staff@cs.example.ac.uk "} {
		assert.NoError(t, ValidateNewsletter(NewsletterRequest{Email: email}), email)
	}
	for _, email := range []string{"a@b", "Ada <ada@example.org>", "@example.org", "ada@@example.org"} {
		assert.Error(t, ValidateNewsletter(NewsletterRequest{Email: email}), email)
	}
}

func TestValidateNewsletterInterests(t *testing.T) {
	assert.NoError(t, ValidateNewsletter(NewsletterRequest{Email: "a@b.co", Interests: []string{"News", "events"}}))

	var verr *ValidationError
	require.ErrorAs(t, ValidateNewsletter(NewsletterRequest{Email: "a@b.co", Interests: []string{"news", "gossip"}}), &verr)
	assert.Contains(t, verr.Fields["interests"], "interests must be one of")
}

func TestSanitize(t *testing.T) {
	c := SanitizeContact(ContactRequest{
		Name:    "  <b>Ada</b>   Lovelace ",
		Email:   " ADA@Example.org ",
		Subject: "Hi<script>alert(1)</script>",
		Message: "Line one\r\n\r\n\r\nLine   two",
	})
	assert.Equal(t, "Ada Lovelace", c.Name)
	assert.Equal(t, "ada@example.org", c.Email)
	assert.Equal(t, "Hi", c.Subject)
	assert.Equal(t, "Line one\n\nLine two", c.Message)
	assert.Equal(t, "general", c.Category)

	n := SanitizeNewsletter(NewsletterRequest{Email: "X@Y.org", Interests: []string{"Seminars", "news", "seminars", " "}})
	assert.Equal(t, []string{"news", "seminars"}, n.Interests)
	assert.Equal(t, "x@y.org", n.Email)
}

func TestValidationErrorDetails(t *testing.T) {
	err := ValidateContact(ContactRequest{})
	var d interface{ Details() any }
	require.ErrorAs(t, err, &d)
	assert.Len(t, d.Details(), 4)
}

func TestMemoryStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Subscribe(ctx, Subscription{ID: "1", Email: "a@b.co"}))
	assert.ErrorIs(t, s.Subscribe(ctx, Subscription{ID: "2", Email: "A@B.co"}), ErrAlreadySubscribed)

	got, ok := s.Subscription("a@b.co")
	require.True(t, ok)
	assert.Equal(t, "1", got.ID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type fixture struct {
	handler *Handler
	store   *MemoryStore
	pub     *recordingPublisher
	metrics *metrics.Metrics
	session string
	token   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	session, err := csrf.NewSessionID()
	require.NoError(t, err)
	protector := csrf.NewProtector(csrf.Config{})
	token, _ := protector.Issue(session)

	f := &fixture{
		store:   NewMemoryStore(),
		pub:     &recordingPublisher{},
		metrics: metrics.New(nil),
		session: session,
		token:   token,
	}
	f.handler = NewHandler(f.store, protector, f.pub, f.metrics)
	return f
}

func (f *fixture) post(h http.HandlerFunc, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/form", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(&http.Cookie{Name: "session-id", Value: f.session})
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func (f *fixture) contactJSON(t *testing.T, req ContactRequest) string {
	t.Helper()
	req.CSRFToken = f.token
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return string(b)
}

type envelope struct {
	Success bool              `json:"success"`
	Data    SubmitResponse    `json:"data"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestContactAccepted(t *testing.T) {
	f := newFixture(t)
	rec := f.post(f.handler.Contact, "application/json", f.contactJSON(t, validContact()))
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Len(t, env.Data.ID, 36)
	assert.NotEmpty(t, env.Data.Message)

	stored := f.store.Contacts()
	require.Len(t, stored, 1)
	assert.Equal(t, env.Data.ID, stored[0].ID)
	assert.Equal(t, "admissions", stored[0].Category)

	require.Len(t, f.pub.events, 1)
	ev := f.pub.events[0].Value.(SubmissionEvent)
	assert.Equal(t, FormContact, ev.Form)
	assert.Equal(t, env.Data.ID, f.pub.events[0].Key)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FormSubmissionsTotal.WithLabelValues("contact", "accepted")))
}

func TestContactFormEncoded(t *testing.T) {
	f := newFixture(t)
	c := validContact()
	body := url.Values{
		"name":      {c.Name},
		"email":     {c.Email},
		"subject":   {c.Subject},
		"message":   {c.Message},
		"csrfToken": {f.token},
	}
	rec := f.post(f.handler.Contact, "application/x-www-form-urlencoded", body.Encode())
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "general", f.store.Contacts()[0].Category)
}

func TestContactTokenInHeader(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(mustJSON(t, validContact())))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrf.HeaderName, f.token)
	req.AddCookie(&http.Cookie{Name: "session-id", Value: f.session})
	rec := httptest.NewRecorder()
	f.handler.Contact(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestContactCSRFFailure(t *testing.T) {
	f := newFixture(t)
	req := validContact()
	req.CSRFToken = "bogus"
	rec := f.post(f.handler.Contact, "application/json", mustJSON(t, req))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, csrfFailureMessage, env.Error)
	assert.Empty(t, f.store.Contacts())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CSRFFailuresTotal.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FormSubmissionsTotal.WithLabelValues("contact", "csrf_failed")))
}

func TestContactValidationFailure(t *testing.T) {
	f := newFixture(t)
	req := validContact()
	req.Message = "hi"
	rec := f.post(f.handler.Contact, "application/json", f.contactJSON(t, req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Validation failed", env.Error)
	assert.Equal(t, "message must be at least 10 characters", env.Details["message"])
	assert.Empty(t, f.pub.events)
}

func TestBodyLimits(t *testing.T) {
	f := newFixture(t)
	rec := f.post(f.handler.Contact, "application/json", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := `{"message":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	rec = f.post(f.handler.Contact, "application/json", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNewsletter(t *testing.T) {
	f := newFixture(t)
	body := mustJSON(t, NewsletterRequest{Email: "Reader@Example.org", Interests: []string{"events"}, CSRFToken: f.token})

	rec := f.post(f.handler.Newsletter, "application/json", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	sub, ok := f.store.Subscription("reader@example.org")
	require.True(t, ok)
	assert.Equal(t, []string{"events"}, sub.Interests)

	rec = f.post(f.handler.Newsletter, "application/json", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "This email address is already subscribed", decodeEnvelope(t, rec).Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FormSubmissionsTotal.WithLabelValues("newsletter", "duplicate")))
}

func TestNewsletterFormList(t *testing.T) {
	f := newFixture(t)
	body := url.Values{
		"email":     {"a@b.co"},
		"interests": {"news,events", "research"},
		"csrfToken": {f.token},
	}
	rec := f.post(f.handler.Newsletter, "application/x-www-form-urlencoded", body.Encode())
	require.Equal(t, http.StatusCreated, rec.Code)
	sub, _ := f.store.Subscription("a@b.co")
	assert.Equal(t, []string{"events", "news", "research"}, sub.Interests)
}

func TestPublishFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	rec := f.post(f.handler.Contact, "application/json", f.contactJSON(t, validContact()))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, f.store.Contacts(), 1)
}

type failingStore struct{}

func (failingStore) SaveContact(context.Context, ContactSubmission) error {
	return errors.New("disk full")
}
func (failingStore) Subscribe(context.Context, Subscription) error { return nil }

func TestStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.handler.store = failingStore{}
	rec := f.post(f.handler.Contact, "application/json", f.contactJSON(t, validContact()))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeEnvelope(t, rec).Error)
	assert.Empty(t, f.pub.events)
}

func TestSubmissionTimestamp(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	f.handler.now = func() time.Time { return at }
	f.post(f.handler.Contact, "application/json", f.contactJSON(t, validContact()))
	assert.Equal(t, at, f.store.Contacts()[0].CreatedAt)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
