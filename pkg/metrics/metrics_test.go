package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsesIsolatedRegistries(t *testing.T) {
	a := New(nil)
	b := New(nil)

	a.RateLimitRejections.WithLabelValues("/api/contact").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.RateLimitRejections.WithLabelValues("/api/contact")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RateLimitRejections.WithLabelValues("/api/contact")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.FormSubmissionsTotal.WithLabelValues("contact", "accepted").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `form_submissions_total{form="contact",outcome="accepted"} 1`)
}

func TestStartServer(t *testing.T) {
	m := New(nil)
	shutdown := m.StartServer(0)
	require.NoError(t, shutdown(context.Background()))
}
