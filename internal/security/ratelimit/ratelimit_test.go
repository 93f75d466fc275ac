package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/resilience"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func TestContactLimiterExample(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	l := New("contact", Contact, NewMemoryStore(), WithClock(clk.now))
	id := Key("1.2.3.4", "/api/contact")
	assert.Equal(t, "1.2.3.4:/api/contact", id)

	for i := 1; i <= 3; i++ {
		res, err := l.Check(ctx, id)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i)
		assert.Equal(t, 3-i, res.Remaining)
		assert.Equal(t, clk.t.Add(15*time.Minute), res.ResetTime)
	}

	res, err := l.Check(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 15*time.Minute, res.RetryAfter)
	assert.True(t, l.IsRateLimited(ctx, id))
	assert.False(t, l.IsRateLimited(ctx, Key("5.6.7.8", "/api/contact")))
}

func TestWindowResets(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	l := New("test", Config{MaxAttempts: 2, Window: time.Minute}, NewMemoryStore(), WithClock(clk.now))

	for i := 0; i < 2; i++ {
		res, _ := l.Check(ctx, "k")
		require.True(t, res.Allowed)
	}
	res, _ := l.Check(ctx, "k")
	require.False(t, res.Allowed)

	clk.advance(time.Minute)
	res, _ = l.Check(ctx, "k")
	assert.False(t, res.Allowed, "window end is inclusive")

	clk.advance(time.Millisecond)
	assert.False(t, l.IsRateLimited(ctx, "k"))
	res, _ = l.Check(ctx, "k")
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestRejectedAttemptsAreNotCounted(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewMemoryStore()
	l := New("test", Config{MaxAttempts: 1, Window: time.Minute}, store, WithClock(clk.now))

	for i := 0; i < 5; i++ {
		l.Check(ctx, "k")
	}
	rec, found, err := store.Get(ctx, "k", clk.t)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, rec.Count)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	l := New("test", Config{MaxAttempts: 1, Window: time.Hour}, NewMemoryStore())
	l.Check(ctx, "k")
	l.Check(ctx, "k")
	require.True(t, l.IsRateLimited(ctx, "k"))
	require.NoError(t, l.Reset(ctx, "k"))
	assert.False(t, l.IsRateLimited(ctx, "k"))
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewMemoryStore()
	store.Hit(ctx, "old", 3, time.Minute, clk.t)
	store.Hit(ctx, "new", 3, time.Hour, clk.t)

	clk.advance(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep(clk.t))
	assert.Equal(t, 1, store.Len())
}

func TestFromConfig(t *testing.T) {
	assert.Equal(t, Contact, FromConfig(config.LimitConfig{}, Contact))
	assert.Equal(t, Config{MaxAttempts: 7, Window: time.Hour}, FromConfig(config.LimitConfig{MaxAttempts: 7}, Newsletter))
}

type brokenStore struct{ calls int }

func (b *brokenStore) Hit(context.Context, string, int, time.Duration, time.Time) (Record, bool, error) {
	b.calls++
	return Record{}, false, errors.New("connection refused")
}
func (b *brokenStore) Get(context.Context, string, time.Time) (Record, bool, error) {
	b.calls++
	return Record{}, false, errors.New("connection refused")
}
func (b *brokenStore) Reset(context.Context, string) error {
	b.calls++
	return errors.New("connection refused")
}

func TestFailoverUsesFallback(t *testing.T) {
	ctx := context.Background()
	primary := &brokenStore{}
	breaker := resilience.NewCircuitBreaker("ratelimit-redis", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	clk := newClock()
	l := New("test", Config{MaxAttempts: 2, Window: time.Minute},
		NewFailoverStore(primary, NewMemoryStore(), breaker), WithClock(clk.now))

	for i := 0; i < 2; i++ {
		res, err := l.Check(ctx, "k")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, resilience.StateOpen, breaker.GetState())
	assert.Equal(t, 2, primary.calls, "open breaker short-circuits the primary")
	assert.True(t, l.IsRateLimited(ctx, "k"))
}

func TestMiddleware(t *testing.T) {
	clk := newClock()
	m := metrics.New(nil)
	l := New("contact", Config{MaxAttempts: 2, Window: 90 * time.Second}, NewMemoryStore(), WithClock(clk.now))
	h := Middleware(l, "/api/contact", m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := send("1.2.3.4")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, strconv.FormatInt(clk.t.Add(90*time.Second).Unix(), 10), rec.Header().Get("X-RateLimit-Reset"))

	send("1.2.3.4")
	rec = send("1.2.3.4")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitRejections.WithLabelValues("/api/contact")))

	clk.advance(500 * time.Millisecond)
	rec = send("1.2.3.4")
	assert.Equal(t, "90", rec.Header().Get("Retry-After"), "rounded up")

	assert.Equal(t, http.StatusCreated, send("5.6.7.8").Code)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	l := New("test", API, &brokenStore{})
	h := Middleware(l, "/api/search", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := pkgredis.NewClient(config.RedisConfig{
		Addr:      addr,
		PoolSize:  2,
		KeyPrefix: "portal-test:" + uuid.NewString() + ":",
	})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() {
		client.FlushByPattern(context.Background(), "*")
		client.Close()
	})

	ctx := context.Background()
	l := New("test", Config{MaxAttempts: 3, Window: time.Minute}, NewRedisStore(client))
	id := Key("1.2.3.4", "/api/contact")
	for i := 0; i < 3; i++ {
		res, err := l.Check(ctx, id)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Check(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.True(t, l.IsRateLimited(ctx, id))

	require.NoError(t, l.Reset(ctx, id))
	assert.False(t, l.IsRateLimited(ctx, id))
}
