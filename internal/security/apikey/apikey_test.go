package apikey

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/migrations"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKey(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", HashKey("hello"))
}

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestStatic(t *testing.T) {
	s, err := NewStatic([]string{"", strings.ToUpper(HashKey("s3cret")), HashKey("other")})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	info, err := s.Validate(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "config-0", info.ID)

	_, err = s.Validate(context.Background(), "guess")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewStaticRejectsRawKeys(t *testing.T) {
	_, err := NewStatic([]string{"not-a-hash"})
	assert.Error(t, err)
	_, err = NewStatic([]string{"abcd"})
	assert.Error(t, err)
}

type fixedValidator struct {
	info *KeyInfo
	err  error
}

func (f fixedValidator) Validate(context.Context, string) (*KeyInfo, error) {
	return f.info, f.err
}

func TestAny(t *testing.T) {
	ctx := context.Background()
	ok := fixedValidator{info: &KeyInfo{Name: "db"}}

	info, err := Any(fixedValidator{err: ErrInvalidKey}, ok).Validate(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "db", info.Name)

	_, err = Any(fixedValidator{err: ErrExpiredKey}, fixedValidator{err: ErrInvalidKey}).Validate(ctx, "k")
	assert.ErrorIs(t, err, ErrExpiredKey, "expiry is reported over a plain miss")

	_, err = Any().Validate(ctx, "k")
	assert.ErrorIs(t, err, ErrInvalidKey)

	boom := errors.New("connection refused")
	_, err = Any(fixedValidator{err: boom}, ok).Validate(ctx, "k")
	assert.ErrorIs(t, err, boom)
}

func TestRequire(t *testing.T) {
	static, err := NewStatic([]string{HashKey("admin-key")})
	require.NoError(t, err)

	var seen *KeyInfo
	h := Require(static)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name    string
		headers map[string]string
		target  string
		want    int
	}{
		{"bearer", map[string]string{"Authorization": "Bearer admin-key"}, "/", http.StatusOK},
		{"x-api-key", map[string]string{"X-API-Key": "admin-key"}, "/", http.StatusOK},
		{"missing", nil, "/", http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, "/", http.StatusUnauthorized},
		{"basic scheme", map[string]string{"Authorization": "Basic admin-key"}, "/", http.StatusUnauthorized},
		{"query parameter ignored", nil, "/?api_key=admin-key", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "config", seen.Name)
				return
			}
			assert.Nil(t, seen)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestRequireNilValidatorRejects(t *testing.T) {
	h := Require(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireBackendErrorIs500(t *testing.T) {
	h := Require(fixedValidator{err: errors.New("pq: connection reset")})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "k")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

// newTestDB connects to the Postgres named by TEST_POSTGRES_HOST and applies
// the migrations, skipping the test when it is not set.
func newTestDB(t *testing.T) *postgres.Client {
	t.Helper()
	host := os.Getenv("TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("skipping: TEST_POSTGRES_HOST not set")
	}
	cfg := config.Default().Postgres
	cfg.Host = host
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg)
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(migrations.FS, "."))
	return db
}

func TestStoreLifecycle(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	raw, err := s.CreateKey(ctx, "test-"+t.Name(), nil)
	require.NoError(t, err)

	info, err := s.Validate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "test-"+t.Name(), info.Name)
	assert.Nil(t, info.ExpiresAt)

	require.NoError(t, s.RevokeKey(ctx, raw))
	_, err = s.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, s.RevokeKey(ctx, raw), ErrInvalidKey)
}

func TestStoreExpiredKey(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	raw, err := s.CreateKey(ctx, "expired", &past)
	require.NoError(t, err)
	_, err = s.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrExpiredKey)
}
