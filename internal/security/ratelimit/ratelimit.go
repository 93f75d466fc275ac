// Package ratelimit implements fixed-window request limiting keyed by
// client address and route. Counters live in an injected Store so a single
// process can keep them in memory while several instances share Redis.
//
// Windows are fixed, not sliding: a client can get up to twice the limit
// through around a window boundary.
package ratelimit

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/config"
)

// Config is the number of attempts allowed per window.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Stock limits for the portal's routes.
var (
	Contact    = Config{MaxAttempts: 3, Window: 15 * time.Minute}
	Newsletter = Config{MaxAttempts: 5, Window: time.Hour}
	API        = Config{MaxAttempts: 100, Window: time.Minute}
)

// FromConfig converts a loaded limit, falling back to def for zero fields.
func FromConfig(c config.LimitConfig, def Config) Config {
	out := Config{MaxAttempts: c.MaxAttempts, Window: c.Window}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.Window <= 0 {
		out.Window = def.Window
	}
	return out
}

// Record is the counter state for one identifier.
type Record struct {
	Identifier string
	Count      int
	ResetTime  time.Time
}

// Store persists window counters.
type Store interface {
	// Hit counts one attempt against key and reports whether it is
	// allowed under limit.
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Record, bool, error)
	// Get returns the live record for key. found is false when there is
	// none or its window has passed.
	Get(ctx context.Context, key string, now time.Time) (rec Record, found bool, err error)
	Reset(ctx context.Context, key string) error
}

// Key builds the limiter identifier for a client and route.
func Key(clientIP, route string) string {
	return clientIP + ":" + route
}

// Result describes the outcome of one Check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter applies one Config to identifiers through a Store.
type Limiter struct {
	name  string
	cfg   Config
	store Store
	now   func() time.Time
}

type Option func(*Limiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter. name labels it in logs and metrics.
func New(name string, cfg Config, store Store, opts ...Option) *Limiter {
	l := &Limiter{name: name, cfg: cfg, store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Name() string   { return l.name }
func (l *Limiter) Config() Config { return l.cfg }

// Check counts an attempt for identifier.
func (l *Limiter) Check(ctx context.Context, identifier string) (Result, error) {
	now := l.now()
	rec, allowed, err := l.store.Hit(ctx, identifier, l.cfg.MaxAttempts, l.cfg.Window, now)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Allowed:   allowed,
		Limit:     l.cfg.MaxAttempts,
		Remaining: max(l.cfg.MaxAttempts-rec.Count, 0),
		ResetTime: rec.ResetTime,
	}
	if !allowed {
		res.RetryAfter = max(rec.ResetTime.Sub(now), 0)
	}
	return res, nil
}

// IsRateLimited reports, without counting an attempt, whether identifier
// has used up its window. Store errors read as not limited.
func (l *Limiter) IsRateLimited(ctx context.Context, identifier string) bool {
	rec, found, err := l.store.Get(ctx, identifier, l.now())
	if err != nil || !found {
		return false
	}
	return rec.Count >= l.cfg.MaxAttempts
}

// Reset clears identifier's counter.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	return l.store.Reset(ctx, identifier)
}
