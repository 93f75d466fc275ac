package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/resilience"
)

// FailoverStore sends every call to primary through a circuit breaker and
// answers from fallback while primary is failing or the breaker is open.
// Counts taken by the fallback are not copied back to primary.
type FailoverStore struct {
	primary  Store
	fallback Store
	breaker  *resilience.CircuitBreaker
	logger   *slog.Logger
}

func NewFailoverStore(primary, fallback Store, breaker *resilience.CircuitBreaker) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   slog.Default().With("component", "ratelimit-failover"),
	}
}

func (s *FailoverStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Record, bool, error) {
	var (
		rec     Record
		allowed bool
	)
	err := s.breaker.Execute(func() error {
		var err error
		rec, allowed, err = s.primary.Hit(ctx, key, limit, window, now)
		return err
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			s.logger.Debug("breaker open, counting in fallback", "key", key)
		} else {
			s.logger.Warn("primary rate-limit store unavailable, using fallback", "error", err)
		}
		return s.fallback.Hit(ctx, key, limit, window, now)
	}
	return rec, allowed, nil
}

func (s *FailoverStore) Get(ctx context.Context, key string, now time.Time) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := s.breaker.Execute(func() error {
		var err error
		rec, found, err = s.primary.Get(ctx, key, now)
		return err
	})
	if err != nil {
		return s.fallback.Get(ctx, key, now)
	}
	return rec, found, nil
}

// Reset clears both stores. A primary failure is returned after the
// fallback has been cleared.
func (s *FailoverStore) Reset(ctx context.Context, key string) error {
	fbErr := s.fallback.Reset(ctx, key)
	if err := s.breaker.Execute(func() error { return s.primary.Reset(ctx, key) }); err != nil {
		return err
	}
	return fbErr
}
