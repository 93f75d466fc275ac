package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps counters in a process-local map. Records are only
// replaced when their window has passed; Sweep drops stale ones.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Hit starts a window of count 1 on first use or after the previous window
// ended, and otherwise increments until the limit is reached. Attempts at
// the limit are rejected without being counted.
func (s *MemoryStore) Hit(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.After(rec.ResetTime) {
		rec = &Record{Identifier: key, Count: 1, ResetTime: now.Add(window)}
		s.records[key] = rec
		return *rec, true, nil
	}
	if rec.Count >= limit {
		return *rec, false, nil
	}
	rec.Count++
	return *rec, true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string, now time.Time) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok || now.After(rec.ResetTime) {
		return Record{}, false, nil
	}
	return *rec, true, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of tracked identifiers.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Sweep removes records whose window ended before now and returns how many
// were dropped.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, rec := range s.records {
		if now.After(rec.ResetTime) {
			delete(s.records, key)
			n++
		}
	}
	return n
}

// StartSweeper calls Sweep every interval until ctx is cancelled.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	logger := slog.Default().With("component", "ratelimit-sweeper")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if n := s.Sweep(now); n > 0 {
					logger.Debug("expired rate-limit records removed", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
