// Package cache holds the built search index between requests, either in
// process memory or in Redis so several instances share one copy.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/search"
)

var (
	_ search.Cache = (*Memory)(nil)
	_ search.Cache = (*Redis)(nil)
)

// Memory is a process-local index cache that expires by wall clock only.
type Memory struct {
	mu        sync.RWMutex
	entries   []search.Entry
	expiresAt time.Time
	now       func() time.Time
}

// NewMemory returns an empty cache. A nil clock means time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now}
}

func (m *Memory) Get(_ context.Context) ([]search.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entries == nil || !m.now().Before(m.expiresAt) {
		return nil, false
	}
	return m.entries, true
}

func (m *Memory) Set(_ context.Context, entries []search.Entry, ttl time.Duration) error {
	if entries == nil {
		entries = []search.Entry{}
	}
	m.mu.Lock()
	m.entries = entries
	m.expiresAt = m.now().Add(ttl)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context) error {
	m.mu.Lock()
	m.entries = nil
	m.expiresAt = time.Time{}
	m.mu.Unlock()
	return nil
}
