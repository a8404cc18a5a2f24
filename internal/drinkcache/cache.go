// Package drinkcache holds the drink of the day between refreshes.
package drinkcache

import (
	"context"
	"sync"
	"time"

	"brewbook/pkg/types"
)

// DefaultTTL is how long a drink of the day stays fresh.
const DefaultTTL = 6 * time.Hour

// Memory is a process-local cache entry with an explicit expiry. It is not
// shared across instances. Two callers that miss at the same time will both
// refresh, and the later Set wins.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	value     *types.Recipe
	expiresAt time.Time
}

// NewMemory constructs an empty Memory cache.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now}
}

// Get returns the cached recipe while it is fresh.
func (m *Memory) Get(ctx context.Context) (types.Recipe, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value == nil || !m.now().Before(m.expiresAt) {
		return types.Recipe{}, false, nil
	}
	return *m.value, true, nil
}

// Set stores recipe and restarts the expiry window.
func (m *Memory) Set(ctx context.Context, recipe types.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = &recipe
	m.expiresAt = m.now().Add(m.ttl)
	return nil
}

// ExpiresAt reports when the current entry goes stale; zero when empty.
func (m *Memory) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}
