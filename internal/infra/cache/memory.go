package cache

import (
	"context"
	"sync"
	"time"

	"telegram-weather-bot/internal/domain/ports/adapter"
)

var _ adapter.Cache = (*MemoryCache)(nil)

type entry struct {
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
}

// sweepInterval is the minimum time between full expiry sweeps run from Set.
const sweepInterval = time.Minute

// MemoryCache is an in-process TTL cache. Expired entries are purged on Get,
// and Set sweeps all expired entries at most once per sweepInterval.
type MemoryCache struct {
	mu        sync.Mutex
	items     map[string]entry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]entry), now: time.Now}
}

// WithClock overrides the time source; used by tests to simulate elapsed time.
func (m *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

// Get returns the value while now-insertedAt <= ttl and deletes it afterwards.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if m.now().Sub(e.insertedAt) > e.ttl {
		delete(m.items, key)
		return nil, false
	}
	return e.value, true
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= sweepInterval {
		m.sweep(now)
	}
	m.items[key] = entry{value: value, insertedAt: now, ttl: ttl}
}

// sweep drops every expired entry. Callers hold mu.
func (m *MemoryCache) sweep(now time.Time) {
	for k, e := range m.items {
		if now.Sub(e.insertedAt) > e.ttl {
			delete(m.items, k)
		}
	}
	m.lastSweep = now
}

func (m *MemoryCache) Delete(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Peek reports whether key is stored, without expiring it.
func (m *MemoryCache) Peek(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

// Len is the number of stored entries, expired or not.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
