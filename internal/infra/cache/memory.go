package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	hash      map[string]string
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is a TTL map used when no Redis is configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry), now: time.Now}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *MemoryStore) lookup(key string) (*memoryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || e.expired(m.now()) {
		return nil, false
	}
	return e, true
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.lookup(key)
	if !ok || e.value == nil {
		return nil, ErrMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.entries[key] = &memoryEntry{value: v, expiresAt: m.expiry(ttl)}
	m.mu.Unlock()
	return nil
}

// HGetAll returns ErrMiss for a missing hash, like GET does for strings.
func (m *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	e, ok := m.lookup(key)
	if !ok || e.hash == nil {
		return nil, ErrMiss
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(e.hash))
	for k, v := range e.hash {
		out[k] = v
	}
	return out, nil
}

// HSet merges fields into the hash and refreshes the TTL of the whole key.
func (m *MemoryStore) HSet(_ context.Context, key string, fields map[string]string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(m.now()) || e.hash == nil {
		e = &memoryEntry{hash: make(map[string]string)}
		m.entries[key] = e
	}
	for k, v := range fields {
		e.hash[k] = v
	}
	e.expiresAt = m.expiry(ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
