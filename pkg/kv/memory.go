package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"
)

// entry holds a JSON-encoded value with an optional expiry.
type entry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process Store used by tests and by deployments without an
// external KV. Expired entries are cleaned up lazily on access — no
// background goroutine.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// SetClock overrides the time source (tests only).
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Get unmarshals the JSON value at key into dest.
func (m *Memory) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return ErrNotFound
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return ErrNotFound
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return fmt.Errorf("decode value at %q: %w", key, err)
	}
	return nil
}

// Set stores the JSON encoding of value at key with the given TTL.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &entry{data: data, expiresAt: m.expiry(ttl)}
	return nil
}

// Incr atomically adds n to the counter at key.
func (m *Memory) Incr(_ context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, existed, err := m.loadInt(key)
	if err != nil {
		return 0, err
	}
	current += n
	data, _ := json.Marshal(current)
	m.storeCounter(key, data, existed, ttl)
	return current, nil
}

// IncrByFloat atomically adds x to the counter at key.
func (m *Memory) IncrByFloat(_ context.Context, key string, x float64, ttl time.Duration) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.liveEntry(key)
	var current float64
	if ok {
		if err := json.Unmarshal(e.data, &current); err != nil {
			return 0, fmt.Errorf("counter at %q is not a float: %w", key, err)
		}
	}
	current += x
	data, _ := json.Marshal(current)
	m.storeCounter(key, data, ok, ttl)
	return current, nil
}

// Keys returns keys matching a glob-style pattern.
func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var keys []string
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			continue
		}
		if ok, err := path.Match(pattern, k); err == nil && ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Delete removes a key. Missing keys are not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Ping always succeeds for the in-memory store.
func (m *Memory) Ping(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }

// Len returns the number of live entries (tests only).
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

// liveEntry returns the entry at key if present and unexpired.
// Caller must hold mu.
func (m *Memory) liveEntry(key string) (*entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}

// loadInt reads an integer counter. Caller must hold mu.
func (m *Memory) loadInt(key string) (int64, bool, error) {
	e, ok := m.liveEntry(key)
	if !ok {
		return 0, false, nil
	}
	var v int64
	if err := json.Unmarshal(e.data, &v); err != nil {
		return 0, true, fmt.Errorf("counter at %q is not an integer: %w", key, err)
	}
	return v, true, nil
}

// storeCounter writes a counter value, preserving the existing expiry when
// the key already existed (TTL applies on creation only). Caller must hold mu.
func (m *Memory) storeCounter(key string, data []byte, existed bool, ttl time.Duration) {
	if existed {
		m.entries[key].data = data
		return
	}
	m.entries[key] = &entry{data: data, expiresAt: m.expiry(ttl)}
}
