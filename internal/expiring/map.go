// Package expiring provides a small in-memory key/value map whose entries
// lapse after a fixed TTL. Expired entries are dropped lazily whenever the
// map is touched. Contents are not persisted.
package expiring

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type Map[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New[V any](ttl time.Duration, opts ...Option) *Map[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Map[V]{
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]entry[V]),
	}
}

func (m *Map[V]) TTL() time.Duration { return m.ttl }

// Put stores value under key and returns when it expires.
func (m *Map[V]) Put(key string, value V) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.purgeLocked(now)
	expiresAt := now.Add(m.ttl)
	m.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
	return expiresAt
}

func (m *Map[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeLocked(m.now())
	e, ok := m.entries[key]
	return e.value, ok
}

// Take returns the value under key and removes it, so a code can be
// redeemed once.
func (m *Map[V]) Take(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeLocked(m.now())
	e, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	return e.value, ok
}

func (m *Map[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// DeleteFunc removes every live entry for which match returns true.
func (m *Map[V]) DeleteFunc(match func(key string, value V) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if match(k, e.value) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Purge drops expired entries and returns how many were removed.
func (m *Map[V]) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purgeLocked(m.now())
}

func (m *Map[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeLocked(m.now())
	return len(m.entries)
}

func (m *Map[V]) purgeLocked(now time.Time) int {
	n := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}
