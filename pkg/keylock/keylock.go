// Package keylock provides mutual exclusion per string key.
//
// Entries are reference counted and removed as soon as nobody holds or waits for them,
// so the table does not grow with the number of distinct keys ever used.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Map hands out one lock per key. The zero value is not usable; call New.
type Map struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Map.
func New() *Map {
	return &Map{entries: make(map[string]*entry)}
}

// acquire gets or creates the entry for key and increments its reference count.
// The caller must call release(key) once it no longer holds or waits on the entry.
func (m *Map) acquire(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Map) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.entries, key)
	}
}

// WithLock runs fn while holding the lock for key.
// Waiting for the lock is abandoned when ctx is done.
func (m *Map) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	e := m.acquire(key)
	defer m.release(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

// Len reports how many keys are currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
