package caching

import (
	"context"
	"sync"
)

// lockMap hands out one RWMutex per key. Locks are created lazily and kept
// for the lifetime of the map; mu only guards creation.
type lockMap struct {
	mu    sync.RWMutex
	locks map[uint64]*sync.RWMutex
}

func (m *lockMap) get(key uint64) *sync.RWMutex {
	m.mu.RLock()
	if l, ok := m.locks[key]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have created it while we waited for the lock.
	if l, ok := m.locks[key]; ok {
		return l
	}
	l := &sync.RWMutex{}
	m.locks[key] = l
	return l
}

// Locked wraps a strategy so that at most one population per key runs at a
// time. Concurrent GetOrSet calls for a missing key run the supplier once and
// all observe its result.
type Locked struct {
	inner Strategy
	locks *lockMap
}

// NewLocked wraps inner.
func NewLocked(inner Strategy) *Locked {
	return &Locked{
		inner: inner,
		locks: &lockMap{locks: make(map[uint64]*sync.RWMutex)},
	}
}

// Get implements Strategy under the key's read lock.
func (l *Locked) Get(ctx context.Context, key uint64, out any) (bool, error) {
	m := l.locks.get(key)
	m.RLock()
	defer m.RUnlock()
	return l.inner.Get(ctx, key, out)
}

// Set implements Strategy under the key's write lock.
func (l *Locked) Set(ctx context.Context, key uint64, value any) error {
	m := l.locks.get(key)
	m.Lock()
	defer m.Unlock()
	return l.inner.Set(ctx, key, value)
}

// GetOrSet implements Strategy. The key's write lock is held across the
// lookup, the supplier and the store.
func (l *Locked) GetOrSet(ctx context.Context, key uint64, out any, supplier Supplier) error {
	m := l.locks.get(key)
	m.Lock()
	defer m.Unlock()
	return getOrSet(ctx, l.inner, key, out, supplier)
}

// Clear implements Strategy.
func (l *Locked) Clear(ctx context.Context) error {
	return l.inner.Clear(ctx)
}

// WithExpiration implements Strategy. The returned cache shares both the
// storage and the lock map.
func (l *Locked) WithExpiration(policy Expiration) Strategy {
	return &Locked{inner: l.inner.WithExpiration(policy), locks: l.locks}
}
