package caching

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// localStore is the storage shared by every Local bound to it.
//
// Lock order is values then expirations. Readers take the expirations lock
// first and release it before reading the value; writers hold both, so an
// entry is never visible with an expiration but no value written by the same
// Set.
type localStore struct {
	valuesMu sync.RWMutex
	values   map[uint64][]byte

	expMu       sync.RWMutex
	expirations map[uint64]time.Time

	now    func() time.Time
	logger zerolog.Logger

	sweepInterval time.Duration
	sweepOnce     sync.Once
	sweepCancel   context.CancelFunc
	sweepGroup    *errgroup.Group
	sweepMu       sync.Mutex
}

// Local is an in-process cache with per-entry expiration.
type Local struct {
	store  *localStore
	policy Expiration
}

// LocalOption configures a Local cache.
type LocalOption func(*localStore)

// WithSweepInterval sets how often Start removes expired entries.
func WithSweepInterval(d time.Duration) LocalOption {
	return func(s *localStore) { s.sweepInterval = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) LocalOption {
	return func(s *localStore) { s.now = now }
}

// WithLogger sets the logger used by the sweep task.
func WithLogger(l zerolog.Logger) LocalOption {
	return func(s *localStore) { s.logger = l }
}

// NewLocal creates an empty cache whose entries expire according to policy.
func NewLocal(policy Expiration, opts ...LocalOption) *Local {
	s := &localStore{
		values:        make(map[uint64][]byte),
		expirations:   make(map[uint64]time.Time),
		now:           time.Now,
		logger:        zerolog.Nop(),
		sweepInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return &Local{store: s, policy: policy}
}

// Get implements Strategy. An expired entry is deleted and reported missing.
func (l *Local) Get(_ context.Context, key uint64, out any) (bool, error) {
	s := l.store

	s.expMu.RLock()
	exp, ok := s.expirations[key]
	s.expMu.RUnlock()
	if !ok {
		return false, nil
	}

	if !s.now().Before(exp) {
		s.removeIfExpired(key)
		return false, nil
	}

	s.valuesMu.RLock()
	data, ok := s.values[key]
	s.valuesMu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, deserialize(data, out)
}

// Set implements Strategy.
func (l *Local) Set(ctx context.Context, key uint64, value any) error {
	data, err := serialize(value)
	if err != nil {
		return err
	}

	s := l.store
	exp, err := l.policy.ExpiresAt(ctx, s.now())
	if err != nil {
		return err
	}

	s.valuesMu.Lock()
	defer s.valuesMu.Unlock()
	s.values[key] = data

	s.expMu.Lock()
	s.expirations[key] = exp
	s.expMu.Unlock()
	return nil
}

// GetOrSet implements Strategy. Concurrent callers may each run the supplier;
// wrap the cache with Locked for single-flight population.
func (l *Local) GetOrSet(ctx context.Context, key uint64, out any, supplier Supplier) error {
	return getOrSet(ctx, l, key, out, supplier)
}

// Clear implements Strategy.
func (l *Local) Clear(context.Context) error {
	s := l.store
	s.valuesMu.Lock()
	defer s.valuesMu.Unlock()
	s.expMu.Lock()
	defer s.expMu.Unlock()

	s.values = make(map[uint64][]byte)
	s.expirations = make(map[uint64]time.Time)
	return nil
}

// WithExpiration implements Strategy.
func (l *Local) WithExpiration(policy Expiration) Strategy {
	return &Local{store: l.store, policy: policy}
}

// Len returns the number of stored entries, expired or not.
func (l *Local) Len() int {
	l.store.valuesMu.RLock()
	defer l.store.valuesMu.RUnlock()
	return len(l.store.values)
}

// Start launches the background sweep. Only the first call on a storage
// starts it; it runs until ctx is cancelled or Close is called.
func (l *Local) Start(ctx context.Context) {
	s := l.store
	s.sweepOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(ctx)

		s.sweepMu.Lock()
		s.sweepCancel = cancel
		s.sweepGroup = g
		s.sweepMu.Unlock()

		g.Go(func() error {
			ticker := time.NewTicker(s.sweepInterval)
			defer ticker.Stop()

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := s.sweep(); n > 0 {
						s.logger.Debug().Int("removed", n).Msg("cache sweep")
					}
				}
			}
		})
	})
}

// Close stops the background sweep and waits for it to exit.
func (l *Local) Close() error {
	s := l.store
	s.sweepMu.Lock()
	cancel, g := s.sweepCancel, s.sweepGroup
	s.sweepMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return g.Wait()
}

// sweep removes every expired entry and returns how many were removed. The
// expirations are snapshotted first; each key is re-checked under lock
// because a concurrent Set may have refreshed it.
func (s *localStore) sweep() int {
	now := s.now()

	s.expMu.RLock()
	var expired []uint64
	for key, exp := range s.expirations {
		if !now.Before(exp) {
			expired = append(expired, key)
		}
	}
	s.expMu.RUnlock()

	removed := 0
	for _, key := range expired {
		if s.removeIfExpired(key) {
			removed++
		}
	}
	return removed
}

func (s *localStore) removeIfExpired(key uint64) bool {
	s.valuesMu.Lock()
	defer s.valuesMu.Unlock()
	s.expMu.Lock()
	defer s.expMu.Unlock()

	exp, ok := s.expirations[key]
	if !ok || s.now().Before(exp) {
		return false
	}
	delete(s.values, key)
	delete(s.expirations, key)
	return true
}
