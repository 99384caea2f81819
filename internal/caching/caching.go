// Package caching provides pluggable key/value caches for query results.
//
// Strategies compose by wrapping: Locked adds single-flight population to any
// strategy and Multi stacks two strategies into tiers. Every strategy stores
// serialized values, so a value read back is a copy of what was stored.
package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrSerialize is returned when a value cannot be serialized for storage.
	ErrSerialize = errors.New("caching: cannot serialize value")

	// ErrDeserialize is returned when a stored value cannot be read back into
	// the requested type.
	ErrDeserialize = errors.New("caching: cannot deserialize value")
)

// Supplier computes the value for a key missing from the cache.
type Supplier func(ctx context.Context) (any, error)

// Strategy is a key/value cache keyed by request fingerprints.
type Strategy interface {
	// Get reads the value for key into out, which must be a pointer. It
	// reports whether the key was present and not expired.
	Get(ctx context.Context, key uint64, out any) (bool, error)

	// Set stores value under key with the strategy's expiration policy.
	Set(ctx context.Context, key uint64, value any) error

	// GetOrSet reads the value for key into out, calling supplier and
	// storing its result when the key is missing.
	GetOrSet(ctx context.Context, key uint64, out any, supplier Supplier) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// WithExpiration returns a strategy sharing the same storage that
	// stores new entries with policy.
	WithExpiration(policy Expiration) Strategy
}

// Get is the typed form of Strategy.Get.
func Get[T any](ctx context.Context, s Strategy, key uint64) (T, bool, error) {
	var out T
	found, err := s.Get(ctx, key, &out)
	return out, found, err
}

// Set is the typed form of Strategy.Set.
func Set[T any](ctx context.Context, s Strategy, key uint64, value T) error {
	return s.Set(ctx, key, value)
}

// GetOrSet is the typed form of Strategy.GetOrSet.
func GetOrSet[T any](ctx context.Context, s Strategy, key uint64, supplier func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := s.GetOrSet(ctx, key, &out, func(ctx context.Context) (any, error) {
		return supplier(ctx)
	})
	return out, err
}

// getOrSet implements GetOrSet on top of a strategy's own Get and Set.
func getOrSet(ctx context.Context, s Strategy, key uint64, out any, supplier Supplier) error {
	found, err := s.Get(ctx, key, out)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	value, err := supplier(ctx)
	if err != nil {
		return err
	}
	if err := s.Set(ctx, key, value); err != nil {
		return err
	}
	return assign(value, out)
}

func serialize(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	return data, nil
}

func deserialize(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialize, err)
	}
	return nil
}

// assign copies value into out through the storage encoding, so a supplied
// value and a cached one look the same to the caller.
func assign(value any, out any) error {
	data, err := serialize(value)
	if err != nil {
		return err
	}
	return deserialize(data, out)
}
