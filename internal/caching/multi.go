package caching

import (
	"context"
	"fmt"
)

// Multi stacks two strategies. Reads prefer the first tier and fall back to
// the second; writes and clears go to both and fail if either fails.
type Multi struct {
	first  Strategy
	second Strategy
}

// NewMulti combines first (usually fast and local) with second.
func NewMulti(first, second Strategy) *Multi {
	return &Multi{first: first, second: second}
}

// Get implements Strategy.
func (m *Multi) Get(ctx context.Context, key uint64, out any) (bool, error) {
	found, err := m.first.Get(ctx, key, out)
	if err != nil {
		return false, fmt.Errorf("first tier: %w", err)
	}
	if found {
		return true, nil
	}

	found, err = m.second.Get(ctx, key, out)
	if err != nil {
		return false, fmt.Errorf("second tier: %w", err)
	}
	return found, nil
}

// Set implements Strategy.
func (m *Multi) Set(ctx context.Context, key uint64, value any) error {
	if err := m.first.Set(ctx, key, value); err != nil {
		return fmt.Errorf("first tier: %w", err)
	}
	if err := m.second.Set(ctx, key, value); err != nil {
		return fmt.Errorf("second tier: %w", err)
	}
	return nil
}

// GetOrSet implements Strategy with Multi's own Get and Set.
func (m *Multi) GetOrSet(ctx context.Context, key uint64, out any, supplier Supplier) error {
	return getOrSet(ctx, m, key, out, supplier)
}

// Clear implements Strategy.
func (m *Multi) Clear(ctx context.Context) error {
	if err := m.first.Clear(ctx); err != nil {
		return fmt.Errorf("first tier: %w", err)
	}
	if err := m.second.Clear(ctx); err != nil {
		return fmt.Errorf("second tier: %w", err)
	}
	return nil
}

// WithExpiration implements Strategy, rebinding both tiers.
func (m *Multi) WithExpiration(policy Expiration) Strategy {
	return &Multi{first: m.first.WithExpiration(policy), second: m.second.WithExpiration(policy)}
}
