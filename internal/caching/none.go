package caching

import "context"

// None caches nothing. GetOrSet always calls the supplier.
type None struct{}

// Get implements Strategy. It always misses.
func (None) Get(context.Context, uint64, any) (bool, error) { return false, nil }

// Set implements Strategy. It drops the value.
func (None) Set(context.Context, uint64, any) error { return nil }

// GetOrSet implements Strategy.
func (None) GetOrSet(ctx context.Context, _ uint64, out any, supplier Supplier) error {
	value, err := supplier(ctx)
	if err != nil {
		return err
	}
	return assign(value, out)
}

// Clear implements Strategy.
func (None) Clear(context.Context) error { return nil }

// WithExpiration implements Strategy.
func (n None) WithExpiration(Expiration) Strategy { return n }
