package caching

import (
	"context"
	"fmt"
	"time"
)

// Expiration decides when an entry stored at now expires.
type Expiration interface {
	ExpiresAt(ctx context.Context, now time.Time) (time.Time, error)
}

type fixedDuration time.Duration

// For expires entries d after they are stored.
func For(d time.Duration) Expiration { return fixedDuration(d) }

func (d fixedDuration) ExpiresAt(_ context.Context, now time.Time) (time.Time, error) {
	return now.Add(time.Duration(d)), nil
}

// BlockClock tells when the next block starts.
type BlockClock interface {
	NextBlockStart(ctx context.Context, now time.Time) (time.Time, error)
}

// RoundClock derives block boundaries from the chain start time and a fixed
// round duration.
type RoundClock struct {
	Genesis time.Time
	Round   time.Duration
}

// NextBlockStart implements BlockClock.
func (c RoundClock) NextBlockStart(_ context.Context, now time.Time) (time.Time, error) {
	if c.Round <= 0 {
		return time.Time{}, fmt.Errorf("caching: round duration must be positive, got %s", c.Round)
	}
	if now.Before(c.Genesis) {
		return c.Genesis, nil
	}
	elapsed := now.Sub(c.Genesis)
	next := (elapsed/c.Round + 1) * c.Round
	return c.Genesis.Add(next), nil
}

type untilNextBlock struct{ clock BlockClock }

// UntilNextBlock expires entries when the next block starts, so a cached
// query never outlives the state it was read from.
func UntilNextBlock(clock BlockClock) Expiration { return untilNextBlock{clock} }

func (u untilNextBlock) ExpiresAt(ctx context.Context, now time.Time) (time.Time, error) {
	return u.clock.NextBlockStart(ctx, now)
}
