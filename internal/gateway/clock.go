package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmagro/novax/internal/caching"
)

// NetworkClock tells block boundaries from the round duration and start time
// the gateway reports. The network config is fetched on first use; a failed
// fetch is retried on the next call.
type NetworkClock struct {
	client *Client

	mu    sync.Mutex
	clock *caching.RoundClock
}

var _ caching.BlockClock = (*NetworkClock)(nil)

// NewNetworkClock creates a clock reading the network config from client.
func NewNetworkClock(client *Client) *NetworkClock {
	return &NetworkClock{client: client}
}

// NextBlockStart implements caching.BlockClock.
func (c *NetworkClock) NextBlockStart(ctx context.Context, now time.Time) (time.Time, error) {
	clock, err := c.load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return clock.NextBlockStart(ctx, now)
}

func (c *NetworkClock) load(ctx context.Context) (caching.RoundClock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clock != nil {
		return *c.clock, nil
	}
	cfg, err := c.client.GetNetworkConfig(ctx)
	if err != nil {
		return caching.RoundClock{}, fmt.Errorf("block clock: %w", err)
	}
	if cfg.Round() <= 0 {
		return caching.RoundClock{}, fmt.Errorf("%w: round duration %d", ErrParse, cfg.RoundDuration)
	}
	c.clock = &caching.RoundClock{Genesis: cfg.Genesis(), Round: cfg.Round()}
	return *c.clock, nil
}
