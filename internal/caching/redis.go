package caching

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of a Redis client the Redis strategy needs.
type redisClient interface {
	// Get returns the stored bytes and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Scan returns one batch of keys matching pattern and the cursor of the
	// next batch, 0 once the iteration is complete.
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)
	Del(ctx context.Context, keys ...string) error
	Close() error
}

type goRedisClient struct {
	client *redis.Client
}

var _ redisClient = (*goRedisClient)(nil)

func (c *goRedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *goRedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *goRedisClient) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	return c.client.Scan(ctx, cursor, pattern, count).Result()
}

func (c *goRedisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *goRedisClient) Close() error {
	return c.client.Close()
}

// RedisConfig configures a Redis strategy.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, so several caches can share one
	// database and Clear only removes this cache's keys.
	Prefix string
}

// Redis stores entries in a Redis server with a per-key expiration.
type Redis struct {
	client redisClient
	prefix string
	policy Expiration
	now    func() time.Time
}

// NewRedis connects to the server described by cfg.
func NewRedis(ctx context.Context, cfg RedisConfig, policy Expiration) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("caching: redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("caching: connect to redis %s: %w", cfg.Addr, err)
	}

	return newRedis(&goRedisClient{client: client}, cfg.Prefix, policy), nil
}

func newRedis(client redisClient, prefix string, policy Expiration) *Redis {
	return &Redis{client: client, prefix: prefix, policy: policy, now: time.Now}
}

func (r *Redis) key(key uint64) string {
	return r.prefix + strconv.FormatUint(key, 16)
}

// Get implements Strategy.
func (r *Redis) Get(ctx context.Context, key uint64, out any) (bool, error) {
	data, found, err := r.client.Get(ctx, r.key(key))
	if err != nil {
		return false, fmt.Errorf("caching: redis get: %w", err)
	}
	if !found {
		return false, nil
	}
	return true, deserialize(data, out)
}

// Set implements Strategy. An entry whose expiration has already passed is
// not stored.
func (r *Redis) Set(ctx context.Context, key uint64, value any) error {
	data, err := serialize(value)
	if err != nil {
		return err
	}

	now := r.now()
	exp, err := r.policy.ExpiresAt(ctx, now)
	if err != nil {
		return err
	}
	ttl := exp.Sub(now)
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, r.key(key), data, ttl); err != nil {
		return fmt.Errorf("caching: redis set: %w", err)
	}
	return nil
}

// GetOrSet implements Strategy.
func (r *Redis) GetOrSet(ctx context.Context, key uint64, out any, supplier Supplier) error {
	return getOrSet(ctx, r, key, out, supplier)
}

// clearBatch is the SCAN count hint used by Clear.
const clearBatch = 100

// Clear implements Strategy. It removes the keys under the cache's prefix,
// one SCAN batch at a time.
func (r *Redis) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", clearBatch)
		if err != nil {
			return fmt.Errorf("caching: redis scan: %w", err)
		}
		if err := r.client.Del(ctx, keys...); err != nil {
			return fmt.Errorf("caching: redis del: %w", err)
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// WithExpiration implements Strategy.
func (r *Redis) WithExpiration(policy Expiration) Strategy {
	return &Redis{client: r.client, prefix: r.prefix, policy: policy, now: r.now}
}

// Close releases the connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
