package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/cooldown.lua
var cooldownScript string

type Client struct {
	rdb            *redis.Client
	cooldownScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewClientFromRedis(rdb), nil
}

// NewClientFromRedis wraps an existing Redis connection
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:            rdb,
		cooldownScript: redis.NewScript(cooldownScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func stockCountKey(code string) string {
	return fmt.Sprintf("stock:count:%s", code)
}

// GetStockCount returns the cached available count of a product.
// The second return value is false on a cache miss.
func (c *Client) GetStockCount(ctx context.Context, code string) (int, bool, error) {
	val, err := c.rdb.Get(ctx, stockCountKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get stock count failed: %w", err)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		// corrupt entry, treat as a miss
		c.rdb.Del(ctx, stockCountKey(code))
		return 0, false, nil
	}
	return count, true, nil
}

// SetStockCount caches the available count of a product
func (c *Client) SetStockCount(ctx context.Context, code string, count int, ttl time.Duration) error {
	return c.rdb.Set(ctx, stockCountKey(code), count, ttl).Err()
}

// InvalidateStockCount drops the cached counts of the given products
func (c *Client) InvalidateStockCount(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(codes))
	for _, code := range codes {
		keys = append(keys, stockCountKey(code))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// StartCooldown starts a cooldown for key unless one is already running.
// It returns the time left on a running cooldown, or zero when a new one started.
func (c *Client) StartCooldown(ctx context.Context, key string, cooldown time.Duration) (time.Duration, error) {
	result, err := c.cooldownScript.Run(ctx, c.rdb,
		[]string{fmt.Sprintf("cooldown:%s", key)}, cooldown.Milliseconds()).Result()
	if err != nil {
		return 0, fmt.Errorf("cooldown script failed: %w", err)
	}

	left, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	return time.Duration(left) * time.Millisecond, nil
}

// ClaimIdempotencyKey records key and reports whether this is its first use
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), "1", ttl).Result()
}

// ReleaseIdempotencyKey forgets key so that a failed request can be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
