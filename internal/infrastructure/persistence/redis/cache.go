// Package redis implements the Redis caching layer of the mastery engine.
// Everything cached here is derived data with a bounded TTL; a cold or broken
// cache only costs extra store reads, never correctness.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes. Keeping them in one place avoids collisions between engine
// instances sharing a Redis database.
const (
	prefixLeaderboard = "mastery:leaderboard:"
)

// DefaultLeaderboardTTL bounds leaderboard staleness when an invalidation is
// lost.
const DefaultLeaderboardTTL = 5 * time.Minute

// ErrCacheMiss marks an absent key.
var ErrCacheMiss = errors.New("redis: cache miss")

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DefaultConfig returns sensible defaults for a local Redis.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// NewClient creates and verifies a go-redis client.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to ping: %w", err)
	}
	return client, nil
}

// Cache is a thin JSON-over-Redis helper shared by the typed caches in this
// package.
type Cache struct {
	client *redis.Client
}

// NewCache creates a new Cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Set marshals value and stores it under key with a TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Get loads key into dst, returning ErrCacheMiss when absent.
func (c *Cache) Get(ctx context.Context, key string, dst interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("redis: unmarshal %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: delete: %w", err)
	}
	return nil
}
