// Package cache stores computed leaderboards between requests.
//
// Values are opaque bytes (the API stores JSON). Entries are never
// invalidated by key; instead every ledger write bumps a generation counter
// that is part of the key, so stale leaderboards simply stop being read and
// age out by TTL or LRU eviction.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is implemented by LRUCache and RedisCache.
type Cache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Incr atomically increments a counter that never expires.
	Incr(ctx context.Context, key string) (int64, error)

	// Counter reads a counter without changing it. Missing counters are 0.
	Counter(ctx context.Context, key string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a cache.
type Config struct {
	// Type is "memory" or "redis".
	Type string

	MaxEntries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New creates a cache based on configuration.
func New(cfg Config) (Cache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewLRUCache(cfg.MaxEntries), nil
	case "redis":
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
