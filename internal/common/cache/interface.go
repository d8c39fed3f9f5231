// Package cache wraps the redis client used for rate-limit counters.
package cache

import (
	"context"
	"time"
)

// Cache is the key-value client used by the service.
type Cache interface {
	BasicOps
	Ping(ctx context.Context) error
	Close() error
}

// BasicOps defines the key-value operations needed for counters and flags.
type BasicOps interface {
	// Get retrieves the value for the given key. A missing key returns "" and no error.
	Get(ctx context.Context, key string) (string, error)

	// SetNX sets the value only if the key does not exist.
	// Returns true if the key was set, false if it already existed
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Expire sets a timeout on a key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining time to live of a key.
	// Negative values mean no expiration or no key.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Incr increments the integer value of a key by 1
	Incr(ctx context.Context, key string) (int64, error)
}
