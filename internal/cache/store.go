// Package cache provides the TTL-capable counter store behind the rate
// limiter, the health monitor, and opt-out flags. The interface is injected
// rather than using ambient shared state so counters can be partitioned per
// tenant and swapped for an in-memory implementation in tests.
package cache

import (
	"context"
	"time"
)

// Store is a minimal atomic counter/flag store with per-key expiry.
type Store interface {
	// Incr atomically increments key and, when the key is created by this
	// call (value 1) and ttl > 0, starts its expiry window.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the counter value, or 0 when the key is absent.
	Get(ctx context.Context, key string) (int64, error)

	// Set overwrites the counter. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error

	// TTL returns the remaining lifetime of key, or 0 when the key is absent
	// or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	Del(ctx context.Context, keys ...string) error

	// SetNX sets a flag only if absent, returning whether it was set.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Exists(ctx context.Context, key string) (bool, error)
}
