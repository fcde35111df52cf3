// Package cache implements the session cache: a TTL-based key-value store
// holding serialized user snapshots so that authenticated requests do not hit
// the user directory every time. The directory stays authoritative; every
// cache failure is treated by callers as a miss.
package cache

import (
	"context"
	"time"
)

// Cache is the minimal key-value contract the session cache needs.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value stored under key, or common.ErrCacheMiss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key without touching its TTL.
	Set(ctx context.Context, key string, value string) error

	// Expire sets the remaining lifetime of key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Close releases the underlying connection.
	Close() error
}
