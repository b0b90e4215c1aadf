// Package cache provides the TTL key-value substrate and the session and
// metadata stores built on top of it.
//
// Absence is uniform: a key that never existed, a key whose TTL elapsed and
// a store that is unreachable all read back as "not there". Callers cannot
// distinguish the three, which keeps their remedy identical (recompute).
package cache

import (
	"context"
	"time"
)

// Store is a key-value capability with per-key expiry. Implementations must
// be safe for concurrent use.
type Store interface {
	// Put stores value under key with the given TTL, overwriting any
	// existing entry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value for key, or ok=false when absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Ping reports whether the store is reachable. Used by health checks.
	Ping(ctx context.Context) error
}
