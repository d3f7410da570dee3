// Package kv defines the typed key/value port used by the coordinator and
// token tracker, with Redis and in-memory bindings. Values are JSON-encoded;
// counters use atomic increments so daily rollups stay monotonic under
// concurrent writers.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the key does not exist or has expired.
var ErrNotFound = errors.New("key not found")

// Store is the KV port. TTL ≤ 0 means the key does not expire.
type Store interface {
	// Get unmarshals the JSON value at key into dest.
	Get(ctx context.Context, key string, dest any) error

	// Set stores the JSON encoding of value at key with the given TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Incr atomically adds n to an integer counter and returns the new
	// value. Creates the key at n when absent; TTL is applied only on
	// creation so rollup windows are anchored to first write.
	Incr(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error)

	// IncrByFloat atomically adds x to a float counter and returns the
	// new value, with the same TTL-on-creation semantics as Incr.
	IncrByFloat(ctx context.Context, key string, x float64, ttl time.Duration) (float64, error)

	// Keys returns keys matching a glob-style pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
