package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Store binding on go-redis.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the given redis:// URL and verifies connectivity.
func NewRedis(ctx context.Context, url string, dialTimeout time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = dialTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client (used by tests with miniredis).
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get unmarshals the JSON value at key into dest.
func (r *Redis) Get(ctx context.Context, key string, dest any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("redis get %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode value at %q: %w", key, err)
	}
	return nil
}

// Set stores the JSON encoding of value at key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Incr atomically adds n to the counter at key, applying TTL on creation.
func (r *Redis) Incr(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	val, err := r.client.IncrBy(ctx, key, n).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrby %q: %w", key, err)
	}
	r.applyTTLOnCreation(ctx, key, ttl)
	return val, nil
}

// IncrByFloat atomically adds x to the counter at key, applying TTL on creation.
func (r *Redis) IncrByFloat(ctx context.Context, key string, x float64, ttl time.Duration) (float64, error) {
	val, err := r.client.IncrByFloat(ctx, key, x).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrbyfloat %q: %w", key, err)
	}
	r.applyTTLOnCreation(ctx, key, ttl)
	return val, nil
}

// applyTTLOnCreation sets the TTL only when the key has none yet, anchoring
// rollup expiry to the first write of the window.
func (r *Redis) applyTTLOnCreation(ctx context.Context, key string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	// NX variant: no-op when a TTL is already set.
	r.client.ExpireNX(ctx, key, ttl)
}

// Keys returns keys matching a glob-style pattern via SCAN.
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %q: %w", pattern, err)
	}
	return keys, nil
}

// Delete removes a key. Missing keys are not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
