package config

import "time"

// KVConfig holds the connection settings for the Redis-backed KV port.
// An empty URL means no external KV: the coordinator runs memory-only and
// the token tracker degrades to no-op writes.
type KVConfig struct {
	URL string `json:"url"`

	// DialTimeout bounds the initial connection attempt.
	DialTimeout time.Duration `json:"dial_timeout"`

	// QuotaBucketTTL is the TTL on per-requester hourly quota counters.
	QuotaBucketTTL time.Duration `json:"quota_bucket_ttl"`
}

// DefaultKVConfig returns the built-in KV defaults.
func DefaultKVConfig() *KVConfig {
	return &KVConfig{
		URL:            "",
		DialTimeout:    5 * time.Second,
		QuotaBucketTTL: 1 * time.Hour,
	}
}
