package config

import "time"

// RetentionConfig controls in-memory history retention and KV record TTLs.
type RetentionConfig struct {
	// HistoryWindow is how long completed/failed tasks stay in the
	// coordinator's in-memory history before cleanup drops them.
	HistoryWindow time.Duration `json:"history_window"`

	// TaskRecordTTL is the KV TTL for per-task usage records, kept longer
	// than the in-memory history for analytics.
	TaskRecordTTL time.Duration `json:"task_record_ttl"`

	// RollupTTL is the KV TTL for daily token/cost rollup counters.
	RollupTTL time.Duration `json:"rollup_ttl"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		HistoryWindow: 24 * time.Hour,
		TaskRecordTTL: 7 * 24 * time.Hour,
		RollupTTL:     30 * 24 * time.Hour,
	}
}
