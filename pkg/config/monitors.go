package config

import "time"

// MonitorConfig controls the four background governance monitors.
type MonitorConfig struct {
	// HealthInterval is how often agent health URLs are probed.
	HealthInterval time.Duration `json:"health_interval"`

	// CostInterval is how often current-hour cost is evaluated against
	// the budget ceilings.
	CostInterval time.Duration `json:"cost_interval"`

	// PerformanceInterval is how often queue wait and load imbalance are
	// evaluated.
	PerformanceInterval time.Duration `json:"performance_interval"`

	// CleanupInterval is how often task history is pruned.
	CleanupInterval time.Duration `json:"cleanup_interval"`

	// QueueWaitThreshold triggers the auto-scale hook when the average
	// pending-task wait exceeds it.
	QueueWaitThreshold time.Duration `json:"queue_wait_threshold"`

	// LoadImbalanceThreshold triggers the rebalance hook when
	// max(load) − min(load) across agents exceeds it.
	LoadImbalanceThreshold float64 `json:"load_imbalance_threshold" validate:"gte=0,lte=1"`

	// HealthProbeTimeout bounds each individual agent health probe.
	HealthProbeTimeout time.Duration `json:"health_probe_timeout"`
}

// DefaultMonitorConfig returns the built-in monitor defaults.
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		HealthInterval:         30 * time.Second,
		CostInterval:           5 * time.Minute,
		PerformanceInterval:    2 * time.Minute,
		CleanupInterval:        1 * time.Hour,
		QueueWaitThreshold:     30 * time.Second,
		LoadImbalanceThreshold: 0.3,
		HealthProbeTimeout:     5 * time.Second,
	}
}
