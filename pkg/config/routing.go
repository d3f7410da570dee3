package config

// RoutingConfig controls candidate scoring and the fixed routing heuristics.
type RoutingConfig struct {
	// Scoring weights. They should sum to 1.0 but the router does not
	// normalize — the weights are relative.
	PerformanceWeight  float64 `json:"performance_weight" validate:"gte=0"`
	AvailabilityWeight float64 `json:"availability_weight" validate:"gte=0"`
	CostWeight         float64 `json:"cost_weight" validate:"gte=0"`
	ResponseTimeWeight float64 `json:"response_time_weight" validate:"gte=0"`

	// Priority boosts multiply the final candidate score.
	EmergencyBoost float64 `json:"emergency_boost" validate:"gte=1"`
	CriticalBoost  float64 `json:"critical_boost" validate:"gte=1"`

	// CostFilterTokens is the fixed token count used by the pre-filter
	// cost estimate (cost_per_token × CostFilterTokens ≤ max_cost).
	// Budget enforcement at submission time is authoritative.
	CostFilterTokens int `json:"cost_filter_tokens" validate:"min=1"`
}

// DefaultRoutingConfig returns the built-in routing defaults.
func DefaultRoutingConfig() *RoutingConfig {
	return &RoutingConfig{
		PerformanceWeight:  0.40,
		AvailabilityWeight: 0.25,
		CostWeight:         0.20,
		ResponseTimeWeight: 0.15,
		EmergencyBoost:     1.5,
		CriticalBoost:      1.2,
		CostFilterTokens:   1000,
	}
}
