package config

// BudgetConfig holds cost governance ceilings and per-requester quotas.
type BudgetConfig struct {
	// MaxTotalCostPerHour is the soft ceiling for current-hour spend.
	// Submissions whose max_cost would push the projection above it are
	// rejected; the cost monitor warns and invokes the activity-reduction
	// hook when realized spend crosses it.
	MaxTotalCostPerHour float64 `json:"max_total_cost_per_hour" validate:"gte=0"`

	// EmergencyShutdownThreshold is the hard ceiling. Crossing it makes
	// the cost monitor trigger an emergency shutdown.
	EmergencyShutdownThreshold float64 `json:"emergency_shutdown_threshold" validate:"gte=0"`

	// MaxTasksPerUserPerHour caps submissions per requester per clock hour.
	MaxTasksPerUserPerHour int `json:"max_tasks_per_user_per_hour" validate:"min=1"`
}

// DefaultBudgetConfig returns the built-in budget defaults.
func DefaultBudgetConfig() *BudgetConfig {
	return &BudgetConfig{
		MaxTotalCostPerHour:        100.0,
		EmergencyShutdownThreshold: 150.0,
		MaxTasksPerUserPerHour:     20,
	}
}
