package coordinator

import (
	"log/slog"
	"time"
)

// AutoScaler is invoked by the performance monitor when pending tasks wait
// too long for assignment.
type AutoScaler interface {
	ScaleUp(pending int, avgWait time.Duration)
}

// Rebalancer is invoked by the performance monitor when agent load spread
// exceeds the imbalance threshold.
type Rebalancer interface {
	Rebalance(loads map[string]float64)
}

// ActivityReducer is invoked by the cost monitor when realized spend crosses
// the soft hourly ceiling.
type ActivityReducer interface {
	ReduceActivity(currentCost, limit float64)
}

// EmergencyAlerter is notified when an emergency shutdown fires.
type EmergencyAlerter interface {
	EmergencyAlert(reason string)
}

// Hooks bundles the capability interfaces the monitors call into. Nil fields
// are replaced with logging no-ops.
type Hooks struct {
	AutoScaler      AutoScaler
	Rebalancer      Rebalancer
	ActivityReducer ActivityReducer
	EmergencyAlert  EmergencyAlerter
}

func (h Hooks) withDefaults() Hooks {
	noop := noopHooks{logger: slog.With("component", "mesh_hooks")}
	if h.AutoScaler == nil {
		h.AutoScaler = noop
	}
	if h.Rebalancer == nil {
		h.Rebalancer = noop
	}
	if h.ActivityReducer == nil {
		h.ActivityReducer = noop
	}
	if h.EmergencyAlert == nil {
		h.EmergencyAlert = noop
	}
	return h
}

// noopHooks logs each invocation and does nothing else.
type noopHooks struct {
	logger *slog.Logger
}

func (n noopHooks) ScaleUp(pending int, avgWait time.Duration) {
	n.logger.Info("Auto-scale requested", "pending", pending, "avg_wait", avgWait)
}

func (n noopHooks) Rebalance(loads map[string]float64) {
	n.logger.Info("Rebalance requested", "agents", len(loads))
}

func (n noopHooks) ReduceActivity(currentCost, limit float64) {
	n.logger.Warn("Activity reduction requested", "current_cost", currentCost, "limit", limit)
}

func (n noopHooks) EmergencyAlert(reason string) {
	n.logger.Error("EMERGENCY ALERT", "reason", reason)
}
