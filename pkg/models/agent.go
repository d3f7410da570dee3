// Package models defines the core mesh data model: agents, tasks, skills,
// and usage records, together with their derived predicates.
package models

import "time"

// AgentStatus represents the lifecycle state of a registered agent.
type AgentStatus string

// Agent status constants.
const (
	AgentStatusIdle        AgentStatus = "idle"
	AgentStatusActive      AgentStatus = "active"
	AgentStatusBusy        AgentStatus = "busy"
	AgentStatusError       AgentStatus = "error"
	AgentStatusMaintenance AgentStatus = "maintenance"
)

// Valid reports whether s is a known agent status.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusActive, AgentStatusBusy, AgentStatusError, AgentStatusMaintenance:
		return true
	}
	return false
}

// HeartbeatStaleness is how long an agent may go without a heartbeat before
// it is excluded from routing candidates regardless of its status.
const HeartbeatStaleness = 2 * time.Minute

// AgentPerformance tracks the cumulative execution counters for one agent.
type AgentPerformance struct {
	TotalTasks          int       `json:"total_tasks"`
	CompletedTasks      int       `json:"completed_tasks"`
	FailedTasks         int       `json:"failed_tasks"`
	AverageResponseTime float64   `json:"average_response_time"` // seconds, running mean
	TokensUsed          int       `json:"tokens_used"`
	CostIncurred        float64   `json:"cost_incurred"`
	LastActivity        time.Time `json:"last_activity"`
}

// Agent is a worker that declares capabilities and accepts routed tasks.
type Agent struct {
	AgentID            string           `json:"agent_id" validate:"required"`
	Name               string           `json:"name" validate:"required"`
	Capabilities       []string         `json:"capabilities" validate:"required,min=1"`
	Status             AgentStatus      `json:"status"`
	MaxConcurrentTasks int              `json:"max_concurrent_tasks" validate:"required,min=1"`
	CurrentTasks       int              `json:"current_tasks"`
	PriorityTier       int              `json:"priority_tier"`
	CostPerToken       float64          `json:"cost_per_token" validate:"gte=0"`
	SLAResponseSeconds float64          `json:"sla_response_seconds" validate:"gte=0"`
	Performance        AgentPerformance `json:"performance"`
	Endpoint           string           `json:"endpoint"`
	HealthCheckURL     string           `json:"health_check_url"`
	LastHeartbeat      time.Time        `json:"last_heartbeat"`
}

// IsAvailable reports whether the agent can accept a new task at the given
// instant: idle, below its concurrency cap, and heartbeat fresh.
func (a *Agent) IsAvailable(now time.Time) bool {
	if a.Status != AgentStatusIdle {
		return false
	}
	if a.CurrentTasks >= a.MaxConcurrentTasks {
		return false
	}
	return now.Sub(a.LastHeartbeat) <= HeartbeatStaleness
}

// Load returns the agent's current load fraction in [0, 1].
func (a *Agent) Load() float64 {
	if a.MaxConcurrentTasks <= 0 {
		return 1.0
	}
	return float64(a.CurrentTasks) / float64(a.MaxConcurrentTasks)
}

// SuccessRate returns the agent's completion percentage. Agents with no
// history default to 100 so new agents are not penalized by the router.
func (a *Agent) SuccessRate() float64 {
	if a.Performance.TotalTasks == 0 {
		return 100.0
	}
	return float64(a.Performance.CompletedTasks) / float64(a.Performance.TotalTasks) * 100.0
}

// HasCapabilities reports whether the agent's declared capability set covers
// every required capability (set inclusion over opaque tags).
func (a *Agent) HasCapabilities(required []string) bool {
	if len(required) == 0 {
		return true
	}
	declared := make(map[string]struct{}, len(a.Capabilities))
	for _, c := range a.Capabilities {
		declared[c] = struct{}{}
	}
	for _, c := range required {
		if _, ok := declared[c]; !ok {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to hand outside the coordinator lock.
func (a *Agent) Clone() *Agent {
	cp := *a
	cp.Capabilities = append([]string(nil), a.Capabilities...)
	return &cp
}
