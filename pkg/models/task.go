package models

import "time"

// TaskPriority orders tasks for routing. Higher values are routed first.
type TaskPriority int

// Task priority levels.
const (
	PriorityLow       TaskPriority = 1
	PriorityNormal    TaskPriority = 2
	PriorityHigh      TaskPriority = 3
	PriorityCritical  TaskPriority = 4
	PriorityEmergency TaskPriority = 5
)

// Valid reports whether p is a known priority level.
func (p TaskPriority) Valid() bool {
	return p >= PriorityLow && p <= PriorityEmergency
}

// String returns the lowercase priority name.
func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	case PriorityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Task is a unit of work with typed capability requirements, priority,
// optional deadline, and optional budget.
type Task struct {
	TaskID               string         `json:"task_id"`
	TaskType             string         `json:"task_type" validate:"required"`
	Priority             TaskPriority   `json:"priority"`
	CapabilitiesRequired []string       `json:"capabilities_required"`
	Payload              map[string]any `json:"payload"`
	CreatedAt            time.Time      `json:"created_at"`
	Deadline             *time.Time     `json:"deadline,omitempty"`
	MaxCost              *float64       `json:"max_cost,omitempty"`
	RequesterID          string         `json:"requester_id" validate:"required"`

	// Execution state, owned by the coordinator.
	AssignedAgent string         `json:"assigned_agent,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Result        map[string]any `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// IsOverdue reports whether the task's deadline has elapsed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && now.After(*t.Deadline)
}

// ExecutionTime returns the wall-clock execution duration, or zero if the
// task has not both started and completed.
func (t *Task) ExecutionTime() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

// TimeRemaining returns the time left until the deadline, or a negative
// duration if overdue. Returns ok=false when no deadline is set.
func (t *Task) TimeRemaining(now time.Time) (time.Duration, bool) {
	if t.Deadline == nil {
		return 0, false
	}
	return t.Deadline.Sub(now), true
}

// Clone returns a deep copy safe to hand outside the coordinator lock.
// Payload and Result maps are shared (treated as immutable once set).
func (t *Task) Clone() *Task {
	cp := *t
	cp.CapabilitiesRequired = append([]string(nil), t.CapabilitiesRequired...)
	if t.Deadline != nil {
		d := *t.Deadline
		cp.Deadline = &d
	}
	if t.MaxCost != nil {
		m := *t.MaxCost
		cp.MaxCost = &m
	}
	if t.StartedAt != nil {
		s := *t.StartedAt
		cp.StartedAt = &s
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		cp.CompletedAt = &c
	}
	return &cp
}
