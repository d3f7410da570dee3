package models

import "time"

// Usage approach labels. Progressive runs went through two-phase skill
// selection; baseline runs loaded the full generic prompt.
const (
	ApproachProgressive     = "progressive"
	ApproachBaseline        = "baseline"
	ApproachMeshCoordinated = "mesh_coordinated"
	ApproachDiscovery       = "discovery"
)

// UsageRecord is one per-task token usage entry persisted by the tracker.
type UsageRecord struct {
	TaskID     string    `json:"task_id"`
	Tokens     int       `json:"tokens"`
	TaskType   string    `json:"task_type"`
	UserID     string    `json:"user_id"`
	Model      string    `json:"model"`
	Approach   string    `json:"approach"`
	SkillName  string    `json:"skill_name,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Cost       float64   `json:"cost"`
}
