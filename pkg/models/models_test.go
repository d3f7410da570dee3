package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testAgent() *Agent {
	return &Agent{
		AgentID:            "jorge_seller",
		Name:               "jorge_seller",
		Capabilities:       []string{"LeadQualification", "SellerOutreach"},
		Status:             AgentStatusIdle,
		MaxConcurrentTasks: 5,
		CostPerToken:       0.001,
		SLAResponseSeconds: 60,
		LastHeartbeat:      time.Now(),
	}
}

func TestAgent_IsAvailable(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		mutate func(*Agent)
		want   bool
	}{
		{"idle with fresh heartbeat", func(_ *Agent) {}, true},
		{"busy status", func(a *Agent) { a.Status = AgentStatusBusy }, false},
		{"error status", func(a *Agent) { a.Status = AgentStatusError }, false},
		{"maintenance status", func(a *Agent) { a.Status = AgentStatusMaintenance }, false},
		{"at capacity", func(a *Agent) { a.CurrentTasks = 5 }, false},
		{"stale heartbeat", func(a *Agent) { a.LastHeartbeat = now.Add(-3 * time.Minute) }, false},
		{"heartbeat exactly at threshold", func(a *Agent) { a.LastHeartbeat = now.Add(-HeartbeatStaleness) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testAgent()
			a.LastHeartbeat = now
			tt.mutate(a)
			assert.Equal(t, tt.want, a.IsAvailable(now))
		})
	}
}

func TestAgent_Load(t *testing.T) {
	a := testAgent()
	assert.Equal(t, 0.0, a.Load())

	a.CurrentTasks = 2
	assert.InDelta(t, 0.4, a.Load(), 1e-9)

	a.CurrentTasks = 5
	assert.Equal(t, 1.0, a.Load())
}

func TestAgent_SuccessRate_DefaultsToFull(t *testing.T) {
	a := testAgent()
	assert.Equal(t, 100.0, a.SuccessRate())

	a.Performance.TotalTasks = 4
	a.Performance.CompletedTasks = 3
	assert.Equal(t, 75.0, a.SuccessRate())
}

func TestAgent_HasCapabilities(t *testing.T) {
	a := testAgent()
	assert.True(t, a.HasCapabilities(nil))
	assert.True(t, a.HasCapabilities([]string{"LeadQualification"}))
	assert.True(t, a.HasCapabilities([]string{"LeadQualification", "SellerOutreach"}))
	assert.False(t, a.HasCapabilities([]string{"PropertyMatching"}))
}

func TestTask_IsOverdue(t *testing.T) {
	now := time.Now()
	task := &Task{TaskType: "lead_qualification"}
	assert.False(t, task.IsOverdue(now))

	past := now.Add(-time.Second)
	task.Deadline = &past
	assert.True(t, task.IsOverdue(now))

	future := now.Add(time.Minute)
	task.Deadline = &future
	assert.False(t, task.IsOverdue(now))
}

func TestTask_ExecutionTime(t *testing.T) {
	task := &Task{}
	assert.Equal(t, time.Duration(0), task.ExecutionTime())

	start := time.Now()
	end := start.Add(1500 * time.Millisecond)
	task.StartedAt = &start
	task.CompletedAt = &end
	assert.Equal(t, 1500*time.Millisecond, task.ExecutionTime())
}

func TestTaskPriority_Valid(t *testing.T) {
	assert.True(t, PriorityLow.Valid())
	assert.True(t, PriorityEmergency.Valid())
	assert.False(t, TaskPriority(0).Valid())
	assert.False(t, TaskPriority(6).Valid())
}

func TestAgent_Clone_Independent(t *testing.T) {
	a := testAgent()
	cp := a.Clone()
	cp.Capabilities[0] = "mutated"
	cp.CurrentTasks = 99

	assert.Equal(t, "LeadQualification", a.Capabilities[0])
	assert.Equal(t, 0, a.CurrentTasks)
}
