package coordinator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mesherrors"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/tokens"
)

// routePending drains the pending queue: tasks are considered strictly by
// priority (FIFO within a level). A task with no capable agent fails
// immediately; a task whose capable agents are merely busy stays queued and
// is retried when a completion frees a slot.
func (c *Coordinator) routePending(ctx context.Context) {
	for c.routeOne(ctx) {
	}
}

// routeOne handles at most one pending task. Returns false when nothing
// further can be done right now.
func (c *Coordinator) routeOne(ctx context.Context) bool {
	c.mu.Lock()

	if c.shuttingDown {
		c.mu.Unlock()
		return false
	}

	now := c.now()
	order := c.pendingOrderLocked()

	for _, idx := range order {
		pt := c.pending[idx]
		task := pt.task

		if task.IsOverdue(now) {
			c.removePendingLocked(idx)
			c.failTaskLocked(task, now, mesherrors.ErrDeadlineExceeded.Error())
			c.mu.Unlock()
			c.notifyCompletion(task.TaskID)
			return true
		}

		decision := c.selectAgentLocked(task, now)
		if decision.wait {
			// Capable agents exist but none can take the task now. The
			// task stays queued; lower-priority tasks may still route to
			// other agents. When a slot frees, routing reruns in
			// priority order, so this task is reconsidered first.
			continue
		}
		if decision.failReason != "" {
			c.removePendingLocked(idx)
			c.failTaskLocked(task, now, decision.failReason)
			c.mu.Unlock()
			c.notifyCompletion(task.TaskID)
			return true
		}

		c.removePendingLocked(idx)
		execCtx := c.assignLocked(task, decision.agent, now)
		agentCopy := decision.agent.Clone()
		c.mu.Unlock()

		c.logger.Info("Task assigned",
			"task_id", task.TaskID,
			"agent_id", agentCopy.AgentID,
			"priority", task.Priority.String())

		go c.executeTask(execCtx, task, agentCopy)
		return true
	}

	c.mu.Unlock()
	return false
}

// pendingOrderLocked returns pending indices sorted by priority descending,
// submission sequence ascending. Caller holds mu.
func (c *Coordinator) pendingOrderLocked() []int {
	order := make([]int, len(c.pending))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		pa, pb := c.pending[order[a]], c.pending[order[b]]
		if pa.task.Priority != pb.task.Priority {
			return pa.task.Priority > pb.task.Priority
		}
		return pa.seq < pb.seq
	})
	return order
}

func (c *Coordinator) removePendingLocked(idx int) {
	c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
}

// routeDecision is the outcome of candidate selection for one task.
type routeDecision struct {
	agent      *models.Agent
	failReason string
	wait       bool
}

// selectAgentLocked runs the candidate filter and weighted scoring. Caller
// holds mu. Filter failures that no amount of waiting can fix (capability,
// budget, SLA) fail the task; temporary unavailability yields wait.
func (c *Coordinator) selectAgentLocked(task *models.Task, now time.Time) routeDecision {
	var capable []*models.Agent
	for _, agent := range c.agents {
		if agent.HasCapabilities(task.CapabilitiesRequired) {
			capable = append(capable, agent)
		}
	}
	if len(capable) == 0 {
		return routeDecision{failReason: mesherrors.ErrNoCandidates.Error()}
	}

	// Fixed-token cost pre-filter; budget enforcement at submission is
	// authoritative.
	var affordable []*models.Agent
	for _, agent := range capable {
		if task.MaxCost != nil && agent.CostPerToken*float64(c.cfg.Routing.CostFilterTokens) > *task.MaxCost {
			continue
		}
		affordable = append(affordable, agent)
	}
	if len(affordable) == 0 {
		return routeDecision{failReason: fmt.Sprintf("%v: no agent within task max_cost", mesherrors.ErrBudgetExceeded)}
	}

	var meetsSLA []*models.Agent
	for _, agent := range affordable {
		if remaining, ok := task.TimeRemaining(now); ok {
			if time.Duration(agent.SLAResponseSeconds*float64(time.Second)) > remaining {
				continue
			}
		}
		meetsSLA = append(meetsSLA, agent)
	}
	if len(meetsSLA) == 0 {
		return routeDecision{failReason: fmt.Sprintf("%v: no agent can meet the deadline", mesherrors.ErrDeadlineExceeded)}
	}

	var candidates []*models.Agent
	for _, agent := range meetsSLA {
		if agent.IsAvailable(now) {
			candidates = append(candidates, agent)
		}
	}
	if len(candidates) == 0 {
		return routeDecision{wait: true}
	}

	best := c.pickBestLocked(task, candidates)
	return routeDecision{agent: best}
}

// pickBestLocked scores candidates and returns the winner. Ties break by
// agent_id lexicographic ascending. Caller holds mu.
func (c *Coordinator) pickBestLocked(task *models.Task, candidates []*models.Agent) *models.Agent {
	meanCost, meanResponse := c.meshMeansLocked()

	scores := make(map[string]float64, len(candidates))
	for _, agent := range candidates {
		scores[agent.AgentID] = c.scoreAgent(task, agent, meanCost, meanResponse)
	}

	sort.Slice(candidates, func(i, j int) bool {
		si, sj := scores[candidates[i].AgentID], scores[candidates[j].AgentID]
		if si != sj {
			return si > sj
		}
		return candidates[i].AgentID < candidates[j].AgentID
	})
	return candidates[0]
}

// meshMeansLocked computes the mesh-wide mean cost per token and mean
// average response time used for relative scoring. Caller holds mu.
func (c *Coordinator) meshMeansLocked() (meanCost, meanResponse float64) {
	if len(c.agents) == 0 {
		return 0, 0
	}
	for _, agent := range c.agents {
		meanCost += agent.CostPerToken
		meanResponse += agent.Performance.AverageResponseTime
	}
	n := float64(len(c.agents))
	return meanCost / n, meanResponse / n
}

// scoreAgent computes the weighted routing score for one candidate.
func (c *Coordinator) scoreAgent(task *models.Task, agent *models.Agent, meanCost, meanResponse float64) float64 {
	r := c.cfg.Routing

	score := r.PerformanceWeight * (agent.SuccessRate() / 100.0)
	score += r.AvailabilityWeight * (1.0 - agent.Load())

	if meanCost > 0 {
		score += r.CostWeight * (1.0 - agent.CostPerToken/meanCost)
	}
	if meanResponse > 0 && agent.Performance.AverageResponseTime > 0 {
		score += r.ResponseTimeWeight * (1.0 - agent.Performance.AverageResponseTime/meanResponse)
	}

	switch task.Priority {
	case models.PriorityEmergency:
		score *= r.EmergencyBoost
	case models.PriorityCritical:
		score *= r.CriticalBoost
	}
	return score
}

// assignLocked installs the assignment and returns the execution context.
// Caller holds mu. The availability re-check fails closed: if the agent
// stopped being available between scoring and assignment the task fails
// with NoCandidates for upstream retry.
func (c *Coordinator) assignLocked(task *models.Task, agent *models.Agent, now time.Time) context.Context {
	if !agent.IsAvailable(now) {
		c.failTaskLocked(task, now, mesherrors.ErrNoCandidates.Error())
		return nil
	}

	task.AssignedAgent = agent.AgentID
	started := now
	task.StartedAt = &started

	agent.CurrentTasks++
	if agent.CurrentTasks >= agent.MaxConcurrentTasks {
		agent.Status = models.AgentStatusBusy
	} else {
		agent.Status = models.AgentStatusActive
	}

	c.active[task.TaskID] = task

	ctx, cancel := context.WithCancel(context.Background())
	if task.Deadline != nil {
		ctx, cancel = context.WithDeadline(context.Background(), *task.Deadline)
	}
	c.cancels[task.TaskID] = cancel
	return ctx
}

// failTaskLocked records a terminal routing failure. Caller holds mu.
func (c *Coordinator) failTaskLocked(task *models.Task, now time.Time, reason string) {
	completed := now
	task.CompletedAt = &completed
	task.Error = reason
	c.history = append(c.history, task)
	c.logger.Warn("Task failed at routing",
		"task_id", task.TaskID,
		"task_type", task.TaskType,
		"error", reason)
}

// executeTask runs the adapter for an assigned task and reports the outcome.
// A panicking adapter is converted to a failure so the agent slot is always
// released.
func (c *Coordinator) executeTask(ctx context.Context, task *models.Task, agent *models.Agent) {
	if ctx == nil {
		// Assignment failed closed; nothing to execute.
		c.notifyCompletion(task.TaskID)
		return
	}

	executor, kind := c.dispatcher.Resolve(agent)

	var res *ExecResult
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("adapter panic: %v", r)
			}
		}()
		res, err = executor.Execute(ctx, task, agent)
	}()

	c.completeTask(task.TaskID, kind, res, err)
}

// completeTask applies an execution outcome: metrics, slot release, status
// transition, history. Outcomes for tasks no longer active (emergency
// shutdown) are discarded.
func (c *Coordinator) completeTask(taskID, kind string, res *ExecResult, execErr error) {
	c.mu.Lock()

	task, ok := c.active[taskID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.active, taskID)
	if cancel, ok := c.cancels[taskID]; ok {
		cancel()
		delete(c.cancels, taskID)
	}

	now := c.now()
	completed := now
	task.CompletedAt = &completed

	var elapsed float64
	if task.StartedAt != nil {
		elapsed = now.Sub(*task.StartedAt).Seconds()
	}

	if execErr != nil {
		task.Error = execErr.Error()
	} else if res != nil {
		task.Result = res.Result
	}

	if agent, registered := c.agents[task.AssignedAgent]; registered {
		p := &agent.Performance
		p.TotalTasks++
		if execErr == nil {
			p.CompletedTasks++
		} else {
			p.FailedTasks++
		}
		p.AverageResponseTime += (elapsed - p.AverageResponseTime) / float64(p.TotalTasks)
		if res != nil {
			p.TokensUsed += res.TokensUsed
			p.CostIncurred += float64(res.TokensUsed) * agent.CostPerToken
		}
		p.LastActivity = now

		if agent.CurrentTasks > 0 {
			agent.CurrentTasks--
		}
		if agent.Status == models.AgentStatusActive || agent.Status == models.AgentStatusBusy {
			switch {
			case agent.CurrentTasks == 0:
				agent.Status = models.AgentStatusIdle
			case agent.CurrentTasks < agent.MaxConcurrentTasks:
				agent.Status = models.AgentStatusActive
			}
		}
	}

	c.history = append(c.history, task)
	c.mu.Unlock()

	if execErr != nil {
		c.logger.Warn("Task failed",
			"task_id", taskID,
			"agent_id", task.AssignedAgent,
			"error", execErr)
	} else {
		c.logger.Info("Task completed",
			"task_id", taskID,
			"agent_id", task.AssignedAgent,
			"execution_seconds", elapsed)
	}

	// The skills adapter records its own usage; tool and HTTP outcomes are
	// recorded here when the agent reported a token count.
	if execErr == nil && kind != ExecutorKindSkills && res != nil && res.TokensUsed > 0 {
		c.recordExecutionUsage(task, res)
	}

	c.notifyCompletion(taskID)

	// A freed slot may unblock queued work.
	go c.routePending(context.Background())
}

func (c *Coordinator) recordExecutionUsage(task *models.Task, res *ExecResult) {
	if c.tracker == nil {
		return
	}
	err := c.tracker.RecordUsage(context.Background(), tokens.RecordUsageInput{
		TaskID:   task.TaskID,
		Tokens:   res.TokensUsed,
		TaskType: task.TaskType,
		UserID:   task.RequesterID,
		Model:    res.Model,
		Approach: models.ApproachMeshCoordinated,
	})
	if err != nil {
		c.logger.Warn("Usage recording failed", "task_id", task.TaskID, "error", err)
	}
}
