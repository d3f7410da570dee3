// Package coordinator implements the mesh core: agent registry, task queue,
// weighted routing, executor dispatch, and the background governance
// monitors. All shared state lives behind one mutex; adapters and monitors
// report outcomes through coordinator methods and never touch the maps
// directly.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/config"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/kv"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mesherrors"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/tokens"
)

// recentTaskLimit bounds the task list returned by GetAgentDetails.
const recentTaskLimit = 10

const agentKeyPrefix = "mesh:agents:"

// Deps are the coordinator's injected ports. Store and Tracker may be nil
// for memory-only deployments.
type Deps struct {
	Config     *config.Config
	Store      kv.Store
	Tracker    *tokens.Tracker
	Dispatcher *Dispatcher
	Hooks      Hooks
	HTTPClient *http.Client
}

// pendingTask pairs a queued task with its submission sequence so FIFO order
// holds within a priority level.
type pendingTask struct {
	task *models.Task
	seq  uint64
}

// Coordinator is the mesh core service.
type Coordinator struct {
	cfg        *config.Config
	store      kv.Store
	tracker    *tokens.Tracker
	dispatcher *Dispatcher
	hooks      Hooks
	httpClient *http.Client
	logger     *slog.Logger
	validate   *validator.Validate
	now        func() time.Time

	mu           sync.Mutex
	agents       map[string]*models.Agent
	pending      []*pendingTask
	active       map[string]*models.Task
	cancels      map[string]context.CancelFunc
	history      []*models.Task
	seq          uint64
	quotaMem     map[string]int
	submitted    int
	shuttingDown bool

	// completionCh carries finished task IDs with latest-value semantics:
	// buffer 1, stale entries dropped on write.
	completionCh chan string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a coordinator. Call Start to launch the background monitors.
func New(deps Deps) *Coordinator {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: deps.Config.Monitors.HealthProbeTimeout}
	}
	return &Coordinator{
		cfg:          deps.Config,
		store:        deps.Store,
		tracker:      deps.Tracker,
		dispatcher:   deps.Dispatcher,
		hooks:        deps.Hooks.withDefaults(),
		httpClient:   deps.HTTPClient,
		logger:       slog.With("component", "mesh_coordinator"),
		validate:     validator.New(),
		now:          time.Now,
		agents:       make(map[string]*models.Agent),
		active:       make(map[string]*models.Task),
		cancels:      make(map[string]context.CancelFunc),
		quotaMem:     make(map[string]int),
		completionCh: make(chan string, 1),
		stopCh:       make(chan struct{}),
	}
}

// SetClock overrides the time source (tests only).
func (c *Coordinator) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Completions returns the best-effort completion notification channel.
// Single subscriber; only the latest finished task ID is retained.
func (c *Coordinator) Completions() <-chan string {
	return c.completionCh
}

// RegisterAgent validates the agent, probes its health endpoint, and
// installs it with initialized counters. The agent is persisted to the KV
// when one is configured so it survives a restart.
func (c *Coordinator) RegisterAgent(ctx context.Context, agent *models.Agent) error {
	if agent == nil {
		return mesherrors.NewValidationError("agent", "", "", "agent is nil")
	}
	if err := c.validate.Struct(agent); err != nil {
		return mesherrors.NewValidationError("agent", agent.AgentID, "", err.Error())
	}

	if agent.HealthCheckURL != "" {
		if err := c.probeAgent(ctx, agent.HealthCheckURL); err != nil {
			return fmt.Errorf("agent %q failed registration probe: %w", agent.AgentID, err)
		}
	}

	installed := agent.Clone()
	installed.Status = models.AgentStatusIdle
	installed.CurrentTasks = 0
	if installed.LastHeartbeat.IsZero() {
		installed.LastHeartbeat = c.now()
	}

	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return mesherrors.ErrShuttingDown
	}
	c.agents[installed.AgentID] = installed
	c.mu.Unlock()

	c.persistAgent(ctx, installed)
	c.logger.Info("Agent registered",
		"agent_id", installed.AgentID,
		"name", installed.Name,
		"capabilities", installed.Capabilities,
		"max_concurrent", installed.MaxConcurrentTasks)
	return nil
}

// DeregisterAgent removes an agent from the mesh and from the KV.
func (c *Coordinator) DeregisterAgent(ctx context.Context, agentID string) error {
	c.mu.Lock()
	_, ok := c.agents[agentID]
	if ok {
		delete(c.agents, agentID)
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("deregister %q: %w", agentID, mesherrors.ErrAgentNotFound)
	}
	if c.store != nil {
		if err := c.store.Delete(ctx, agentKeyPrefix+agentID); err != nil {
			c.logger.Warn("Agent KV removal failed", "agent_id", agentID, "error", err)
		}
	}
	c.logger.Info("Agent deregistered", "agent_id", agentID)
	return nil
}

// Heartbeat refreshes an agent's liveness timestamp.
func (c *Coordinator) Heartbeat(agentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	agent, ok := c.agents[agentID]
	if !ok {
		return fmt.Errorf("heartbeat %q: %w", agentID, mesherrors.ErrAgentNotFound)
	}
	agent.LastHeartbeat = c.now()
	return nil
}

// RestoreAgents reloads persisted agents from the KV at startup. Restored
// agents come back Idle with zeroed in-flight counters.
func (c *Coordinator) RestoreAgents(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}

	keys, err := c.store.Keys(ctx, agentKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("list persisted agents: %w", err)
	}

	restored := 0
	for _, key := range keys {
		var agent models.Agent
		if err := c.store.Get(ctx, key, &agent); err != nil {
			c.logger.Warn("Persisted agent unreadable, skipping", "key", key, "error", err)
			continue
		}
		agent.Status = models.AgentStatusIdle
		agent.CurrentTasks = 0
		agent.LastHeartbeat = c.now()

		c.mu.Lock()
		c.agents[agent.AgentID] = &agent
		c.mu.Unlock()
		restored++
	}

	if restored > 0 {
		c.logger.Info("Agents restored from KV", "count", restored)
	}
	return restored, nil
}

// SubmitTask validates the task, enforces quota and budget, enqueues it, and
// spawns routing. Returns the task ID.
func (c *Coordinator) SubmitTask(ctx context.Context, task *models.Task) (string, error) {
	if task == nil {
		return "", mesherrors.NewValidationError("task", "", "", "task is nil")
	}
	if err := c.validate.Struct(task); err != nil {
		return "", mesherrors.NewValidationError("task", task.TaskID, "", err.Error())
	}
	if task.Priority == 0 {
		task.Priority = models.PriorityNormal
	}
	if !task.Priority.Valid() {
		return "", mesherrors.NewValidationError("task", task.TaskID, "priority",
			fmt.Sprintf("unknown priority %d", task.Priority))
	}
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = c.now()
	}

	if err := c.checkQuota(ctx, task.RequesterID); err != nil {
		return "", err
	}
	if err := c.checkBudget(ctx, task); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return "", mesherrors.ErrShuttingDown
	}
	c.seq++
	c.submitted++
	c.pending = append(c.pending, &pendingTask{task: task, seq: c.seq})
	c.consumeQuotaLocked(task.RequesterID)
	c.mu.Unlock()

	c.logger.Info("Task submitted",
		"task_id", task.TaskID,
		"task_type", task.TaskType,
		"priority", task.Priority.String(),
		"requester", task.RequesterID)

	go c.routePending(context.WithoutCancel(ctx))
	return task.TaskID, nil
}

// checkQuota enforces the per-requester hourly submission cap.
func (c *Coordinator) checkQuota(ctx context.Context, requester string) error {
	limit := c.cfg.Budget.MaxTasksPerUserPerHour
	bucket := c.quotaBucket(requester)

	var count int
	if c.store != nil {
		var stored int64
		err := c.store.Get(ctx, bucket, &stored)
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			c.logger.Warn("Quota read failed, falling back to in-memory count", "error", err)
			c.mu.Lock()
			count = c.quotaMem[bucket]
			c.mu.Unlock()
		} else {
			count = int(stored)
		}
	} else {
		c.mu.Lock()
		count = c.quotaMem[bucket]
		c.mu.Unlock()
	}

	if count >= limit {
		return fmt.Errorf("requester %q at %d tasks this hour: %w",
			requester, count, mesherrors.ErrQuotaExceeded)
	}
	return nil
}

// consumeQuotaLocked bumps the requester's hour bucket. Caller holds mu.
func (c *Coordinator) consumeQuotaLocked(requester string) {
	bucket := c.quotaBucket(requester)
	c.quotaMem[bucket]++
	if c.store != nil {
		ttl := c.cfg.KV.QuotaBucketTTL
		go func() {
			if _, err := c.store.Incr(context.Background(), bucket, 1, ttl); err != nil {
				c.logger.Warn("Quota increment failed", "bucket", bucket, "error", err)
			}
		}()
	}
}

func (c *Coordinator) quotaBucket(requester string) string {
	return fmt.Sprintf("mesh:quota:%s:%s", requester, c.now().UTC().Format("2006-01-02T15"))
}

// checkBudget rejects submissions whose max_cost would push the current-hour
// projection above the soft ceiling.
func (c *Coordinator) checkBudget(ctx context.Context, task *models.Task) error {
	if task.MaxCost == nil {
		return nil
	}
	current := c.CurrentHourCost(ctx)
	if current+*task.MaxCost > c.cfg.Budget.MaxTotalCostPerHour {
		return fmt.Errorf("projected $%.2f exceeds hourly limit $%.2f: %w",
			current+*task.MaxCost, c.cfg.Budget.MaxTotalCostPerHour, mesherrors.ErrBudgetExceeded)
	}
	return nil
}

// CurrentHourCost returns the mesh's spend for the current clock hour. With
// a KV configured this is the realized hourly bucket; without one it falls
// back to the linear per-agent approximation
// cost_incurred/total_tasks × current_tasks.
func (c *Coordinator) CurrentHourCost(ctx context.Context) float64 {
	if c.tracker != nil && c.store != nil {
		cost, err := c.tracker.CurrentHourCost(ctx)
		if err == nil {
			return cost
		}
		c.logger.Warn("Hourly cost read failed, using approximation", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for _, agent := range c.agents {
		if agent.Performance.TotalTasks == 0 {
			continue
		}
		perTask := agent.Performance.CostIncurred / float64(agent.Performance.TotalTasks)
		total += perTask * float64(agent.CurrentTasks)
	}
	return total
}

// MeshStatus is the snapshot returned by GetMeshStatus.
type MeshStatus struct {
	AgentsByStatus     map[models.AgentStatus]int `json:"agents_by_status"`
	TotalAgents        int                        `json:"total_agents"`
	PendingTasks       int                        `json:"pending_tasks"`
	ActiveTasks        int                        `json:"active_tasks"`
	CompletedToday     int                        `json:"completed_today"`
	FailedToday        int                        `json:"failed_today"`
	TotalSubmitted     int                        `json:"total_submitted"`
	AverageSuccessRate float64                    `json:"average_success_rate"`
	CurrentHourCost    float64                    `json:"current_hour_cost"`
	ShuttingDown       bool                       `json:"shutting_down"`
}

// GetMeshStatus returns agent counts by status, task totals, aggregate
// performance, and the cost summary.
func (c *Coordinator) GetMeshStatus(ctx context.Context) *MeshStatus {
	cost := c.CurrentHourCost(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	status := &MeshStatus{
		AgentsByStatus:  make(map[models.AgentStatus]int),
		TotalAgents:     len(c.agents),
		PendingTasks:    len(c.pending),
		ActiveTasks:     len(c.active),
		TotalSubmitted:  c.submitted,
		CurrentHourCost: cost,
		ShuttingDown:    c.shuttingDown,
	}

	var rateSum float64
	for _, agent := range c.agents {
		status.AgentsByStatus[agent.Status]++
		rateSum += agent.SuccessRate()
	}
	if len(c.agents) > 0 {
		status.AverageSuccessRate = rateSum / float64(len(c.agents))
	}

	today := c.now().UTC().Format("2006-01-02")
	for _, task := range c.history {
		if task.CompletedAt == nil || task.CompletedAt.UTC().Format("2006-01-02") != today {
			continue
		}
		if task.Error == "" {
			status.CompletedToday++
		} else {
			status.FailedToday++
		}
	}
	return status
}

// AgentDetails is the snapshot returned by GetAgentDetails.
type AgentDetails struct {
	Agent       *models.Agent  `json:"agent"`
	RecentTasks []*models.Task `json:"recent_tasks"`
	// Trend is the execution time in seconds of the recent completed
	// tasks, oldest first.
	Trend []float64 `json:"trend"`
}

// GetAgentDetails returns the agent snapshot plus its recent completed tasks
// and a performance trend series. Returns nil if the agent is unknown.
func (c *Coordinator) GetAgentDetails(agentID string) *AgentDetails {
	c.mu.Lock()
	defer c.mu.Unlock()

	agent, ok := c.agents[agentID]
	if !ok {
		return nil
	}

	details := &AgentDetails{Agent: agent.Clone()}
	for i := len(c.history) - 1; i >= 0 && len(details.RecentTasks) < recentTaskLimit; i-- {
		task := c.history[i]
		if task.AssignedAgent == agentID && task.CompletedAt != nil && task.Error == "" {
			details.RecentTasks = append(details.RecentTasks, task.Clone())
		}
	}
	// RecentTasks is newest-first; the trend reads oldest-first.
	for i := len(details.RecentTasks) - 1; i >= 0; i-- {
		details.Trend = append(details.Trend, details.RecentTasks[i].ExecutionTime().Seconds())
	}
	return details
}

// AgentHealth is one agent's probe outcome.
type AgentHealth struct {
	Status  models.AgentStatus `json:"status"`
	Healthy bool               `json:"healthy"`
	Error   string             `json:"error,omitempty"`
}

// HealthReport aggregates per-agent probe outcomes.
type HealthReport struct {
	Healthy bool                   `json:"healthy"`
	Agents  map[string]AgentHealth `json:"agents"`
	Version string                 `json:"version,omitempty"`
}

// HealthCheck probes every agent's health endpoint and returns the per-agent
// report. Agents without a health URL count as healthy.
func (c *Coordinator) HealthCheck(ctx context.Context) *HealthReport {
	c.mu.Lock()
	targets := make(map[string]*models.Agent, len(c.agents))
	for id, agent := range c.agents {
		targets[id] = agent.Clone()
	}
	c.mu.Unlock()

	report := &HealthReport{Healthy: true, Agents: make(map[string]AgentHealth, len(targets))}
	for id, agent := range targets {
		health := AgentHealth{Status: agent.Status, Healthy: true}
		if agent.HealthCheckURL != "" {
			if err := c.probeAgent(ctx, agent.HealthCheckURL); err != nil {
				health.Healthy = false
				health.Error = err.Error()
				report.Healthy = false
			}
		}
		report.Agents[id] = health
	}
	return report
}

// probeAgent issues a GET against a health URL; any non-2xx is a failure.
func (c *Coordinator) probeAgent(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Monitors.HealthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", mesherrors.ErrHealthFailure, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", mesherrors.ErrHealthFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", mesherrors.ErrHealthFailure, resp.StatusCode)
	}
	return nil
}

// setAgentHealth applies a monitor probe outcome: failure flips the agent to
// Error, recovery returns an errored agent to Idle.
func (c *Coordinator) setAgentHealth(agentID string, healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	agent, ok := c.agents[agentID]
	if !ok {
		return
	}
	switch {
	case !healthy && agent.Status != models.AgentStatusMaintenance:
		if agent.Status != models.AgentStatusError {
			c.logger.Warn("Agent health probe failed", "agent_id", agentID)
		}
		agent.Status = models.AgentStatusError
	case healthy && agent.Status == models.AgentStatusError:
		c.logger.Info("Agent recovered", "agent_id", agentID)
		agent.Status = models.AgentStatusIdle
	}
}

// EmergencyShutdown cancels every active task with the reason recorded as
// its error, forces all agents into Maintenance with zeroed in-flight
// counters, and raises the emergency alert hook. In-flight adapter
// completions arriving afterwards are discarded.
func (c *Coordinator) EmergencyShutdown(reason string) {
	c.logger.Error("EMERGENCY SHUTDOWN", "reason", reason)

	c.mu.Lock()
	c.shuttingDown = true

	now := c.now()
	for taskID, task := range c.active {
		if cancel, ok := c.cancels[taskID]; ok {
			cancel()
			delete(c.cancels, taskID)
		}
		completed := now
		task.CompletedAt = &completed
		task.Error = reason
		c.history = append(c.history, task)
		delete(c.active, taskID)
	}
	for _, pt := range c.pending {
		pt.task.Error = reason
		completed := now
		pt.task.CompletedAt = &completed
		c.history = append(c.history, pt.task)
	}
	c.pending = nil

	for _, agent := range c.agents {
		agent.Status = models.AgentStatusMaintenance
		agent.CurrentTasks = 0
	}
	c.mu.Unlock()

	c.hooks.EmergencyAlert.EmergencyAlert(reason)
}

// Resume lifts the shutdown latch and returns agents to Idle. Intended for
// operator use after an emergency shutdown has been investigated.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	c.shuttingDown = false
	for _, agent := range c.agents {
		if agent.Status == models.AgentStatusMaintenance {
			agent.Status = models.AgentStatusIdle
		}
	}
	c.mu.Unlock()
	c.logger.Info("Mesh resumed")
}

// persistAgent writes the agent record to the KV. Best effort.
func (c *Coordinator) persistAgent(ctx context.Context, agent *models.Agent) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, agentKeyPrefix+agent.AgentID, agent, 0); err != nil {
		c.logger.Warn("Agent persistence failed", "agent_id", agent.AgentID, "error", err)
	}
}

// notifyCompletion publishes a finished task ID with drop-stale semantics.
func (c *Coordinator) notifyCompletion(taskID string) {
	for {
		select {
		case c.completionCh <- taskID:
			return
		default:
			select {
			case <-c.completionCh:
			default:
			}
		}
	}
}

// snapshotAgents returns deep copies of all agents, sorted by ID.
func (c *Coordinator) snapshotAgents() []*models.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()

	agents := make([]*models.Agent, 0, len(c.agents))
	for _, agent := range c.agents {
		agents = append(agents, agent.Clone())
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentID < agents[j].AgentID })
	return agents
}
