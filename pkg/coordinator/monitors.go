package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
)

// Start launches the four background monitors: health, cost, performance,
// and cleanup. Idempotent Stop shuts them down.
func (c *Coordinator) Start() {
	monitors := []struct {
		name     string
		interval time.Duration
		tick     func(context.Context)
	}{
		{"health", c.cfg.Monitors.HealthInterval, c.healthTick},
		{"cost", c.cfg.Monitors.CostInterval, c.costTick},
		{"performance", c.cfg.Monitors.PerformanceInterval, c.performanceTick},
		{"cleanup", c.cfg.Monitors.CleanupInterval, c.cleanupTick},
	}

	for _, m := range monitors {
		c.wg.Add(1)
		go c.runMonitor(m.name, m.interval, m.tick)
	}
	c.logger.Info("Background monitors started")
}

// Stop terminates the monitors and waits for them to exit.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	c.logger.Info("Background monitors stopped")
}

func (c *Coordinator) runMonitor(name string, interval time.Duration, tick func(context.Context)) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			tick(context.Background())
		}
	}
}

// healthTick probes every agent's health URL and applies the outcomes.
// Probes run outside the state lock.
func (c *Coordinator) healthTick(ctx context.Context) {
	for _, agent := range c.snapshotAgents() {
		if agent.HealthCheckURL == "" {
			continue
		}
		err := c.probeAgent(ctx, agent.HealthCheckURL)
		c.setAgentHealth(agent.AgentID, err == nil)
	}
}

// costTick evaluates current-hour spend against the budget ceilings.
func (c *Coordinator) costTick(ctx context.Context) {
	cost := c.CurrentHourCost(ctx)

	switch {
	case cost > c.cfg.Budget.EmergencyShutdownThreshold:
		c.EmergencyShutdown(fmt.Sprintf("Cost threshold exceeded: $%.0f", cost))
	case cost > c.cfg.Budget.MaxTotalCostPerHour:
		c.logger.Warn("Hourly cost over soft limit",
			"current_cost", cost,
			"limit", c.cfg.Budget.MaxTotalCostPerHour)
		c.hooks.ActivityReducer.ReduceActivity(cost, c.cfg.Budget.MaxTotalCostPerHour)
	}
}

// performanceTick checks queue wait and load imbalance and fires the
// corresponding hooks.
func (c *Coordinator) performanceTick(_ context.Context) {
	c.mu.Lock()
	now := c.now()

	var waitSum time.Duration
	for _, pt := range c.pending {
		waitSum += now.Sub(pt.task.CreatedAt)
	}
	pendingCount := len(c.pending)

	loads := make(map[string]float64, len(c.agents))
	minLoad, maxLoad := 1.0, 0.0
	for id, agent := range c.agents {
		load := agent.Load()
		loads[id] = load
		if load < minLoad {
			minLoad = load
		}
		if load > maxLoad {
			maxLoad = load
		}
	}
	c.mu.Unlock()

	if pendingCount > 0 {
		avgWait := waitSum / time.Duration(pendingCount)
		if avgWait > c.cfg.Monitors.QueueWaitThreshold {
			c.logger.Warn("Queue wait over threshold",
				"avg_wait", avgWait,
				"pending", pendingCount)
			c.hooks.AutoScaler.ScaleUp(pendingCount, avgWait)
		}
	}

	if len(loads) > 1 && maxLoad-minLoad > c.cfg.Monitors.LoadImbalanceThreshold {
		c.logger.Warn("Load imbalance over threshold",
			"spread", maxLoad-minLoad,
			"threshold", c.cfg.Monitors.LoadImbalanceThreshold)
		c.hooks.Rebalancer.Rebalance(loads)
	}
}

// cleanupTick prunes history entries older than the retention window.
func (c *Coordinator) cleanupTick(_ context.Context) {
	cutoff := c.now().Add(-c.cfg.Retention.HistoryWindow)

	c.mu.Lock()
	kept := c.history[:0]
	dropped := 0
	for _, task := range c.history {
		ref := task.CreatedAt
		if task.CompletedAt != nil {
			ref = *task.CompletedAt
		}
		if ref.After(cutoff) {
			kept = append(kept, task)
		} else {
			dropped++
		}
	}
	c.history = kept
	c.mu.Unlock()

	if dropped > 0 {
		c.logger.Info("History pruned", "dropped", dropped, "retained", len(kept))
	}
}

// AgentStatuses returns a copy of every agent's current status (tests and
// diagnostics).
func (c *Coordinator) AgentStatuses() map[string]models.AgentStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make(map[string]models.AgentStatus, len(c.agents))
	for id, agent := range c.agents {
		statuses[id] = agent.Status
	}
	return statuses
}
