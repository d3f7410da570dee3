package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/config"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/kv"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
)

// KV key layout. Dates are UTC yyyy-mm-dd; hours are yyyy-mm-ddThh.
const (
	keyUsage       = "mesh:usage:%s"          // task_id → UsageRecord
	keyDailyTokens = "mesh:tokens:daily:%s:%s" // date, approach → int
	keyTypeTokens  = "mesh:tokens:type:%s:%s"  // date, task_type → int
	keySkillTokens = "mesh:tokens:skill:%s:%s" // date, skill → int
	keyDailyCost   = "mesh:cost:daily:%s"      // date → float
	keyHourlyCost  = "mesh:cost:hour:%s"       // hour → float
)

// Tracker is the token/cost tracker. A nil KV store is valid: writes become
// no-ops and reads return error-carrying reports, so the mesh keeps running
// without analytics when the KV is down.
type Tracker struct {
	store     kv.Store
	pricing   *config.PricingConfig
	retention *config.RetentionConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewTracker creates a tracker over the given store (may be nil).
func NewTracker(store kv.Store, pricing *config.PricingConfig, retention *config.RetentionConfig) *Tracker {
	return &Tracker{
		store:     store,
		pricing:   pricing,
		retention: retention,
		now:       time.Now,
		logger:    slog.With("component", "token_tracker"),
	}
}

// SetClock overrides the time source (tests only).
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// RecordUsageInput carries one task's usage into the tracker.
type RecordUsageInput struct {
	TaskID     string
	Tokens     int
	TaskType   string
	UserID     string
	Model      string
	Approach   string
	SkillName  string
	Confidence *float64
}

// RecordUsage persists a per-task usage record and bumps the daily rollups.
// Rollup increments are atomic so concurrent recorders keep the aggregates
// monotonically non-decreasing until the keys' TTL expires.
func (t *Tracker) RecordUsage(ctx context.Context, in RecordUsageInput) error {
	if t.store == nil {
		return nil
	}

	now := t.now().UTC()
	date := now.Format("2006-01-02")
	hour := now.Format("2006-01-02T15")
	cost := Cost(t.pricing, in.Model, in.Tokens)

	record := models.UsageRecord{
		TaskID:     in.TaskID,
		Tokens:     in.Tokens,
		TaskType:   in.TaskType,
		UserID:     in.UserID,
		Model:      in.Model,
		Approach:   in.Approach,
		SkillName:  in.SkillName,
		Confidence: in.Confidence,
		Timestamp:  now,
		Cost:       cost,
	}

	if err := t.store.Set(ctx, fmt.Sprintf(keyUsage, in.TaskID), record, t.retention.TaskRecordTTL); err != nil {
		t.logger.Warn("Usage record write failed", "task_id", in.TaskID, "error", err)
		return nil
	}

	rollupTTL := t.retention.RollupTTL
	tokens := int64(in.Tokens)

	if _, err := t.store.Incr(ctx, fmt.Sprintf(keyDailyTokens, date, in.Approach), tokens, rollupTTL); err != nil {
		t.logger.Warn("Daily token rollup failed", "approach", in.Approach, "error", err)
	}
	if in.TaskType != "" {
		if _, err := t.store.Incr(ctx, fmt.Sprintf(keyTypeTokens, date, in.TaskType), tokens, rollupTTL); err != nil {
			t.logger.Warn("Task-type rollup failed", "task_type", in.TaskType, "error", err)
		}
	}
	if in.SkillName != "" {
		if _, err := t.store.Incr(ctx, fmt.Sprintf(keySkillTokens, date, in.SkillName), tokens, rollupTTL); err != nil {
			t.logger.Warn("Skill rollup failed", "skill", in.SkillName, "error", err)
		}
	}
	if _, err := t.store.IncrByFloat(ctx, fmt.Sprintf(keyDailyCost, date), cost, rollupTTL); err != nil {
		t.logger.Warn("Daily cost rollup failed", "error", err)
	}
	if _, err := t.store.IncrByFloat(ctx, fmt.Sprintf(keyHourlyCost, hour), cost, 2*time.Hour); err != nil {
		t.logger.Warn("Hourly cost rollup failed", "error", err)
	}

	return nil
}

// CurrentHourCost returns the realized spend recorded in the current clock
// hour bucket. Returns 0 when no KV is configured.
func (t *Tracker) CurrentHourCost(ctx context.Context) (float64, error) {
	if t.store == nil {
		return 0, nil
	}
	hour := t.now().UTC().Format("2006-01-02T15")
	var cost float64
	if err := t.store.Get(ctx, fmt.Sprintf(keyHourlyCost, hour), &cost); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return cost, nil
}

// EfficiencyReport aggregates token reductions over a trailing window.
type EfficiencyReport struct {
	Days              int                `json:"days"`
	TokensByApproach  map[string]int64   `json:"tokens_by_approach"`
	BaselineTokens    int64              `json:"baseline_tokens"`
	ProgressiveTokens int64              `json:"progressive_tokens"`
	Reduction         float64            `json:"reduction"`
	TotalCost         float64            `json:"total_cost"`
	Savings           float64            `json:"savings"`
	ProjectedMonthly  float64            `json:"projected_monthly_savings"`
	ProjectedAnnual   float64            `json:"projected_annual_savings"`
	TargetReduction   float64            `json:"target_reduction"`
	ValidationRatio   float64            `json:"validation_ratio"`
	DailyCost         map[string]float64 `json:"daily_cost"`
	Error             string             `json:"error,omitempty"`
}

// GetEfficiencyReport reads daily rollups over the trailing window and
// computes reductions, savings, and the validation ratio against the
// configured target.
func (t *Tracker) GetEfficiencyReport(ctx context.Context, days int) *EfficiencyReport {
	report := &EfficiencyReport{
		Days:             days,
		TokensByApproach: make(map[string]int64),
		DailyCost:        make(map[string]float64),
		TargetReduction:  t.pricing.TargetReduction,
	}
	if t.store == nil {
		report.Error = "kv unavailable"
		return report
	}
	if days <= 0 {
		days = 1
		report.Days = 1
	}

	now := t.now().UTC()
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")

		pattern := fmt.Sprintf("mesh:tokens:daily:%s:*", date)
		keys, err := t.store.Keys(ctx, pattern)
		if err != nil {
			report.Error = err.Error()
			return report
		}
		for _, key := range keys {
			approach := key[len(fmt.Sprintf("mesh:tokens:daily:%s:", date)):]
			var tokens int64
			if err := t.store.Get(ctx, key, &tokens); err != nil {
				continue
			}
			report.TokensByApproach[approach] += tokens
		}

		var cost float64
		if err := t.store.Get(ctx, fmt.Sprintf(keyDailyCost, date), &cost); err == nil {
			report.DailyCost[date] = cost
			report.TotalCost += cost
		}
	}

	report.BaselineTokens = report.TokensByApproach[models.ApproachBaseline]
	report.ProgressiveTokens = report.TokensByApproach[models.ApproachProgressive]

	if report.BaselineTokens > 0 {
		report.Reduction = float64(report.BaselineTokens-report.ProgressiveTokens) / float64(report.BaselineTokens)

		// Savings price the avoided tokens at the default tariff — the
		// avoided calls never ran, so no per-model attribution exists.
		avoided := report.BaselineTokens - report.ProgressiveTokens
		if avoided > 0 {
			report.Savings = Cost(t.pricing, "", int(avoided))
			perDay := report.Savings / float64(days)
			report.ProjectedMonthly = perDay * 30
			report.ProjectedAnnual = perDay * 365
		}
	}
	if report.TargetReduction > 0 {
		report.ValidationRatio = report.Reduction / report.TargetReduction
	}

	return report
}

// Dashboard is today's realtime counter snapshot.
type Dashboard struct {
	Date             string           `json:"date"`
	TokensByApproach map[string]int64 `json:"tokens_by_approach"`
	CostToday        float64          `json:"cost_today"`
	CostThisHour     float64          `json:"cost_this_hour"`
	Reduction        float64          `json:"reduction"`
	Error            string           `json:"error,omitempty"`
}

// GetRealtimeDashboard returns today's counters and computed efficiency.
func (t *Tracker) GetRealtimeDashboard(ctx context.Context) *Dashboard {
	today := t.GetEfficiencyReport(ctx, 1)
	dash := &Dashboard{
		Date:             t.now().UTC().Format("2006-01-02"),
		TokensByApproach: today.TokensByApproach,
		CostToday:        today.TotalCost,
		Reduction:        today.Reduction,
		Error:            today.Error,
	}
	if hourCost, err := t.CurrentHourCost(ctx); err == nil {
		dash.CostThisHour = hourCost
	}
	return dash
}
