package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/config"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/kv"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
)

func newTestTracker(t *testing.T) (*Tracker, *kv.Memory) {
	t.Helper()
	store := kv.NewMemory()
	tracker := NewTracker(store, config.DefaultPricingConfig(), config.DefaultRetentionConfig())
	return tracker, store
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestRecordUsage_PersistsRecordAndRollups(t *testing.T) {
	tracker, store := newTestTracker(t)
	ts := time.Date(2026, 8, 24, 14, 30, 0, 0, time.UTC)
	tracker.SetClock(fixedClock(ts))

	ctx := context.Background()
	err := tracker.RecordUsage(ctx, RecordUsageInput{
		TaskID:    "task-1",
		Tokens:    5000,
		TaskType:  "lead_qualification",
		UserID:    "user-1",
		Model:     "gpt-4o-mini",
		Approach:  models.ApproachProgressive,
		SkillName: "objection_handler",
	})
	require.NoError(t, err)

	var record models.UsageRecord
	require.NoError(t, store.Get(ctx, "mesh:usage:task-1", &record))
	assert.Equal(t, "task-1", record.TaskID)
	assert.Equal(t, 5000, record.Tokens)
	assert.Equal(t, models.ApproachProgressive, record.Approach)
	assert.InDelta(t, Cost(tracker.pricing, "gpt-4o-mini", 5000), record.Cost, 1e-9)

	var tokens int64
	require.NoError(t, store.Get(ctx, "mesh:tokens:daily:2026-08-24:progressive", &tokens))
	assert.Equal(t, int64(5000), tokens)

	require.NoError(t, store.Get(ctx, "mesh:tokens:type:2026-08-24:lead_qualification", &tokens))
	assert.Equal(t, int64(5000), tokens)

	require.NoError(t, store.Get(ctx, "mesh:tokens:skill:2026-08-24:objection_handler", &tokens))
	assert.Equal(t, int64(5000), tokens)

	var cost float64
	require.NoError(t, store.Get(ctx, "mesh:cost:daily:2026-08-24", &cost))
	assert.Greater(t, cost, 0.0)

	require.NoError(t, store.Get(ctx, "mesh:cost:hour:2026-08-24T14", &cost))
	assert.Greater(t, cost, 0.0)
}

func TestRecordUsage_AccumulatesAcrossTasks(t *testing.T) {
	tracker, store := newTestTracker(t)
	ts := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	tracker.SetClock(fixedClock(ts))

	ctx := context.Background()
	for i, tokens := range []int{1000, 2000, 3000} {
		require.NoError(t, tracker.RecordUsage(ctx, RecordUsageInput{
			TaskID:   string(rune('a' + i)),
			Tokens:   tokens,
			Model:    "gpt-4o",
			Approach: models.ApproachBaseline,
		}))
	}

	var total int64
	require.NoError(t, store.Get(ctx, "mesh:tokens:daily:2026-08-24:baseline", &total))
	assert.Equal(t, int64(6000), total)
}

func TestRecordUsage_NilStoreIsNoop(t *testing.T) {
	tracker := NewTracker(nil, config.DefaultPricingConfig(), config.DefaultRetentionConfig())
	err := tracker.RecordUsage(context.Background(), RecordUsageInput{TaskID: "t", Tokens: 100})
	assert.NoError(t, err)
}

func TestCurrentHourCost(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ts := time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC)
	tracker.SetClock(fixedClock(ts))

	ctx := context.Background()
	cost, err := tracker.CurrentHourCost(ctx)
	require.NoError(t, err)
	assert.Zero(t, cost)

	require.NoError(t, tracker.RecordUsage(ctx, RecordUsageInput{
		TaskID: "t1", Tokens: 1_000_000, Model: "gpt-4o",
	}))

	cost, err = tracker.CurrentHourCost(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.8*2.50+0.2*10.00, cost, 1e-9)

	// A new clock hour starts a fresh bucket.
	tracker.SetClock(fixedClock(ts.Add(time.Hour)))
	cost, err = tracker.CurrentHourCost(ctx)
	require.NoError(t, err)
	assert.Zero(t, cost)
}

func TestGetEfficiencyReport(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ts := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	tracker.SetClock(fixedClock(ts))

	ctx := context.Background()
	require.NoError(t, tracker.RecordUsage(ctx, RecordUsageInput{
		TaskID: "b1", Tokens: 10_000, Model: "gpt-4o", Approach: models.ApproachBaseline,
	}))
	require.NoError(t, tracker.RecordUsage(ctx, RecordUsageInput{
		TaskID: "p1", Tokens: 3_190, Model: "gpt-4o", Approach: models.ApproachProgressive,
	}))

	report := tracker.GetEfficiencyReport(ctx, 7)
	require.Empty(t, report.Error)

	assert.Equal(t, int64(10_000), report.BaselineTokens)
	assert.Equal(t, int64(3_190), report.ProgressiveTokens)
	assert.InDelta(t, 0.681, report.Reduction, 1e-9)
	assert.InDelta(t, 1.0, report.ValidationRatio, 1e-9)
	assert.Greater(t, report.Savings, 0.0)
	assert.Greater(t, report.ProjectedAnnual, report.ProjectedMonthly)
	assert.Greater(t, report.TotalCost, 0.0)
	assert.Len(t, report.DailyCost, 1)
}

func TestGetEfficiencyReport_SpansMultipleDays(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	day1 := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	tracker.SetClock(fixedClock(day1))
	require.NoError(t, tracker.RecordUsage(ctx, RecordUsageInput{
		TaskID: "d1", Tokens: 4000, Approach: models.ApproachBaseline,
	}))

	day2 := day1.Add(24 * time.Hour)
	tracker.SetClock(fixedClock(day2))
	require.NoError(t, tracker.RecordUsage(ctx, RecordUsageInput{
		TaskID: "d2", Tokens: 6000, Approach: models.ApproachBaseline,
	}))

	report := tracker.GetEfficiencyReport(ctx, 2)
	assert.Equal(t, int64(10_000), report.BaselineTokens)
	assert.Len(t, report.DailyCost, 2)

	// A one-day window only sees the latest day.
	report = tracker.GetEfficiencyReport(ctx, 1)
	assert.Equal(t, int64(6000), report.BaselineTokens)
}

func TestGetEfficiencyReport_NoBaseline(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.SetClock(fixedClock(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)))

	ctx := context.Background()
	require.NoError(t, tracker.RecordUsage(ctx, RecordUsageInput{
		TaskID: "p1", Tokens: 500, Approach: models.ApproachProgressive,
	}))

	report := tracker.GetEfficiencyReport(ctx, 1)
	assert.Zero(t, report.Reduction)
	assert.Zero(t, report.Savings)
	assert.Zero(t, report.ValidationRatio)
}

func TestGetEfficiencyReport_NilStore(t *testing.T) {
	tracker := NewTracker(nil, config.DefaultPricingConfig(), config.DefaultRetentionConfig())
	report := tracker.GetEfficiencyReport(context.Background(), 7)
	assert.Equal(t, "kv unavailable", report.Error)
	assert.Empty(t, report.TokensByApproach)
}

func TestGetRealtimeDashboard(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ts := time.Date(2026, 8, 24, 16, 45, 0, 0, time.UTC)
	tracker.SetClock(fixedClock(ts))

	ctx := context.Background()
	require.NoError(t, tracker.RecordUsage(ctx, RecordUsageInput{
		TaskID: "t1", Tokens: 2000, Approach: models.ApproachMeshCoordinated, Model: "gpt-4o",
	}))

	dash := tracker.GetRealtimeDashboard(ctx)
	assert.Equal(t, "2026-08-24", dash.Date)
	assert.Equal(t, int64(2000), dash.TokensByApproach[models.ApproachMeshCoordinated])
	assert.Greater(t, dash.CostToday, 0.0)
	assert.InDelta(t, dash.CostToday, dash.CostThisHour, 1e-9)
	assert.Empty(t, dash.Error)
}
