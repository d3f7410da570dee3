package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/config"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/coordinator"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/kv"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/tokens"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// okExecutor completes every task immediately.
type okExecutor struct{}

func (okExecutor) Execute(_ context.Context, _ *models.Task, _ *models.Agent) (*coordinator.ExecResult, error) {
	return &coordinator.ExecResult{TokensUsed: 50, Result: map[string]any{"ok": true}}, nil
}

type testEnv struct {
	router *gin.Engine
	coord  *coordinator.Coordinator
	store  *kv.Memory
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Default()
	store := kv.NewMemory()
	tracker := tokens.NewTracker(store, cfg.Pricing, cfg.Retention)
	exec := okExecutor{}

	coord := coordinator.New(coordinator.Deps{
		Config:     cfg,
		Store:      store,
		Tracker:    tracker,
		Dispatcher: &coordinator.Dispatcher{Skills: exec, Tool: exec, HTTP: exec},
	})

	server := NewServer(coord, tracker)
	return &testEnv{router: server.Router(), coord: coord, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) registerAgent(t *testing.T, id string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/agents", models.Agent{
		AgentID:            id,
		Name:               "jorge_" + id,
		Capabilities:       []string{"LeadQualification"},
		MaxConcurrentTasks: 5,
		CostPerToken:       0.0001,
		LastHeartbeat:      time.Now(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestSubmitTask_Accepted(t *testing.T) {
	env := newTestServer(t)
	env.registerAgent(t, "a1")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"task_type":             "lead_qualification",
		"priority":              2,
		"capabilities_required": []string{"LeadQualification"},
		"payload":               map[string]any{"name": "Maria"},
		"max_cost":              0.5,
		"requester_id":          "user-1",
	})

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["task_id"])
}

func TestSubmitTask_ValidationRejected(t *testing.T) {
	env := newTestServer(t)

	// Missing requester_id.
	rec := env.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"task_type": "lead_qualification",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown priority.
	rec = env.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"task_type":    "lead_qualification",
		"priority":     9,
		"requester_id": "user-1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitTask_QuotaRejected(t *testing.T) {
	env := newTestServer(t)
	env.registerAgent(t, "a1")

	hour := time.Now().UTC().Format("2006-01-02T15")
	_, err := env.store.Incr(context.Background(), "mesh:quota:user-1:"+hour, 20, time.Hour)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"task_type":    "lead_qualification",
		"requester_id": "user-1",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSubmitTask_BudgetRejected(t *testing.T) {
	env := newTestServer(t)
	env.registerAgent(t, "a1")

	hour := time.Now().UTC().Format("2006-01-02T15")
	_, err := env.store.IncrByFloat(context.Background(), "mesh:cost:hour:"+hour, 99.9, time.Hour)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"task_type":    "lead_qualification",
		"max_cost":     0.5,
		"requester_id": "user-1",
	})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestMeshStatus(t *testing.T) {
	env := newTestServer(t)
	env.registerAgent(t, "a1")

	rec := env.do(t, http.MethodGet, "/api/v1/mesh/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status coordinator.MeshStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.TotalAgents)
	assert.Equal(t, 1, status.AgentsByStatus[models.AgentStatusIdle])
}

func TestAgentLifecycleRoutes(t *testing.T) {
	env := newTestServer(t)
	env.registerAgent(t, "a1")

	rec := env.do(t, http.MethodGet, "/api/v1/agents/a1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var details coordinator.AgentDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "a1", details.Agent.AgentID)

	rec = env.do(t, http.MethodPost, "/api/v1/agents/a1/heartbeat", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/agents/a1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/agents/a1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/agents/a1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterAgent_Invalid(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodPost, "/api/v1/agents", map[string]any{
		"agent_id": "a1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthRoute(t *testing.T) {
	env := newTestServer(t)
	env.registerAgent(t, "a1")

	rec := env.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report coordinator.HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Healthy)
	assert.Contains(t, report.Agents, "a1")
}

func TestEmergencyShutdownRoute(t *testing.T) {
	env := newTestServer(t)
	env.registerAgent(t, "a1")

	rec := env.do(t, http.MethodPost, "/api/v1/mesh/emergency-shutdown", map[string]any{
		"reason": "operator drill",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/mesh/status", nil)
	var status coordinator.MeshStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.ShuttingDown)
	assert.Equal(t, 1, status.AgentsByStatus[models.AgentStatusMaintenance])

	// Missing reason is rejected.
	rec = env.do(t, http.MethodPost, "/api/v1/mesh/emergency-shutdown", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportRoutes(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/v1/reports/efficiency?days=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report tokens.EfficiencyReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Days)

	rec = env.do(t, http.MethodGet, "/api/v1/reports/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
