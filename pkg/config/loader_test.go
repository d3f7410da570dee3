package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitialize_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Initialize(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, 100.0, cfg.Budget.MaxTotalCostPerHour)
	assert.Equal(t, 150.0, cfg.Budget.EmergencyShutdownThreshold)
	assert.Equal(t, 20, cfg.Budget.MaxTasksPerUserPerHour)
	assert.Equal(t, 30*time.Second, cfg.Monitors.HealthInterval)
	assert.Equal(t, 24*time.Hour, cfg.Retention.HistoryWindow)
	assert.Equal(t, 0.40, cfg.Routing.PerformanceWeight)
}

func TestInitialize_PartialOverride(t *testing.T) {
	path := writeConfig(t, `{
		"budget": {"max_total_cost_per_hour": 50, "emergency_shutdown_threshold": 75}
	}`)

	cfg, err := Initialize(context.Background(), path)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 50.0, cfg.Budget.MaxTotalCostPerHour)
	assert.Equal(t, 75.0, cfg.Budget.EmergencyShutdownThreshold)
	// Untouched sibling keeps its default
	assert.Equal(t, 20, cfg.Budget.MaxTasksPerUserPerHour)
	// Untouched section keeps its defaults
	assert.Equal(t, 0.25, cfg.Routing.AvailabilityWeight)
}

func TestInitialize_MalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"budget": `)

	_, err := Initialize(context.Background(), path)
	require.Error(t, err)
	assert.ErrorContains(t, err, path)
}

func TestInitialize_EnvExpansion(t *testing.T) {
	t.Setenv("MESH_REDIS_URL", "redis://kv.internal:6379/2")
	path := writeConfig(t, `{"kv": {"url": "{{.MESH_REDIS_URL}}"}}`)

	cfg, err := Initialize(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "redis://kv.internal:6379/2", cfg.KV.URL)
}

func TestInitialize_RejectsInvertedThresholds(t *testing.T) {
	path := writeConfig(t, `{
		"budget": {"max_total_cost_per_hour": 200, "emergency_shutdown_threshold": 100}
	}`)

	_, err := Initialize(context.Background(), path)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestInitialize_ToolServerValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			"stdio without command",
			`{"tools": {"servers": {"bad": {"transport": {"type": "stdio"}}}}}`,
			true,
		},
		{
			"websocket without url",
			`{"tools": {"servers": {"bad": {"transport": {"type": "websocket"}}}}}`,
			true,
		},
		{
			"unknown transport",
			`{"tools": {"servers": {"bad": {"transport": {"type": "carrier-pigeon", "url": "x"}}}}}`,
			true,
		},
		{
			"valid http server",
			`{"tools": {"servers": {"ghl": {"transport": {"type": "http", "url": "http://ghl:9000/mcp"}}}}}`,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Initialize(context.Background(), path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToolsConfig_Lookup(t *testing.T) {
	cfg := &ToolsConfig{Servers: map[string]ToolServerConfig{
		"ghl": {Transport: TransportConfig{Type: TransportTypeHTTP, URL: "http://ghl:9000"}},
	}}

	assert.True(t, cfg.Has("ghl"))
	assert.False(t, cfg.Has("mls"))

	_, err := cfg.Get("mls")
	assert.ErrorIs(t, err, ErrToolServerNotFound)

	server, err := cfg.Get("ghl")
	assert.NoError(t, err)
	assert.Equal(t, TransportTypeHTTP, server.Transport.Type)
}
