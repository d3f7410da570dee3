package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Start from built-in defaults
//  2. Read mesh.json from path (optional — defaults apply when absent)
//  3. Expand {{.VAR}} environment variables
//  4. Parse JSON and merge user values over the defaults
//  5. Validate the merged configuration
func Initialize(_ context.Context, path string) (*Config, error) {
	log := slog.With("config_path", path)
	log.Info("Initializing mesh configuration")

	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Mesh configuration initialized",
		"tool_servers", stats.ToolServers,
		"pricing_models", stats.PricingModels)

	return cfg, nil
}

func load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Mesh config file not found, using built-in defaults", "path", path)
			return cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var user Config
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidJSON, err))
	}

	// Merge user values over defaults section by section so that a section
	// present in mesh.json only overrides the fields it sets.
	sections := []struct {
		dst, src any
	}{
		{cfg.Routing, user.Routing},
		{cfg.Budget, user.Budget},
		{cfg.Monitors, user.Monitors},
		{cfg.Retention, user.Retention},
		{cfg.Pricing, user.Pricing},
		{cfg.Skills, user.Skills},
		{cfg.KV, user.KV},
		{cfg.Tools, user.Tools},
	}
	for _, s := range sections {
		if isNilSection(s.src) {
			continue
		}
		if err := mergo.Merge(s.dst, s.src, mergo.WithOverride); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("merge failed: %w", err))
		}
	}

	return cfg, nil
}

func isNilSection(v any) bool {
	switch s := v.(type) {
	case *RoutingConfig:
		return s == nil
	case *BudgetConfig:
		return s == nil
	case *MonitorConfig:
		return s == nil
	case *RetentionConfig:
		return s == nil
	case *PricingConfig:
		return s == nil
	case *SkillsConfig:
		return s == nil
	case *KVConfig:
		return s == nil
	case *ToolsConfig:
		return s == nil
	}
	return v == nil
}

// Validate runs struct-tag validation plus cross-field checks on a config.
func Validate(cfg *Config) error {
	v := validator.New()
	for name, section := range map[string]any{
		"routing":   cfg.Routing,
		"budget":    cfg.Budget,
		"monitors":  cfg.Monitors,
		"retention": cfg.Retention,
		"pricing":   cfg.Pricing,
		"skills":    cfg.Skills,
	} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("section %s: %w", name, err)
		}
	}

	if cfg.Budget.EmergencyShutdownThreshold < cfg.Budget.MaxTotalCostPerHour {
		return fmt.Errorf("budget: emergency_shutdown_threshold (%.2f) below max_total_cost_per_hour (%.2f)",
			cfg.Budget.EmergencyShutdownThreshold, cfg.Budget.MaxTotalCostPerHour)
	}

	for name, server := range cfg.Tools.Servers {
		if err := validateTransport(server.Transport); err != nil {
			return fmt.Errorf("tool server %q: %w", name, err)
		}
	}

	return nil
}

func validateTransport(t TransportConfig) error {
	switch t.Type {
	case TransportTypeStdio:
		if t.Command == "" {
			return fmt.Errorf("stdio transport requires command")
		}
	case TransportTypeHTTP, TransportTypeSSE, TransportTypeWebSocket:
		if t.URL == "" {
			return fmt.Errorf("%s transport requires url", t.Type)
		}
	default:
		return fmt.Errorf("unsupported transport type: %q", t.Type)
	}
	return nil
}
