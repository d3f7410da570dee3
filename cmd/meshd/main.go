// meshd is the mesh coordinator server: it loads the mesh configuration,
// connects the KV and tool ports, wires the skills manager, token tracker,
// and coordinator, and serves the HTTP edge.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/api"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/config"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/coordinator"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/coordinator/adapters"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/kv"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mcp"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/skills"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/tokens"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("MESH_CONFIG", "./mesh.json"),
		"Path to the mesh configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	slog.Info("Starting mesh coordinator",
		"version", version.Full(),
		"http_port", httpPort,
		"config", *configPath)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configPath)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	stats := cfg.Stats()
	slog.Info("Configuration loaded",
		"tool_servers", stats.ToolServers,
		"pricing_models", stats.PricingModels)

	// 2. Connect the KV port. No URL means memory-only: the token tracker
	// degrades to no-op writes and agents do not survive restarts.
	var store kv.Store
	if cfg.KV.URL != "" {
		redisStore, err := kv.NewRedis(ctx, cfg.KV.URL, cfg.KV.DialTimeout)
		if err != nil {
			slog.Error("Failed to connect KV", "url", cfg.KV.URL, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisStore.Close(); err != nil {
				slog.Error("Error closing KV", "error", err)
			}
		}()
		store = redisStore
		slog.Info("Connected to Redis KV")
	} else {
		store = kv.NewMemory()
		slog.Warn("No KV configured, running memory-only")
	}

	// 3. Connect the tool port with eager startup validation: a server
	// that cannot connect at boot is a broken deployment.
	toolClient := mcp.NewClient(cfg.Tools)
	serverIDs := cfg.Tools.ServerIDs()
	if len(serverIDs) > 0 {
		if err := toolClient.Initialize(ctx, serverIDs); err != nil {
			slog.Error("Tool port initialization failed", "error", err)
			os.Exit(1)
		}
		if failed := toolClient.FailedServers(); len(failed) > 0 {
			slog.Error("Tool servers failed startup validation", "failed_servers", failed)
			os.Exit(1)
		}
		slog.Info("Tool servers validated", "count", len(serverIDs))
	}
	defer func() {
		if err := toolClient.Close(); err != nil {
			slog.Error("Error closing tool port", "error", err)
		}
	}()

	// 4. Token tracker and skills manager
	tracker := tokens.NewTracker(store, cfg.Pricing, cfg.Retention)
	skillsManager := skills.NewManager(cfg.Skills, toolClient, tracker)
	slog.Info("Skills manager initialized",
		"registry_version", skillsManager.Registry().Version)

	// 5. Coordinator with the three executor adapters
	coord := coordinator.New(coordinator.Deps{
		Config:  cfg,
		Store:   store,
		Tracker: tracker,
		Dispatcher: &coordinator.Dispatcher{
			Skills: adapters.NewSkills(skillsManager),
			Tool:   adapters.NewTool(toolClient),
			HTTP:   adapters.NewHTTP(nil),
		},
	})

	if restored, err := coord.RestoreAgents(ctx); err != nil {
		slog.Warn("Agent restore failed", "error", err)
	} else if restored > 0 {
		slog.Info("Restored persisted agents", "count", restored)
	}

	// 6. Background monitors
	coord.Start()

	// 7. HTTP edge (non-blocking)
	httpServer := api.NewServer(coord, tracker)
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(":" + httpPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("Mesh coordinator started")

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		slog.Error("HTTP server failed", "error", err)
	}

	// 9. Ordered stop: edge drains first, then monitors.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	coord.Stop()

	slog.Info("Mesh coordinator stopped")
}
