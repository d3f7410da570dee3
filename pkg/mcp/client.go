package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/config"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mesherrors"
)

// clientName identifies this process in MCP handshakes.
const clientName = "enterprisehub-mesh"

// Client manages tool server sessions and implements Caller.
// Thread-safe: sessions may be used from concurrent adapter goroutines.
// WebSocket-bound servers bypass the SDK and use the JSON-RPC binding.
type Client struct {
	registry *config.ToolsConfig

	mu            sync.RWMutex
	sessions      map[string]*mcpsdk.ClientSession // server → SDK session
	wsConns       map[string]*wsConn               // server → websocket binding
	failedServers map[string]string                // server → error message

	// Per-server mutex for session (re)creation to prevent thundering herd.
	initMu sync.Map // server → *sync.Mutex

	logger *slog.Logger
}

// NewClient creates a Client over the configured tool server registry.
func NewClient(registry *config.ToolsConfig) *Client {
	return &Client{
		registry:      registry,
		sessions:      make(map[string]*mcpsdk.ClientSession),
		wsConns:       make(map[string]*wsConn),
		failedServers: make(map[string]string),
		logger:        slog.Default(),
	}
}

// Initialize connects to the named servers. Servers that fail to connect
// are recorded in failedServers; the caller decides whether that is fatal
// (startup validation) or acceptable (lazy per-call recovery).
func (c *Client) Initialize(ctx context.Context, serverIDs []string) error {
	for _, id := range serverIDs {
		if err := c.InitializeServer(ctx, id); err != nil {
			c.mu.Lock()
			c.failedServers[id] = err.Error()
			c.mu.Unlock()
			c.logger.Warn("Tool server failed to initialize", "server", id, "error", err)
		}
	}
	return nil
}

// InitializeServer connects to a single server. Returns nil if already
// connected. Uses a per-server mutex to serialize initialization attempts.
func (c *Client) InitializeServer(ctx context.Context, serverID string) error {
	muI, _ := c.initMu.LoadOrStore(serverID, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	return c.initializeServerLocked(ctx, serverID)
}

// initializeServerLocked performs the actual connection.
// Caller must hold the per-server initMu lock.
func (c *Client) initializeServerLocked(ctx context.Context, serverID string) error {
	if c.hasConnection(serverID) {
		return nil
	}

	serverCfg, err := c.registry.Get(serverID)
	if err != nil {
		return fmt.Errorf("server %q not found in registry: %w", serverID, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, InitTimeout)
	defer cancel()

	// WebSocket servers use the direct JSON-RPC binding, not the SDK.
	if serverCfg.Transport.Type == config.TransportTypeWebSocket {
		conn, err := dialWS(initCtx, serverCfg.Transport)
		if err != nil {
			return fmt.Errorf("failed to connect to %q: %w", serverID, err)
		}
		c.mu.Lock()
		c.wsConns[serverID] = conn
		delete(c.failedServers, serverID)
		c.mu.Unlock()
		c.logger.Info("Tool server connected", "server", serverID, "transport", "websocket")
		return nil
	}

	transport, err := newTransport(serverCfg.Transport)
	if err != nil {
		return fmt.Errorf("failed to create transport for %q: %w", serverID, err)
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: clientName, Version: "1.0"}, nil)
	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		// Close the transport if it leaks resources (stdio child processes).
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return fmt.Errorf("failed to connect to %q: %w", serverID, err)
	}

	c.mu.Lock()
	c.sessions[serverID] = session
	delete(c.failedServers, serverID)
	c.mu.Unlock()

	c.logger.Info("Tool server connected", "server", serverID)
	return nil
}

func (c *Client) hasConnection(serverID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.sessions[serverID]; ok {
		return true
	}
	_, ok := c.wsConns[serverID]
	return ok
}

// CallTool executes a tool call on the named server. Transport-classed
// failures get one retry after a jittered backoff with session recreation;
// everything else is returned to the caller immediately.
func (c *Client) CallTool(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	// Lazy connect for servers not initialized at startup.
	if !c.hasConnection(server) {
		if err := c.InitializeServer(ctx, server); err != nil {
			return nil, mesherrors.NewTransportError(server, err)
		}
	}

	result, err := c.callToolOnce(ctx, server, tool, args)
	if err == nil {
		return result, nil
	}
	if !shouldRecreateSession(err) {
		return nil, err
	}

	c.logger.Info("Tool call failed, retrying with fresh session",
		"server", server, "tool", tool, "error", err)

	backoff := RetryBackoffMin + time.Duration(rand.Int64N(int64(RetryBackoffMax-RetryBackoffMin)))
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := c.recreateSession(ctx, server); err != nil {
		return nil, mesherrors.NewTransportError(server, fmt.Errorf("session recreation failed: %w", err))
	}

	result, err = c.callToolOnce(ctx, server, tool, args)
	if err != nil {
		return nil, fmt.Errorf("retry failed for %s.%s: %w", server, tool, err)
	}
	return result, nil
}

// callToolOnce performs a single attempt over whichever binding the server uses.
func (c *Client) callToolOnce(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	c.mu.RLock()
	session := c.sessions[server]
	ws := c.wsConns[server]
	c.mu.RUnlock()

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if ws != nil {
		return ws.callTool(opCtx, server, tool, args)
	}
	if session == nil {
		return nil, mesherrors.NewTransportError(server, fmt.Errorf("no session for server %q", server))
	}

	res, err := session.CallTool(opCtx, &mcpsdk.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return nil, mesherrors.NewTransportError(server, err)
	}
	return normalizeResult(server, tool, res)
}

// recreateSession tears down and reconnects the server's binding.
func (c *Client) recreateSession(ctx context.Context, serverID string) error {
	muI, _ := c.initMu.LoadOrStore(serverID, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	c.mu.Lock()
	if session, ok := c.sessions[serverID]; ok {
		_ = session.Close()
		delete(c.sessions, serverID)
	}
	if ws, ok := c.wsConns[serverID]; ok {
		_ = ws.Close()
		delete(c.wsConns, serverID)
	}
	c.mu.Unlock()

	reinitCtx, cancel := context.WithTimeout(ctx, ReinitTimeout)
	defer cancel()
	return c.initializeServerLocked(reinitCtx, serverID)
}

// Close shuts down all sessions and bindings.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for id, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %q: %w", id, err)
		}
	}
	for id, ws := range c.wsConns {
		if err := ws.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close websocket %q: %w", id, err)
		}
	}
	c.sessions = make(map[string]*mcpsdk.ClientSession)
	c.wsConns = make(map[string]*wsConn)
	c.failedServers = make(map[string]string)
	return firstErr
}

// FailedServers returns a copy of the failed-server map.
func (c *Client) FailedServers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.failedServers))
	for k, v := range c.failedServers {
		out[k] = v
	}
	return out
}
