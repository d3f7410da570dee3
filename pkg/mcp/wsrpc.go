package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/config"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mesherrors"
)

// wsConn is the WebSocket binding of the tool port. It speaks JSON-RPC 2.0
// over a single connection: {jsonrpc, id, method:"tools/call",
// params:{name, arguments}} with {result|error} responses.
//
// Calls are serialized on the connection — the mesh's tool servers answer
// requests in order, so a request/response exchange under one mutex is
// simpler than an id-correlated demultiplexer and sufficient here.
type wsConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	nextID atomic.Int64
}

// rpcRequest is the JSON-RPC 2.0 request frame.
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// rpcResponse is the JSON-RPC 2.0 response frame.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// dialWS opens a WebSocket connection to a tool server.
func dialWS(ctx context.Context, cfg config.TransportConfig) (*wsConn, error) {
	dialer := *websocket.DefaultDialer

	var header http.Header
	if cfg.BearerToken != "" {
		header = http.Header{"Authorization": {"Bearer " + cfg.BearerToken}}
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: status %d: %w", cfg.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", cfg.URL, err)
	}
	return &wsConn{conn: conn}, nil
}

// callTool performs one JSON-RPC tools/call exchange.
func (w *wsConn) callTool(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      w.nextID.Add(1),
		Method:  "tools/call",
		Params:  rpcParams{Name: tool, Arguments: args},
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = w.conn.SetWriteDeadline(deadline)
		_ = w.conn.SetReadDeadline(deadline)
	}

	if err := w.conn.WriteJSON(req); err != nil {
		return nil, mesherrors.NewTransportError(server, fmt.Errorf("write: %w", err))
	}

	// Skip frames for stale ids (a previous call that timed out after the
	// server had already queued its reply).
	for {
		var resp rpcResponse
		if err := w.conn.ReadJSON(&resp); err != nil {
			return nil, mesherrors.NewTransportError(server, fmt.Errorf("read: %w", err))
		}
		if resp.ID != req.ID {
			continue
		}

		if resp.Error != nil {
			return nil, mesherrors.NewToolError(server, tool,
				fmt.Sprintf("code %d: %s", resp.Error.Code, resp.Error.Message))
		}

		var result map[string]any
		if len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, &result); err != nil {
				return nil, mesherrors.NewTransportError(server, fmt.Errorf("decode result: %w", err))
			}
		}
		if result == nil {
			result = map[string]any{}
		}
		return result, nil
	}
}

// Close closes the underlying connection.
func (w *wsConn) Close() error {
	return w.conn.Close()
}
