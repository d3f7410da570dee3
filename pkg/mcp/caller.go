// Package mcp implements the tool-invocation port: transport-agnostic RPC
// to external tool servers. The coordinator and skills manager consume only
// the Caller signature; concrete bindings cover stdio, streamable HTTP, and
// SSE through the MCP SDK plus a WebSocket JSON-RPC binding.
package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mesherrors"
)

// Caller is the tool-invocation port.
type Caller interface {
	// CallTool executes a named tool on a named server and returns the
	// decoded result map. Failures are typed: transport-level problems
	// match mesherrors.ErrTransport, structured tool failures match
	// mesherrors.ErrTool.
	CallTool(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error)
}

// normalizeResult converts an SDK tool result into the port's result map.
// Structured content wins when present; otherwise text content blocks are
// joined under "text". Tool-reported errors become ToolError.
func normalizeResult(server, tool string, res *mcpsdk.CallToolResult) (map[string]any, error) {
	if res == nil {
		return nil, mesherrors.NewToolError(server, tool, "empty result")
	}

	if res.IsError {
		return nil, mesherrors.NewToolError(server, tool, flattenText(res))
	}

	if sc, ok := res.StructuredContent.(map[string]any); ok && sc != nil {
		return sc, nil
	}

	return map[string]any{"text": flattenText(res)}, nil
}

// flattenText joins all text content blocks of a result.
func flattenText(res *mcpsdk.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 {
		return "(no content)"
	}
	return strings.Join(parts, "\n")
}

// SplitEndpoint parses the "server:tool" endpoint convention used by
// tool-routed agents.
func SplitEndpoint(endpoint string) (server, tool string, err error) {
	server, tool, ok := strings.Cut(endpoint, ":")
	if !ok || server == "" || tool == "" {
		return "", "", fmt.Errorf("endpoint %q is not in server:tool form", endpoint)
	}
	return server, tool, nil
}
