package config

import "fmt"

// TransportType identifies how a tool server is reached.
type TransportType string

// Supported tool transports.
const (
	TransportTypeStdio     TransportType = "stdio"
	TransportTypeHTTP      TransportType = "http"
	TransportTypeSSE       TransportType = "sse"
	TransportTypeWebSocket TransportType = "websocket"
)

// TransportConfig describes one tool server's transport binding.
type TransportConfig struct {
	Type TransportType `json:"type" validate:"required"`

	// Stdio transport.
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// HTTP/SSE/WebSocket transports.
	URL         string `json:"url,omitempty"`
	BearerToken string `json:"bearer_token,omitempty"`
	VerifySSL   *bool  `json:"verify_ssl,omitempty"`
	Timeout     int    `json:"timeout,omitempty"` // seconds
}

// ToolServerConfig is one entry in the tool server registry.
type ToolServerConfig struct {
	Transport TransportConfig `json:"transport"`
}

// ToolsConfig is the registry of tool servers reachable through the
// tool-invocation port, keyed by server name.
type ToolsConfig struct {
	Servers map[string]ToolServerConfig `json:"servers"`
}

// DefaultToolsConfig returns an empty tool server registry.
func DefaultToolsConfig() *ToolsConfig {
	return &ToolsConfig{Servers: map[string]ToolServerConfig{}}
}

// Get returns the configuration for a named server.
func (c *ToolsConfig) Get(name string) (ToolServerConfig, error) {
	server, ok := c.Servers[name]
	if !ok {
		return ToolServerConfig{}, fmt.Errorf("%w: %s", ErrToolServerNotFound, name)
	}
	return server, nil
}

// Has reports whether a server is configured.
func (c *ToolsConfig) Has(name string) bool {
	_, ok := c.Servers[name]
	return ok
}

// ServerIDs returns all configured server names.
func (c *ToolsConfig) ServerIDs() []string {
	ids := make([]string, 0, len(c.Servers))
	for id := range c.Servers {
		ids = append(ids, id)
	}
	return ids
}
