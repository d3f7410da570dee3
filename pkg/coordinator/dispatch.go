package coordinator

import (
	"context"
	"strings"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
)

// ExecResult is the normalized adapter outcome.
type ExecResult struct {
	TokensUsed int
	Model      string
	Result     map[string]any
}

// Executor runs one task against one agent. Implementations must honor the
// task deadline and return typed errors (transport, tool, deadline).
type Executor interface {
	Execute(ctx context.Context, task *models.Task, agent *models.Agent) (*ExecResult, error)
}

// Executor kinds, used for dispatch decisions and logging.
const (
	ExecutorKindSkills = "skills"
	ExecutorKindTool   = "tool"
	ExecutorKindHTTP   = "http"
)

// Agent name prefixes that select an executor.
const (
	skillsAgentPrefix = "jorge_"
	toolAgentPrefix   = "mcp_"
)

// Dispatcher resolves the executor for an agent by name convention:
// jorge_-prefixed agents run through the skills adapter, mcp_-prefixed
// agents through the tool-invocation adapter, everything else over HTTP.
type Dispatcher struct {
	Skills Executor
	Tool   Executor
	HTTP   Executor
}

// Resolve returns the executor and its kind for the given agent.
func (d *Dispatcher) Resolve(agent *models.Agent) (Executor, string) {
	switch {
	case strings.HasPrefix(agent.Name, skillsAgentPrefix):
		return d.Skills, ExecutorKindSkills
	case strings.HasPrefix(agent.Name, toolAgentPrefix):
		return d.Tool, ExecutorKindTool
	default:
		return d.HTTP, ExecutorKindHTTP
	}
}
