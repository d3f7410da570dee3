package adapters

import (
	"context"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/coordinator"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mcp"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mesherrors"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
)

// Tool executes tasks against a tool server. The agent endpoint names the
// binding in "server:tool" form; the task payload travels as the tool
// arguments.
type Tool struct {
	caller mcp.Caller
}

// NewTool creates the tool-invocation executor.
func NewTool(caller mcp.Caller) *Tool {
	return &Tool{caller: caller}
}

// Execute implements coordinator.Executor.
func (t *Tool) Execute(ctx context.Context, task *models.Task, agent *models.Agent) (*coordinator.ExecResult, error) {
	server, tool, err := mcp.SplitEndpoint(agent.Endpoint)
	if err != nil {
		return nil, mesherrors.NewValidationError("agent", agent.AgentID, "endpoint", err.Error())
	}

	ctx, cancel := deadlineContext(ctx, task)
	defer cancel()

	result, err := t.caller.CallTool(ctx, server, tool, task.Payload)
	if err != nil {
		return nil, classifyDeadline(ctx, err, task.TaskID)
	}

	return &coordinator.ExecResult{
		TokensUsed: tokensFrom(result),
		Model:      modelFrom(result),
		Result:     result,
	}, nil
}
