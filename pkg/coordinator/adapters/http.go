package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/coordinator"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mesherrors"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
)

// maxReplyBytes bounds how much of an agent reply is read.
const maxReplyBytes = 4 << 20

// HTTP executes tasks against remote agents over plain HTTP: the task
// payload is POSTed as JSON to the agent endpoint and the JSON reply becomes
// the result map.
type HTTP struct {
	client *http.Client
}

// NewHTTP creates the generic HTTP executor. A nil client uses
// http.DefaultClient; per-call timeouts come from the task deadline.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client}
}

// Execute implements coordinator.Executor.
func (h *HTTP) Execute(ctx context.Context, task *models.Task, agent *models.Agent) (*coordinator.ExecResult, error) {
	ctx, cancel := deadlineContext(ctx, task)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"task_id":   task.TaskID,
		"task_type": task.TaskType,
		"payload":   task.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode task %s: %w", task.TaskID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, mesherrors.NewTransportError(agent.Endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if derr := classifyDeadline(ctx, err, task.TaskID); derr != err {
			return nil, derr
		}
		return nil, mesherrors.NewTransportError(agent.Endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, mesherrors.NewTransportError(agent.Endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, mesherrors.NewTransportError(agent.Endpoint,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data, 200)))
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, mesherrors.NewTransportError(agent.Endpoint,
			fmt.Errorf("reply is not JSON: %w", err))
	}

	return &coordinator.ExecResult{
		TokensUsed: tokensFrom(result),
		Model:      modelFrom(result),
		Result:     result,
	}, nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
