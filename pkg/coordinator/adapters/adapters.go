// Package adapters provides the executor implementations the coordinator
// dispatches to: skills-based agents, tool-invocation agents, and generic
// HTTP agents. Every adapter honors the task deadline and returns typed
// errors.
package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mesherrors"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
)

// deadlineContext bounds ctx by the task deadline when one is set and the
// context does not already carry an earlier one.
func deadlineContext(ctx context.Context, task *models.Task) (context.Context, context.CancelFunc) {
	if task.Deadline == nil {
		return context.WithCancel(ctx)
	}
	if existing, ok := ctx.Deadline(); ok && !existing.After(*task.Deadline) {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, *task.Deadline)
}

// classifyDeadline converts context expiry into the mesh deadline error;
// other errors pass through unchanged.
func classifyDeadline(ctx context.Context, err error, taskID string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("task %s: %w", taskID, mesherrors.ErrDeadlineExceeded)
	}
	return err
}

// tokensFrom extracts a numeric tokens_used field from an agent reply.
func tokensFrom(result map[string]any) int {
	switch v := result["tokens_used"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// modelFrom extracts the model identifier from an agent reply, if reported.
func modelFrom(result map[string]any) string {
	if s, ok := result["model"].(string); ok {
		return s
	}
	return ""
}
