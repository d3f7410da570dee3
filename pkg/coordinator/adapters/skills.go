package adapters

import (
	"context"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/coordinator"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/skills"
)

// Skills executes tasks through the progressive skills manager. The task
// type names the skill; the payload supplies the {{key}} substitution
// context. A failed language-model call yields the manager's safe fallback
// response rather than a task failure, so the conversation keeps moving.
type Skills struct {
	manager *skills.Manager
}

// NewSkills creates the skills executor.
func NewSkills(manager *skills.Manager) *Skills {
	return &Skills{manager: manager}
}

// Execute implements coordinator.Executor. The manager records the usage
// with the mesh_coordinated approach label.
func (s *Skills) Execute(ctx context.Context, task *models.Task, agent *models.Agent) (*coordinator.ExecResult, error) {
	ctx, cancel := deadlineContext(ctx, task)
	defer cancel()

	exec := s.manager.ExecuteSkill(ctx, skills.ExecuteInput{
		TaskID:    task.TaskID,
		UserID:    task.RequesterID,
		TaskType:  task.TaskType,
		SkillName: task.TaskType,
		Context:   task.Payload,
		Approach:  models.ApproachMeshCoordinated,
	})

	if err := ctx.Err(); err != nil {
		return nil, classifyDeadline(ctx, err, task.TaskID)
	}

	return &coordinator.ExecResult{
		TokensUsed: exec.EstimatedTokens,
		Result: map[string]any{
			"skill_used": exec.SkillUsed,
			"response":   exec.Response,
			"confidence": exec.Confidence,
			"ok":         exec.OK,
		},
	}, nil
}
