package steps

import (
	"context"
	"fmt"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/template"
)

// UpdateStep renders a data-mutation template against the user and the
// triggering event, and merges the result into the user's attribute bag. A
// template error is terminal for the entrance.
type UpdateStep struct {
	base
}

func (s *UpdateStep) Complete(ctx context.Context) (bool, error) {
	tmpl, ok := s.step.Data["template"].(map[string]any)
	if !ok {
		return false, fmt.Errorf("update step %s has no template object", s.step.ID)
	}

	user := s.run.User()

	data := map[string]any{
		"user":  user.Attributes,
		"event": s.run.TriggerEvent(),
		"steps": s.run.StepData(),
		"now":   s.run.Now(),
	}

	rendered, err := template.RenderMap(tmpl, data)
	if err != nil {
		return false, fmt.Errorf("update template failed: %w", err)
	}

	user.MergeAttributes(rendered)
	user.UpdatedAt = s.run.Now()

	if err := s.run.Users().Save(ctx, user); err != nil {
		return false, fmt.Errorf("failed to persist updated user: %w", err)
	}

	s.capture("merged", rendered)
	s.row.Type = models.UserStepTypeCompleted

	return true, nil
}
