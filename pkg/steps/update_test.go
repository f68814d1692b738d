package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embarkhq/embark/pkg/models"
)

func updateJourney(data map[string]any) *models.Journey {
	return &models.Journey{
		ID:     "j1",
		Status: models.JourneyStatusPublished,
		Steps: []*models.JourneyStep{
			{ID: "u1", Type: models.StepTypeUpdate, ExternalID: "mark", Data: data},
		},
	}
}

func TestUpdateStepMergesRenderedAttributes(t *testing.T) {
	ctx := context.Background()
	journey := updateJourney(map[string]any{
		"template": map[string]any{
			"segment":    "upgraded-{{.user.plan}}",
			"last_event": "{{.event.name}}",
		},
	})
	run := newFakeRun(journey)
	run.triggerEvent = map[string]any{"name": "purchase"}
	row := newRow("u1")

	step, err := New(run, journey.Steps[0], row)
	require.NoError(t, err)

	proceed, err := step.Complete(ctx)
	require.NoError(t, err)
	assert.True(t, proceed)
	assert.Equal(t, models.UserStepTypeCompleted, row.Type)

	assert.Equal(t, "upgraded-pro", run.user.Attributes["segment"])
	assert.Equal(t, "purchase", run.user.Attributes["last_event"])
	assert.Equal(t, "pro", run.user.Attributes["plan"])

	// The merged user must be persisted, not just mutated in memory.
	saved, err := run.users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "upgraded-pro", saved.Attributes["segment"])

	merged, ok := row.Data["merged"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "upgraded-pro", merged["segment"])
}

func TestUpdateStepRendersPriorStepData(t *testing.T) {
	ctx := context.Background()
	journey := updateJourney(map[string]any{
		"template": map[string]any{
			"variant": "{{.steps.split.selected}}",
		},
	})
	run := newFakeRun(journey)
	run.stepData = map[string]map[string]any{
		"split": {"selected": "treatment"},
	}
	row := newRow("u1")

	step, err := New(run, journey.Steps[0], row)
	require.NoError(t, err)

	_, err = step.Complete(ctx)
	require.NoError(t, err)

	assert.Equal(t, "treatment", run.user.Attributes["variant"])
}

func TestUpdateStepTemplateErrorIsTerminal(t *testing.T) {
	journey := updateJourney(map[string]any{
		"template": map[string]any{"bad": "{{.user.plan"},
	})
	run := newFakeRun(journey)
	row := newRow("u1")

	step, err := New(run, journey.Steps[0], row)
	require.NoError(t, err)

	_, err = step.Complete(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.UserStepTypePending, row.Type)
	assert.Empty(t, run.users.saved)
}

func TestUpdateStepWithoutTemplate(t *testing.T) {
	journey := updateJourney(map[string]any{})
	run := newFakeRun(journey)

	step, err := New(run, journey.Steps[0], newRow("u1"))
	require.NoError(t, err)

	_, err = step.Complete(context.Background())
	assert.Error(t, err)
}
