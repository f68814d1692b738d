package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embarkhq/embark/pkg/models"
)

func TestNewRejectsUnknownStepType(t *testing.T) {
	journey := &models.Journey{ID: "j1"}
	run := newFakeRun(journey)

	_, err := New(run, &models.JourneyStep{ID: "s1", Type: "teleport"}, newRow("s1"))
	assert.Error(t, err)
}

func TestNewCoversEveryStepType(t *testing.T) {
	journey := &models.Journey{ID: "j1"}
	run := newFakeRun(journey)

	for _, stepType := range models.StepTypes {
		step, err := New(run, &models.JourneyStep{ID: "s1", Type: stepType}, newRow("s1"))
		require.NoError(t, err, stepType)
		assert.NotNil(t, step)
	}
}

func TestBaseHasCompletedScansHistory(t *testing.T) {
	journey := &models.Journey{
		ID: "j1",
		Steps: []*models.JourneyStep{
			{ID: "e1", Type: models.StepTypeEntrance, ExternalID: "start"},
		},
	}
	run := newFakeRun(journey)

	done := newRow("e1")
	done.Type = models.UserStepTypeCompleted
	run.history = []*models.JourneyUserStep{done}

	step, err := New(run, journey.Steps[0], newRow("e1"))
	require.NoError(t, err)
	assert.True(t, step.HasCompleted())

	run.history = nil
	assert.False(t, step.HasCompleted())
}

func TestBaseNextFollowsLowestPriorityEdge(t *testing.T) {
	journey := &models.Journey{
		ID: "j1",
		Steps: []*models.JourneyStep{
			{ID: "e1", Type: models.StepTypeEntrance, ExternalID: "start"},
			{ID: "s2", Type: models.StepTypeUpdate, ExternalID: "second"},
			{ID: "s3", Type: models.StepTypeUpdate, ExternalID: "third"},
		},
		Children: []*models.JourneyStepChild{
			{StepID: "e1", ChildID: "s3", Priority: 1},
			{StepID: "e1", ChildID: "s2", Priority: 0},
		},
	}
	run := newFakeRun(journey)

	step, err := New(run, journey.Steps[0], newRow("e1"))
	require.NoError(t, err)

	next, err := step.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s2", next)
}

func TestEntranceStepAlwaysReady(t *testing.T) {
	journey := &models.Journey{
		ID: "j1",
		Steps: []*models.JourneyStep{
			{ID: "e1", Type: models.StepTypeEntrance, ExternalID: "start"},
		},
	}
	run := newFakeRun(journey)
	row := newRow("e1")

	step, err := New(run, journey.Steps[0], row)
	require.NoError(t, err)

	ready, err := step.Condition(context.Background())
	require.NoError(t, err)
	assert.True(t, ready)

	proceed, err := step.Complete(context.Background())
	require.NoError(t, err)
	assert.True(t, proceed)
	assert.Equal(t, models.UserStepTypeCompleted, row.Type)
}
