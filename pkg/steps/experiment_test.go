package steps

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embarkhq/embark/pkg/models"
)

func experimentJourney(ratios map[string]int) *models.Journey {
	journey := &models.Journey{
		ID:     "j1",
		Status: models.JourneyStatusPublished,
		Steps: []*models.JourneyStep{
			{ID: "x1", Type: models.StepTypeExperiment, ExternalID: "split"},
		},
	}

	priority := 0

	for _, childID := range []string{"a", "b"} {
		ratio, ok := ratios[childID]
		if !ok {
			continue
		}

		journey.Steps = append(journey.Steps, &models.JourneyStep{
			ID: childID, Type: models.StepTypeUpdate, ExternalID: childID,
		})
		journey.Children = append(journey.Children, &models.JourneyStepChild{
			StepID:   "x1",
			ChildID:  childID,
			Priority: priority,
			Data:     map[string]any{"ratio": float64(ratio)},
		})
		priority++
	}

	return journey
}

func withRandIntN(t *testing.T, fn func(int) int) {
	t.Helper()

	original := randIntN
	randIntN = fn
	t.Cleanup(func() { randIntN = original })
}

func TestExperimentStepPoolIsWeighted(t *testing.T) {
	ctx := context.Background()
	journey := experimentJourney(map[string]int{"a": 3, "b": 1})
	run := newFakeRun(journey)
	row := newRow("x1")

	// The pool is [a a a b]; drawing the last entry selects b.
	withRandIntN(t, func(n int) int {
		require.Equal(t, 4, n)

		return n - 1
	})

	step, err := New(run, journey.Steps[0], row)
	require.NoError(t, err)

	proceed, err := step.Complete(ctx)
	require.NoError(t, err)
	assert.True(t, proceed)
	assert.Equal(t, "b", row.Data["selected"])

	next, err := step.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", next)
}

func TestExperimentStepDrawsAreProportional(t *testing.T) {
	ctx := context.Background()
	journey := experimentJourney(map[string]int{"a": 1, "b": 1})

	// Seeded source keeps the draw sequence reproducible.
	src := rand.New(rand.NewPCG(7, 11))
	withRandIntN(t, src.IntN)

	const draws = 10000

	counts := map[string]int{}

	for i := 0; i < draws; i++ {
		run := newFakeRun(journey)
		row := newRow("x1")

		step, err := New(run, journey.Steps[0], row)
		require.NoError(t, err)

		_, err = step.Complete(ctx)
		require.NoError(t, err)

		selected, _ := row.Data["selected"].(string)
		counts[selected]++
	}

	// Equal ratios should split the draws roughly evenly.
	assert.InDelta(t, draws/2, counts["a"], draws/20)
	assert.InDelta(t, draws/2, counts["b"], draws/20)
}

func TestExperimentStepSelectionIsSticky(t *testing.T) {
	ctx := context.Background()
	journey := experimentJourney(map[string]int{"a": 1, "b": 1})
	run := newFakeRun(journey)

	row := newRow("x1")
	row.SetData("selected", "a")

	// A re-run must never redraw an already recorded selection.
	withRandIntN(t, func(int) int {
		t.Fatal("selection redrawn")

		return 0
	})

	step, err := New(run, journey.Steps[0], row)
	require.NoError(t, err)

	_, err = step.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", row.Data["selected"])
}

func TestExperimentStepEmptyPoolEndsBranch(t *testing.T) {
	ctx := context.Background()
	journey := experimentJourney(map[string]int{"a": 0, "b": 0})
	run := newFakeRun(journey)
	row := newRow("x1")

	step, err := New(run, journey.Steps[0], row)
	require.NoError(t, err)

	proceed, err := step.Complete(ctx)
	require.NoError(t, err)
	assert.True(t, proceed)

	next, err := step.Next(ctx)
	require.NoError(t, err)
	assert.Empty(t, next)
}
