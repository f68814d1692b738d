package steps

import (
	"context"
	"fmt"

	"github.com/embarkhq/embark/pkg/models"
)

// New builds the behavior implementation for a step. The switch is the
// single dispatch point over the closed step type set.
func New(run Run, step *models.JourneyStep, row *models.JourneyUserStep) (Step, error) {
	b := base{run: run, step: step, row: row}

	switch step.Type {
	case models.StepTypeEntrance:
		return &EntranceStep{base: b}, nil
	case models.StepTypeDelay:
		return &DelayStep{base: b}, nil
	case models.StepTypeGate:
		return &GateStep{base: b}, nil
	case models.StepTypeExperiment:
		return &ExperimentStep{base: b}, nil
	case models.StepTypeAction:
		return &ActionStep{base: b}, nil
	case models.StepTypeLink:
		return &LinkStep{base: b}, nil
	case models.StepTypeUpdate:
		return &UpdateStep{base: b}, nil
	default:
		return nil, fmt.Errorf("unknown step type %q", step.Type)
	}
}

// base carries the shared state and default behaviors of every step type.
type base struct {
	run  Run
	step *models.JourneyStep
	row  *models.JourneyUserStep
}

func (b *base) Step() *models.JourneyStep {
	return b.step
}

func (b *base) HasCompleted() bool {
	for _, row := range b.run.History() {
		if row.StepID == b.step.ID && row.Completed() {
			return true
		}
	}

	return false
}

func (b *base) Condition(_ context.Context) (bool, error) {
	return !b.HasCompleted(), nil
}

func (b *base) Complete(_ context.Context) (bool, error) {
	b.row.Type = models.UserStepTypeCompleted

	return true, nil
}

func (b *base) Next(_ context.Context) (string, error) {
	children := b.run.Journey().ChildrenOf(b.step.ID)
	if len(children) == 0 {
		return "", nil
	}

	return children[0].ChildID, nil
}

// capture records a value into the history row's data bag so later steps can
// reference it through StepData.
func (b *base) capture(key string, value any) {
	b.row.SetData(key, value)
}

// dataString reads a string field from the step's type-specific payload.
func (b *base) dataString(key string) string {
	if b.step.Data == nil {
		return ""
	}

	s, _ := b.step.Data[key].(string)

	return s
}

// dataNumber reads a numeric field from the step's payload.
func (b *base) dataNumber(key string) (float64, bool) {
	if b.step.Data == nil {
		return 0, false
	}

	switch v := b.step.Data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
