package steps

import (
	"context"
	"math/rand/v2"

	"github.com/embarkhq/embark/pkg/models"
)

// randIntN is swapped by tests that need a deterministic pick.
var randIntN = rand.IntN

// ExperimentStep splits traffic across its children by weight. Each child
// edge is repeated ratio times in a pool and one entry is drawn uniformly,
// so selection frequency converges on the ratio proportions.
type ExperimentStep struct {
	base
}

func (s *ExperimentStep) Condition(_ context.Context) (bool, error) {
	return true, nil
}

func (s *ExperimentStep) Complete(_ context.Context) (bool, error) {
	if _, chosen := s.row.Data["selected"]; !chosen {
		s.capture("selected", s.pick())
	}

	s.row.Type = models.UserStepTypeCompleted

	return true, nil
}

func (s *ExperimentStep) Next(_ context.Context) (string, error) {
	selected, _ := s.row.Data["selected"].(string)

	return selected, nil
}

// pick draws a child weighted by its edge ratio. An empty pool, meaning no
// child carries a positive ratio, ends the branch.
func (s *ExperimentStep) pick() string {
	var pool []string

	for _, child := range s.run.Journey().ChildrenOf(s.step.ID) {
		for i := 0; i < child.Ratio(); i++ {
			pool = append(pool, child.ChildID)
		}
	}

	if len(pool) == 0 {
		return ""
	}

	return pool[randIntN(len(pool))]
}
