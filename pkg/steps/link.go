package steps

import (
	"context"
	"fmt"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/queue"
)

// LinkStep starts a different journey for the same user as an asynchronous
// continuation. It never blocks on the linked journey.
type LinkStep struct {
	base
}

func (s *LinkStep) Complete(_ context.Context) (bool, error) {
	journeyID := s.dataString("journey_id")
	if journeyID == "" {
		return false, fmt.Errorf("link step %s has no journey_id", s.step.ID)
	}

	if journeyID == s.run.Journey().ID {
		return false, fmt.Errorf("link step %s points at its own journey", s.step.ID)
	}

	job := queue.NewJob(JobStartJourney, map[string]any{
		"journey_id": journeyID,
		"user_id":    s.run.User().ID,
		"event":      s.run.TriggerEvent(),
	})
	s.run.Enqueue(job)

	s.capture("linked_journey_id", journeyID)
	s.row.Type = models.UserStepTypeCompleted

	return true, nil
}
