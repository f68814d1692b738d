package journey

import (
	"context"
	"fmt"

	"github.com/embarkhq/embark/pkg/models"
)

// StepStats counts entrances by their state at one step.
type StepStats struct {
	StepID     string `json:"step_id"`
	ExternalID string `json:"external_id"`
	Waiting    int    `json:"waiting"`
	Completed  int    `json:"completed"`
	Errored    int    `json:"errored"`
}

// Stats is the operator view of a journey: how many users sit at or have
// passed each step, plus entrance totals.
type Stats struct {
	JourneyID       string       `json:"journey_id"`
	TotalEntrances  int          `json:"total_entrances"`
	ActiveEntrances int          `json:"active_entrances"`
	EndedEntrances  int          `json:"ended_entrances"`
	Steps           []*StepStats `json:"steps"`
}

// JourneyStats derives per-step counts from the journey's history rows.
func (s *Service) JourneyStats(ctx context.Context, journeyID string) (*Stats, error) {
	j, err := s.persistence.Journeys().GetByID(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load journey: %w", err)
	}

	rows, err := s.persistence.UserSteps().ByJourney(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load journey history: %w", err)
	}

	byStep := make(map[string]*StepStats, len(j.Steps))

	stats := &Stats{JourneyID: journeyID}

	for _, step := range j.Steps {
		entry := &StepStats{StepID: step.ID, ExternalID: step.ExternalID}
		byStep[step.ID] = entry
		stats.Steps = append(stats.Steps, entry)
	}

	for _, row := range rows {
		if row.IsEntrance() {
			stats.TotalEntrances++

			if row.Ended() {
				stats.EndedEntrances++
			} else {
				stats.ActiveEntrances++
			}
		}

		entry := byStep[row.StepID]
		if entry == nil {
			continue
		}

		switch row.Type {
		case models.UserStepTypeCompleted:
			entry.Completed++
		case models.UserStepTypeError:
			entry.Errored++
		default:
			entry.Waiting++
		}
	}

	return stats, nil
}
