package file

import (
	"context"
	"sort"
	"time"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
)

const journeysKind = "journeys"

// JourneyRepository stores journey definitions with their full step maps as
// single JSON documents.
type JourneyRepository struct {
	p *Persistence
}

func (r *JourneyRepository) GetByID(_ context.Context, id string) (*models.Journey, error) {
	var journey models.Journey
	if err := r.p.read(journeysKind, id, &journey, persistence.ErrJourneyNotFound); err != nil {
		return nil, err
	}

	return &journey, nil
}

func (r *JourneyRepository) Save(_ context.Context, journey *models.Journey) error {
	if journey.CreatedAt.IsZero() {
		journey.CreatedAt = time.Now().UTC()
	}

	journey.UpdatedAt = time.Now().UTC()

	return r.p.write(journeysKind, journey.ID, journey)
}

func (r *JourneyRepository) Delete(_ context.Context, id string) error {
	return r.p.remove(journeysKind, id)
}

func (r *JourneyRepository) Published(_ context.Context, projectID string) ([]*models.Journey, error) {
	var journeys []*models.Journey

	err := r.p.readEach(journeysKind,
		func() any { return &models.Journey{} },
		func(item any) {
			journey := item.(*models.Journey)
			if projectID != "" && journey.ProjectID != projectID {
				return
			}

			if journey.IsPublished() {
				journeys = append(journeys, journey)
			}
		})
	if err != nil {
		return nil, err
	}

	sort.Slice(journeys, func(i, k int) bool {
		return journeys[i].CreatedAt.Before(journeys[k].CreatedAt)
	})

	return journeys, nil
}
