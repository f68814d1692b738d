package file

import (
	"context"
	"sort"
	"time"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
)

const userStepsKind = "user_steps"

// UserStepRepository stores per-entrance execution history rows.
type UserStepRepository struct {
	p *Persistence
}

func (r *UserStepRepository) GetByID(_ context.Context, id string) (*models.JourneyUserStep, error) {
	var row models.JourneyUserStep
	if err := r.p.read(userStepsKind, id, &row, persistence.ErrUserStepNotFound); err != nil {
		return nil, err
	}

	return &row, nil
}

func (r *UserStepRepository) Save(_ context.Context, row *models.JourneyUserStep) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	row.UpdatedAt = time.Now().UTC()

	return r.p.write(userStepsKind, row.ID, row)
}

func (r *UserStepRepository) ByEntrance(_ context.Context, entranceID string) ([]*models.JourneyUserStep, error) {
	var rows []*models.JourneyUserStep

	err := r.p.readEach(userStepsKind,
		func() any { return &models.JourneyUserStep{} },
		func(item any) {
			row := item.(*models.JourneyUserStep)
			if row.ID == entranceID || row.EntranceID == entranceID {
				rows = append(rows, row)
			}
		})
	if err != nil {
		return nil, err
	}

	sortRows(rows)

	return rows, nil
}

func (r *UserStepRepository) ActiveEntrance(_ context.Context, journeyID, userID string) (*models.JourneyUserStep, error) {
	var entrance *models.JourneyUserStep

	err := r.p.readEach(userStepsKind,
		func() any { return &models.JourneyUserStep{} },
		func(item any) {
			row := item.(*models.JourneyUserStep)
			if row.JourneyID == journeyID && row.UserID == userID && row.IsEntrance() && !row.Ended() {
				if entrance == nil || row.CreatedAt.Before(entrance.CreatedAt) {
					entrance = row
				}
			}
		})
	if err != nil {
		return nil, err
	}

	return entrance, nil
}

func (r *UserStepRepository) ByJourney(_ context.Context, journeyID string) ([]*models.JourneyUserStep, error) {
	var rows []*models.JourneyUserStep

	err := r.p.readEach(userStepsKind,
		func() any { return &models.JourneyUserStep{} },
		func(item any) {
			row := item.(*models.JourneyUserStep)
			if row.JourneyID == journeyID {
				rows = append(rows, row)
			}
		})
	if err != nil {
		return nil, err
	}

	sortRows(rows)

	return rows, nil
}

// sortRows orders history rows by creation, with the entrance row first when
// timestamps collide.
func sortRows(rows []*models.JourneyUserStep) {
	sort.SliceStable(rows, func(i, k int) bool {
		if rows[i].CreatedAt.Equal(rows[k].CreatedAt) {
			return rows[i].IsEntrance() && !rows[k].IsEntrance()
		}

		return rows[i].CreatedAt.Before(rows[k].CreatedAt)
	})
}
