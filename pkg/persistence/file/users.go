package file

import (
	"context"
	"sort"
	"time"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
)

const usersKind = "users"

// UserRepository stores user profiles as JSON documents.
type UserRepository struct {
	p *Persistence
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.p.read(usersKind, id, &user, persistence.ErrUserNotFound); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *UserRepository) Save(_ context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	user.UpdatedAt = time.Now().UTC()

	return r.p.write(usersKind, user.ID, user)
}

func (r *UserRepository) ByProject(_ context.Context, projectID string) ([]*models.User, error) {
	var users []*models.User

	err := r.p.readEach(usersKind,
		func() any { return &models.User{} },
		func(item any) {
			user := item.(*models.User)
			if user.ProjectID == projectID {
				users = append(users, user)
			}
		})
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, k int) bool {
		return users[i].CreatedAt.Before(users[k].CreatedAt)
	})

	return users, nil
}
