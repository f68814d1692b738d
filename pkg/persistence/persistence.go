// Package persistence provides the data storage abstraction for users,
// events, lists, journeys and per-entrance history.
package persistence

import (
	"context"

	"github.com/embarkhq/embark/pkg/models"
)

// Persistence aggregates the repositories a deployment provides.
type Persistence interface {
	Users() UserRepository
	Events() EventRepository
	Lists() ListRepository
	Journeys() JourneyRepository
	UserSteps() UserStepRepository
	Deliveries() DeliveryRepository
	RuleResults() RuleResultRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// UserRepository provides point lookups and writes for user profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	ByProject(ctx context.Context, projectID string) ([]*models.User, error)
}

// EventRepository stores tracked events. ByUser filters to the given event
// names when names is non-empty and returns rows ordered by creation.
type EventRepository interface {
	Save(ctx context.Context, event *models.Event) error
	ByUser(ctx context.Context, userID string, names []string) ([]*models.Event, error)
}

// ListRepository stores lists and their membership rows.
type ListRepository interface {
	GetByID(ctx context.Context, id string) (*models.List, error)
	Save(ctx context.Context, list *models.List) error

	// ByProject returns the project's lists; an empty projectID spans all
	// projects (scheduler sweeps).
	ByProject(ctx context.Context, projectID string) ([]*models.List, error)

	// AddMember inserts a membership row; the boolean reports whether the
	// row was newly created.
	AddMember(ctx context.Context, member *models.ListMember) (bool, error)
	IsMember(ctx context.Context, listID, userID string) (bool, error)
	Members(ctx context.Context, listID string) ([]*models.ListMember, error)

	// DeleteStaleMembers removes membership rows older than the given
	// population version, completing a full re-population sweep.
	DeleteStaleMembers(ctx context.Context, listID string, version int64) error
}

// JourneyRepository stores journey definitions and their step maps.
type JourneyRepository interface {
	GetByID(ctx context.Context, id string) (*models.Journey, error)
	Save(ctx context.Context, journey *models.Journey) error
	Delete(ctx context.Context, id string) error

	// Published returns the project's published journeys; an empty projectID
	// spans all projects (scheduler sweeps).
	Published(ctx context.Context, projectID string) ([]*models.Journey, error)
}

// UserStepRepository stores per-entrance execution history.
type UserStepRepository interface {
	GetByID(ctx context.Context, id string) (*models.JourneyUserStep, error)
	Save(ctx context.Context, row *models.JourneyUserStep) error

	// ByEntrance returns the entrance row and every subsequent history row of
	// one run, ordered by creation.
	ByEntrance(ctx context.Context, entranceID string) ([]*models.JourneyUserStep, error)

	// ActiveEntrance returns the user's unended entrance for a journey, or
	// nil when there is none.
	ActiveEntrance(ctx context.Context, journeyID, userID string) (*models.JourneyUserStep, error)

	// ByJourney returns every history row of a journey, used for statistics.
	ByJourney(ctx context.Context, journeyID string) ([]*models.JourneyUserStep, error)
}

// DeliveryRepository stores campaign delivery outcomes keyed by
// (campaign, user, reference).
type DeliveryRepository interface {
	Save(ctx context.Context, delivery *models.Delivery) error
	Find(ctx context.Context, campaignID, userID, reference string) (*models.Delivery, error)
}

// RuleResultRepository persists per-(rule node, user) booleans for the
// incremental matcher. It satisfies rules.ResultStore.
type RuleResultRepository interface {
	Result(ctx context.Context, ruleUUID, userID string) (value, found bool, err error)
	SaveResult(ctx context.Context, ruleUUID, userID string, value bool) error
}
