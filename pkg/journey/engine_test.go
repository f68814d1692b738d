package journey

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/embarkhq/embark/pkg/campaign"
	"github.com/embarkhq/embark/pkg/lists"
	"github.com/embarkhq/embark/pkg/lock"
	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence/file"
	"github.com/embarkhq/embark/pkg/queue"
	"github.com/embarkhq/embark/pkg/rules"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// engine wires a full in-process stack: file persistence, memory queue,
// memory lock, no event bus. The clock is mutable so tests can jump time.
type engine struct {
	persist *file.Persistence
	queue   *queue.MemoryQueue
	lock    *lock.MemoryLock
	state   *State
	service *Service
	now     time.Time
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng := &engine{
		persist: file.NewPersistence(t.TempDir()),
		queue:   queue.NewMemoryQueue(),
		lock:    lock.NewMemoryLock(time.Minute),
		now:     testNow,
	}

	registry := rules.NewRegistry(rules.WithClock(func() time.Time { return eng.now }))
	sender := campaign.NewQueueSender(eng.queue, eng.persist.Deliveries(), logger)
	matcher := lists.NewMatcher(eng.persist, registry, logger)

	eng.state = NewState(eng.persist, eng.lock, eng.queue, nil, registry, sender, logger,
		WithClock(func() time.Time { return eng.now }))
	eng.service = NewService(eng.persist, eng.state, eng.queue, nil, matcher, logger)
	eng.service.now = func() time.Time { return eng.now }
	eng.service.RegisterHandlers(eng.queue)

	return eng
}

func (e *engine) saveUser(t *testing.T, user *models.User) *models.User {
	t.Helper()

	if user.ProjectID == "" {
		user.ProjectID = "p1"
	}

	require.NoError(t, e.persist.Users().Save(context.Background(), user))

	return user
}

func (e *engine) saveJourney(t *testing.T, j *models.Journey) *models.Journey {
	t.Helper()

	if j.ID == "" {
		j.ID = uuid.New().String()
	}

	if j.ProjectID == "" {
		j.ProjectID = "p1"
	}

	if j.Status == "" {
		j.Status = models.JourneyStatusPublished
	}

	require.NoError(t, e.persist.Journeys().Save(context.Background(), j))

	return j
}

// enter creates an entrance row directly, bypassing the admission service.
func (e *engine) enter(t *testing.T, j *models.Journey, userID string, snapshot map[string]any) *models.JourneyUserStep {
	t.Helper()

	entrances := j.Entrances()
	require.NotEmpty(t, entrances)

	entrance := &models.JourneyUserStep{
		ID:        uuid.New().String(),
		UserID:    userID,
		JourneyID: j.ID,
		StepID:    entrances[0].ID,
		Type:      models.UserStepTypePending,
		CreatedAt: e.now,
		UpdatedAt: e.now,
	}

	if snapshot != nil {
		entrance.SetData("event", snapshot)
	}

	require.NoError(t, e.persist.UserSteps().Save(context.Background(), entrance))

	return entrance
}

func (e *engine) reload(t *testing.T, id string) *models.JourneyUserStep {
	t.Helper()

	row, err := e.persist.UserSteps().GetByID(context.Background(), id)
	require.NoError(t, err)

	return row
}

func (e *engine) history(t *testing.T, entranceID string) []*models.JourneyUserStep {
	t.Helper()

	rows, err := e.persist.UserSteps().ByEntrance(context.Background(), entranceID)
	require.NoError(t, err)

	return rows
}

// linearJourney is entrance -> update(mark), the smallest runnable graph.
func linearJourney() *models.Journey {
	return &models.Journey{
		Steps: []*models.JourneyStep{
			{ID: "e1", Type: models.StepTypeEntrance, ExternalID: "start"},
			{ID: "m1", Type: models.StepTypeUpdate, ExternalID: "mark", Data: map[string]any{
				"template": map[string]any{"touched": "yes"},
			}},
		},
		Children: []*models.JourneyStepChild{
			{StepID: "e1", ChildID: "m1", Priority: 0},
		},
	}
}
