// Package journey implements the execution engine: the per-entrance state
// machine, the admission service, and the queue handlers that drive both.
package journey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/embarkhq/embark/pkg/campaign"
	"github.com/embarkhq/embark/pkg/eventbus"
	"github.com/embarkhq/embark/pkg/events"
	"github.com/embarkhq/embark/pkg/lock"
	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/queue"
	"github.com/embarkhq/embark/pkg/rules"
	"github.com/embarkhq/embark/pkg/steps"
)

const entranceLockPrefix = "journey:entrance:"

// State drives one entrance at a time through its journey's step graph. Any
// step error is terminal for the entrance: the row is marked error, the
// entrance ends, and no further steps run.
type State struct {
	persistence persistence.Persistence
	lock        lock.Lock
	queue       queue.Queue
	eventBus    eventbus.EventBus
	rules       *rules.Registry
	sender      campaign.Sender
	logger      *slog.Logger
	now         func() time.Time
}

// StateOption customizes state construction.
type StateOption func(*State)

// WithClock overrides the engine clock, used by tests.
func WithClock(now func() time.Time) StateOption {
	return func(s *State) {
		s.now = now
	}
}

func NewState(
	persist persistence.Persistence,
	locker lock.Lock,
	q queue.Queue,
	bus eventbus.EventBus,
	registry *rules.Registry,
	sender campaign.Sender,
	logger *slog.Logger,
	opts ...StateOption,
) *State {
	s := &State{
		persistence: persist,
		lock:        locker,
		queue:       q,
		eventBus:    bus,
		rules:       registry,
		sender:      sender,
		logger:      logger.With("module", "journey_state"),
		now:         func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Resume advances one entrance as far as it can go right now. A missing
// entrance is benign, as is one that already ended or whose lock is held by
// a concurrent resume; in all three cases Resume returns nil without
// touching any state.
func (s *State) Resume(ctx context.Context, entranceID string) error {
	entrance, err := s.persistence.UserSteps().GetByID(ctx, entranceID)
	if err != nil {
		if persistence.IsNotFound(err) {
			s.logger.WarnContext(ctx, "Resume for unknown entrance", "entrance_id", entranceID)

			return nil
		}

		return fmt.Errorf("failed to load entrance: %w", err)
	}

	if !entrance.IsEntrance() {
		return fmt.Errorf("step record %s is not an entrance", entranceID)
	}

	if entrance.Ended() {
		return nil
	}

	key := entranceLockPrefix + entranceID

	acquired, err := s.lock.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to acquire entrance lock: %w", err)
	}

	if !acquired {
		s.logger.DebugContext(ctx, "Entrance already being processed", "entrance_id", entranceID)

		return nil
	}

	run, runErr := s.execute(ctx, entrance)

	if err := s.lock.Release(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WarnContext(ctx, "Failed to release entrance lock", "entrance_id", entranceID, "error", err)
	}

	if run != nil {
		if err := run.flush(ctx, s.queue); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("failed to flush run jobs: %w", err))
		}
	}

	return runErr
}

// execute loads the run's world and walks the step graph. It is called with
// the entrance lock held.
func (s *State) execute(ctx context.Context, entrance *models.JourneyUserStep) (*runContext, error) {
	j, err := s.persistence.Journeys().GetByID(ctx, entrance.JourneyID)
	if err != nil {
		if persistence.IsNotFound(err) {
			// The journey was deleted underneath the run. Nothing left to
			// execute, end the entrance.
			return nil, s.end(ctx, nil, nil, entrance, "", true)
		}

		return nil, fmt.Errorf("failed to load journey: %w", err)
	}

	user, err := s.persistence.Users().GetByID(ctx, entrance.UserID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, s.end(ctx, nil, j, entrance, "", true)
		}

		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	history, err := s.persistence.UserSteps().ByEntrance(ctx, entrance.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entrance history: %w", err)
	}

	// The history includes the entrance row itself. Alias it so the loop and
	// end() mutate a single copy instead of overwriting each other's saves.
	for _, row := range history {
		if row.ID == entrance.ID {
			entrance = row

			break
		}
	}

	run := &runContext{
		state:    s,
		journey:  j,
		user:     user,
		entrance: entrance,
		history:  history,
		location: user.Location(j.Location()),
	}

	for _, row := range history {
		run.snapshot(row)
	}

	return run, s.loop(ctx, run)
}

// loop is the run loop: condition, complete, advance, until a step suspends
// the run, a branch ends, or a step fails.
func (s *State) loop(ctx context.Context, run *runContext) error {
	current := run.history[len(run.history)-1]

	for {
		step := run.journey.Step(current.StepID)
		if step == nil {
			return s.fail(ctx, run, current, fmt.Errorf("step %s no longer exists", current.StepID))
		}

		behavior, err := steps.New(run, step, current)
		if err != nil {
			return s.fail(ctx, run, current, err)
		}

		if !current.Completed() {
			ready, err := behavior.Condition(ctx)
			if err != nil {
				return s.fail(ctx, run, current, err)
			}

			if !ready {
				return s.save(ctx, run, current)
			}

			proceed, err := behavior.Complete(ctx)
			if err != nil {
				return s.fail(ctx, run, current, err)
			}

			if err := s.save(ctx, run, current); err != nil {
				return err
			}

			if current.Completed() {
				s.publish(ctx, events.StepCompleted{
					BaseEvent:  s.baseEvent(events.StepCompletedEvent, run.journey.ProjectID),
					JourneyID:  run.journey.ID,
					EntranceID: run.entrance.ID,
					StepID:     current.StepID,
					UserID:     run.user.ID,
				})
			}

			if !proceed {
				return nil
			}
		}

		nextID, err := behavior.Next(ctx)
		if err != nil {
			return s.fail(ctx, run, current, err)
		}

		if nextID == "" {
			return s.end(ctx, run, run.journey, run.entrance, current.StepID, false)
		}

		if run.visited(nextID) {
			s.logger.WarnContext(ctx, "Cycle detected, ending entrance",
				"entrance_id", run.entrance.ID,
				"step_id", nextID,
			)

			return s.end(ctx, run, run.journey, run.entrance, current.StepID, false)
		}

		next := &models.JourneyUserStep{
			ID:         uuid.New().String(),
			UserID:     run.user.ID,
			JourneyID:  run.journey.ID,
			StepID:     nextID,
			EntranceID: run.entrance.ID,
			Type:       models.UserStepTypePending,
			CreatedAt:  s.now(),
			UpdatedAt:  s.now(),
		}

		if err := s.persistence.UserSteps().Save(ctx, next); err != nil {
			return fmt.Errorf("failed to create step record: %w", err)
		}

		run.snapshot(next)
		run.history = append(run.history, next)
		current = next
	}
}

// fail marks the row as errored and ends the entrance. The cause is recorded
// on the row and announced, not returned: once the entrance is terminally
// ended there is nothing left for the queue to retry.
func (s *State) fail(ctx context.Context, run *runContext, row *models.JourneyUserStep, cause error) error {
	s.logger.ErrorContext(ctx, "Step failed",
		"entrance_id", run.entrance.ID,
		"step_id", row.StepID,
		"error", cause,
	)

	row.Type = models.UserStepTypeError
	row.SetData("error", cause.Error())

	if err := s.save(ctx, run, row); err != nil {
		return errors.Join(cause, err)
	}

	s.publish(ctx, events.StepFailed{
		BaseEvent:  s.baseEvent(events.StepFailedEvent, run.journey.ProjectID),
		JourneyID:  run.journey.ID,
		EntranceID: run.entrance.ID,
		StepID:     row.StepID,
		UserID:     run.user.ID,
		Error:      cause.Error(),
	})

	return s.end(ctx, run, run.journey, run.entrance, row.StepID, true)
}

// end sets the entrance's terminal timestamp and announces it. The run is nil
// when the entrance ends before its world could be loaded.
func (s *State) end(ctx context.Context, run *runContext, j *models.Journey, entrance *models.JourneyUserStep, lastStepID string, failed bool) error {
	now := s.now()
	entrance.EndedAt = &now

	if err := s.save(ctx, run, entrance); err != nil {
		return fmt.Errorf("failed to end entrance: %w", err)
	}

	projectID := ""
	if j != nil {
		projectID = j.ProjectID
	}

	s.publish(ctx, events.EntranceEnded{
		BaseEvent:  s.baseEvent(events.EntranceEndedEvent, projectID),
		JourneyID:  entrance.JourneyID,
		EntranceID: entrance.ID,
		UserID:     entrance.UserID,
		LastStepID: lastStepID,
		Failed:     failed,
	})

	return nil
}

// save persists the row only when it differs from its loaded snapshot, so an
// overlapping trigger on a parked entrance does not rewrite an unchanged row.
func (s *State) save(ctx context.Context, run *runContext, row *models.JourneyUserStep) error {
	if run != nil && !run.changed(row) {
		return nil
	}

	row.UpdatedAt = s.now()

	if err := s.persistence.UserSteps().Save(ctx, row); err != nil {
		return fmt.Errorf("failed to save step record: %w", err)
	}

	if run != nil {
		run.snapshot(row)
	}

	return nil
}

// publish is best-effort: a bus outage must not fail a run whose state is
// already persisted.
func (s *State) publish(ctx context.Context, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, string(event.GetType()), event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(),
			"error", err,
		)
	}
}

func (s *State) baseEvent(eventType events.EventType, projectID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        s.eventBusID(),
		Type:      eventType,
		Timestamp: s.now(),
		ProjectID: projectID,
	}
}

func (s *State) eventBusID() string {
	if s.eventBus != nil {
		return s.eventBus.GenerateID()
	}

	return uuid.New().String()
}
