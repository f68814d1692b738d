package journey

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/embarkhq/embark/pkg/eventbus"
	"github.com/embarkhq/embark/pkg/events"
	"github.com/embarkhq/embark/pkg/lists"
	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/queue"
	"github.com/embarkhq/embark/pkg/steps"
)

// Entrance step payload keys.
const (
	entranceEventKey = "event_name" // Reactive: admit on a matching event
	entranceListKey  = "list_id"    // List-triggered and scheduled batch admission
)

// Service translates external triggers, tracked events, attribute updates
// and scheduled sweeps, into entrance creation and resume calls.
type Service struct {
	persistence persistence.Persistence
	state       *State
	queue       queue.Queue
	eventBus    eventbus.EventBus
	matcher     *lists.Matcher
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(
	persist persistence.Persistence,
	state *State,
	q queue.Queue,
	bus eventbus.EventBus,
	matcher *lists.Matcher,
	logger *slog.Logger,
) *Service {
	return &Service{
		persistence: persist,
		state:       state,
		queue:       q,
		eventBus:    bus,
		matcher:     matcher,
		logger:      logger.With("module", "journey_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// TrackEvent records an event and fans it out: list re-qualification first,
// then list-triggered entrances for any newly joined list, then reactive
// entrances matching the event name.
func (s *Service) TrackEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}

	user, err := s.ensureUser(ctx, event.ProjectID, event.UserID)
	if err != nil {
		return err
	}

	if err := s.persistence.Events().Save(ctx, event); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	s.publish(ctx, events.UserTracked{
		BaseEvent:  s.baseEvent(events.UserTrackedEvent, event.ProjectID),
		UserID:     event.UserID,
		EventName:  event.Name,
		Properties: event.Properties,
	})

	joined, err := s.matcher.OnEvent(ctx, user, event)
	if err != nil {
		return err
	}

	for _, list := range joined {
		if err := s.onListJoined(ctx, list, user); err != nil {
			return err
		}
	}

	return s.reactiveEntrances(ctx, user, event)
}

// UpdateUser merges attributes into a user profile, creating it on first
// sight, and re-qualifies the project's dynamic lists against the new
// attribute state.
func (s *Service) UpdateUser(ctx context.Context, update *models.User) (*models.User, error) {
	user, err := s.ensureUser(ctx, update.ProjectID, update.ID)
	if err != nil {
		return nil, err
	}

	if update.Email != "" {
		user.Email = update.Email
	}

	if update.Timezone != "" {
		user.Timezone = update.Timezone
	}

	user.MergeAttributes(update.Attributes)
	user.UpdatedAt = s.now()

	if err := s.persistence.Users().Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	s.publish(ctx, events.UserUpdated{
		BaseEvent: s.baseEvent(events.UserUpdatedEvent, user.ProjectID),
		UserID:    user.ID,
	})

	joined, err := s.matcher.Requalify(ctx, user)
	if err != nil {
		return nil, err
	}

	for _, list := range joined {
		if err := s.onListJoined(ctx, list, user); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// StartJourney admits a user into a journey through its first entrance step.
// Used by link steps and by direct enrollment.
func (s *Service) StartJourney(ctx context.Context, journeyID, userID string, eventSnapshot map[string]any) error {
	j, err := s.persistence.Journeys().GetByID(ctx, journeyID)
	if err != nil {
		if persistence.IsNotFound(err) {
			s.logger.WarnContext(ctx, "Start for unknown journey", "journey_id", journeyID)

			return nil
		}

		return fmt.Errorf("failed to load journey: %w", err)
	}

	if !j.IsPublished() {
		return nil
	}

	entrances := j.Entrances()
	if len(entrances) == 0 {
		return nil
	}

	user, err := s.persistence.Users().GetByID(ctx, userID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("failed to load user: %w", err)
	}

	_, err = s.startEntrance(ctx, j, entrances[0], user, eventSnapshot)

	return err
}

// BatchEnroll bulk-enrolls every current member of the entrance's list,
// creating one entrance and one resume job per member so processing is
// parallelized by the queue rather than done inline.
func (s *Service) BatchEnroll(ctx context.Context, journeyID, stepID string) (int, error) {
	j, err := s.persistence.Journeys().GetByID(ctx, journeyID)
	if err != nil {
		return 0, fmt.Errorf("failed to load journey: %w", err)
	}

	if !j.IsPublished() {
		return 0, nil
	}

	step := j.Step(stepID)
	if step == nil || step.Type != models.StepTypeEntrance {
		return 0, fmt.Errorf("step %s is not an entrance of journey %s", stepID, journeyID)
	}

	listID, _ := step.Data[entranceListKey].(string)
	if listID == "" {
		return 0, fmt.Errorf("entrance %s has no list to enroll from", stepID)
	}

	members, err := s.persistence.Lists().Members(ctx, listID)
	if err != nil {
		return 0, fmt.Errorf("failed to load list members: %w", err)
	}

	enrolled := 0

	for _, member := range members {
		user, err := s.persistence.Users().GetByID(ctx, member.UserID)
		if err != nil {
			if persistence.IsNotFound(err) {
				continue
			}

			return enrolled, fmt.Errorf("failed to load user: %w", err)
		}

		entrance, err := s.startEntrance(ctx, j, step, user, nil)
		if err != nil {
			return enrolled, err
		}

		if entrance != nil {
			enrolled++
		}
	}

	s.logger.InfoContext(ctx, "Batch enrolled list members",
		"journey_id", journeyID,
		"list_id", listID,
		"enrolled", enrolled,
	)

	return enrolled, nil
}

// reactiveEntrances admits the user into every published journey whose
// entrance is triggered by this event's name.
func (s *Service) reactiveEntrances(ctx context.Context, user *models.User, event *models.Event) error {
	journeys, err := s.persistence.Journeys().Published(ctx, user.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load published journeys: %w", err)
	}

	for _, j := range journeys {
		for _, entrance := range j.Entrances() {
			name, _ := entrance.Data[entranceEventKey].(string)
			if name == "" || name != event.Name {
				continue
			}

			if _, err := s.startEntrance(ctx, j, entrance, user, event.Snapshot()); err != nil {
				return err
			}
		}
	}

	return nil
}

// onListJoined announces the membership and admits the user into every
// published journey whose entrance references the list.
func (s *Service) onListJoined(ctx context.Context, list *models.List, user *models.User) error {
	s.publish(ctx, events.ListMembershipAdded{
		BaseEvent: s.baseEvent(events.ListMembershipAddedEvent, list.ProjectID),
		ListID:    list.ID,
		UserID:    user.ID,
	})

	journeys, err := s.persistence.Journeys().Published(ctx, user.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load published journeys: %w", err)
	}

	for _, j := range journeys {
		for _, entrance := range j.Entrances() {
			listID, _ := entrance.Data[entranceListKey].(string)
			if listID != list.ID {
				continue
			}

			if _, err := s.startEntrance(ctx, j, entrance, user, nil); err != nil {
				return err
			}
		}
	}

	return nil
}

// startEntrance creates the entrance row and enqueues its first resume. A
// user with a live entrance in the journey is not admitted again; the nil
// return reports such deduplication.
func (s *Service) startEntrance(
	ctx context.Context,
	j *models.Journey,
	step *models.JourneyStep,
	user *models.User,
	eventSnapshot map[string]any,
) (*models.JourneyUserStep, error) {
	active, err := s.persistence.UserSteps().ActiveEntrance(ctx, j.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active entrance: %w", err)
	}

	if active != nil {
		return nil, nil
	}

	entrance := &models.JourneyUserStep{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		JourneyID: j.ID,
		StepID:    step.ID,
		Type:      models.UserStepTypePending,
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}

	if eventSnapshot != nil {
		entrance.SetData("event", eventSnapshot)
	}

	if err := s.persistence.UserSteps().Save(ctx, entrance); err != nil {
		return nil, fmt.Errorf("failed to create entrance: %w", err)
	}

	s.publish(ctx, events.EntranceStarted{
		BaseEvent:  s.baseEvent(events.EntranceStartedEvent, j.ProjectID),
		JourneyID:  j.ID,
		EntranceID: entrance.ID,
		UserID:     user.ID,
	})

	job := queue.NewJob(steps.JobResume, map[string]any{
		"entrance_id": entrance.ID,
	})

	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue entrance resume: %w", err)
	}

	s.logger.InfoContext(ctx, "Started entrance",
		"journey_id", j.ID,
		"entrance_id", entrance.ID,
		"user_id", user.ID,
	)

	return entrance, nil
}

// ensureUser loads the user, creating an empty profile on first sight so
// events can arrive before any explicit profile write.
func (s *Service) ensureUser(ctx context.Context, projectID, userID string) (*models.User, error) {
	user, err := s.persistence.Users().GetByID(ctx, userID)
	if err == nil {
		return user, nil
	}

	if !persistence.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user = &models.User{
		ID:        userID,
		ProjectID: projectID,
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}

	if err := s.persistence.Users().Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *Service) publish(ctx context.Context, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, string(event.GetType()), event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"error", err,
		)
	}
}

func (s *Service) baseEvent(eventType events.EventType, projectID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        s.eventBusID(),
		Type:      eventType,
		Timestamp: s.now(),
		ProjectID: projectID,
	}
}

func (s *Service) eventBusID() string {
	if s.eventBus != nil {
		return s.eventBus.GenerateID()
	}

	return uuid.New().String()
}
