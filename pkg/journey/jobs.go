package journey

import (
	"context"
	"fmt"

	"github.com/embarkhq/embark/pkg/campaign"
	"github.com/embarkhq/embark/pkg/events"
	"github.com/embarkhq/embark/pkg/lists"
	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/queue"
	"github.com/embarkhq/embark/pkg/steps"
)

// RegisterHandlers binds the engine's job names to their handlers. Must run
// before the queue starts consuming.
func (s *Service) RegisterHandlers(q queue.Queue) {
	q.Handle(steps.JobResume, s.handleResume)
	q.Handle(steps.JobStartJourney, s.handleStartJourney)
	q.Handle(steps.JobBatchEnroll, s.handleBatchEnroll)
	q.Handle(campaign.JobSend, s.handleCampaignSend)
	q.Handle(lists.JobPopulate, s.handlePopulateList)
}

// handlePopulateList runs a full membership sweep and admits newly joined
// users into list-triggered journeys.
func (s *Service) handlePopulateList(ctx context.Context, job *queue.Job) error {
	listID := job.String("list_id")
	if listID == "" {
		s.logger.WarnContext(ctx, "Populate job without list id", "job_id", job.ID)

		return nil
	}

	list, err := s.persistence.Lists().GetByID(ctx, listID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("failed to load list: %w", err)
	}

	joined, err := s.matcher.Populate(ctx, list)
	if err != nil {
		return err
	}

	for _, userID := range joined {
		user, err := s.persistence.Users().GetByID(ctx, userID)
		if err != nil {
			if persistence.IsNotFound(err) {
				continue
			}

			return fmt.Errorf("failed to load user: %w", err)
		}

		if err := s.onListJoined(ctx, list, user); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) handleResume(ctx context.Context, job *queue.Job) error {
	entranceID := job.String("entrance_id")
	if entranceID == "" {
		s.logger.WarnContext(ctx, "Resume job without entrance id", "job_id", job.ID)

		return nil
	}

	return s.state.Resume(ctx, entranceID)
}

func (s *Service) handleStartJourney(ctx context.Context, job *queue.Job) error {
	journeyID := job.String("journey_id")
	userID := job.String("user_id")

	if journeyID == "" || userID == "" {
		s.logger.WarnContext(ctx, "Start journey job missing ids", "job_id", job.ID)

		return nil
	}

	snapshot, _ := job.Payload["event"].(map[string]any)

	return s.StartJourney(ctx, journeyID, userID, snapshot)
}

func (s *Service) handleBatchEnroll(ctx context.Context, job *queue.Job) error {
	journeyID := job.String("journey_id")
	stepID := job.String("step_id")

	if journeyID == "" || stepID == "" {
		s.logger.WarnContext(ctx, "Batch enroll job missing ids", "job_id", job.ID)

		return nil
	}

	_, err := s.BatchEnroll(ctx, journeyID, stepID)

	return err
}

// handleCampaignSend is the loopback channel worker: it marks the pending
// delivery as sent and wakes the entrance waiting on it. Real channel
// transports register their own handler for the same job name instead.
func (s *Service) handleCampaignSend(ctx context.Context, job *queue.Job) error {
	campaignID := job.String("campaign_id")
	userID := job.String("user_id")
	reference := job.String("reference")

	if campaignID == "" || userID == "" || reference == "" {
		s.logger.WarnContext(ctx, "Campaign send job missing fields", "job_id", job.ID)

		return nil
	}

	s.publish(ctx, events.CampaignSendRequested{
		BaseEvent:  s.baseEvent(events.CampaignSendRequestedEvent, ""),
		CampaignID: campaignID,
		UserID:     userID,
		Reference:  reference,
	})

	delivery, err := s.persistence.Deliveries().Find(ctx, campaignID, userID, reference)
	if err != nil {
		if persistence.IsNotFound(err) {
			s.logger.WarnContext(ctx, "Send job for unknown delivery", "reference", reference)

			return nil
		}

		return fmt.Errorf("failed to load delivery: %w", err)
	}

	if !delivery.State.Terminal() {
		delivery.State = models.DeliveryStateSent
		delivery.UpdatedAt = s.now()

		if err := s.persistence.Deliveries().Save(ctx, delivery); err != nil {
			return fmt.Errorf("failed to save delivery: %w", err)
		}
	}

	// The reference is the history row that requested the send; wake its
	// entrance so the action step can observe the terminal delivery.
	row, err := s.persistence.UserSteps().GetByID(ctx, reference)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("failed to load step record: %w", err)
	}

	entranceID := row.EntranceID
	if entranceID == "" {
		entranceID = row.ID
	}

	return s.queue.Enqueue(ctx, queue.NewJob(steps.JobResume, map[string]any{
		"entrance_id": entranceID,
	}))
}
