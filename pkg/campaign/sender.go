// Package campaign provides the outbound send contract action steps depend
// on. Channel transport is an external collaborator; the engine only
// requests sends and observes delivery state.
package campaign

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/queue"
)

// JobSend is the queue job name the channel workers consume.
const JobSend = "campaign.send"

// SendRequest identifies one send: the campaign, the recipient, and a
// reference tying the delivery back to the requesting history row.
type SendRequest struct {
	CampaignID string
	UserID     string
	Reference  string
	Event      map[string]any // Triggering event snapshot for template rendering
}

// Sender requests a campaign send. Fire-and-forget: completion is observed
// later through the delivery record keyed by (campaign, user, reference).
type Sender interface {
	SendCampaign(ctx context.Context, req SendRequest) error
}

// QueueSender implements Sender by recording a pending delivery and
// enqueueing a send job for the channel workers.
type QueueSender struct {
	queue      queue.Queue
	deliveries persistence.DeliveryRepository
	logger     *slog.Logger
}

func NewQueueSender(q queue.Queue, deliveries persistence.DeliveryRepository, logger *slog.Logger) *QueueSender {
	return &QueueSender{
		queue:      q,
		deliveries: deliveries,
		logger:     logger.With("module", "campaign_sender"),
	}
}

func (s *QueueSender) SendCampaign(ctx context.Context, req SendRequest) error {
	delivery := &models.Delivery{
		CampaignID: req.CampaignID,
		UserID:     req.UserID,
		Reference:  req.Reference,
		State:      models.DeliveryStatePending,
	}

	if err := s.deliveries.Save(ctx, delivery); err != nil {
		return fmt.Errorf("failed to record pending delivery: %w", err)
	}

	job := queue.NewJob(JobSend, map[string]any{
		"campaign_id": req.CampaignID,
		"user_id":     req.UserID,
		"reference":   req.Reference,
		"event":       req.Event,
	})

	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue campaign send: %w", err)
	}

	s.logger.InfoContext(ctx, "Requested campaign send",
		"campaign_id", req.CampaignID,
		"user_id", req.UserID,
		"reference", req.Reference,
	)

	return nil
}
