package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/embarkhq/embark/pkg/campaign"
	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
)

// ActionStep triggers a campaign send exactly once per entrance. The first
// visit records the request and suspends; later visits only proceed once the
// delivery record is terminal.
type ActionStep struct {
	base
}

func (s *ActionStep) Condition(ctx context.Context) (bool, error) {
	if s.row.Type != models.UserStepTypeAction {
		return true, nil
	}

	delivery, err := s.delivery(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrDeliveryNotFound) {
			return false, nil
		}

		return false, err
	}

	return delivery.State.Terminal(), nil
}

func (s *ActionStep) Complete(ctx context.Context) (bool, error) {
	campaignID := s.dataString("campaign_id")
	if campaignID == "" {
		return false, fmt.Errorf("action step %s has no campaign_id", s.step.ID)
	}

	if s.row.Type == models.UserStepTypeAction {
		delivery, err := s.delivery(ctx)
		if err != nil {
			return false, err
		}

		s.capture("delivery_state", string(delivery.State))
		s.row.Type = models.UserStepTypeCompleted

		return true, nil
	}

	req := campaign.SendRequest{
		CampaignID: campaignID,
		UserID:     s.run.User().ID,
		Reference:  s.reference(),
		Event:      s.run.TriggerEvent(),
	}

	if err := s.run.Sender().SendCampaign(ctx, req); err != nil {
		return false, fmt.Errorf("campaign send request failed: %w", err)
	}

	s.row.Type = models.UserStepTypeAction

	return false, nil
}

func (s *ActionStep) delivery(ctx context.Context) (*models.Delivery, error) {
	return s.run.Deliveries().Find(ctx, s.dataString("campaign_id"), s.run.User().ID, s.reference())
}

// reference ties the delivery back to this history row, which is unique per
// (entrance, step) since steps are never revisited within a run.
func (s *ActionStep) reference() string {
	return s.row.ID
}
