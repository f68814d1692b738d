package file

import (
	"context"
	"time"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
)

const deliveriesKind = "deliveries"

// DeliveryRepository stores delivery outcomes keyed by
// "{campaign_id}__{user_id}__{reference}".
type DeliveryRepository struct {
	p *Persistence
}

func deliveryID(campaignID, userID, reference string) string {
	return campaignID + "__" + userID + "__" + reference
}

func (r *DeliveryRepository) Save(_ context.Context, delivery *models.Delivery) error {
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	delivery.UpdatedAt = time.Now().UTC()

	if delivery.ID == "" {
		delivery.ID = deliveryID(delivery.CampaignID, delivery.UserID, delivery.Reference)
	}

	return r.p.write(deliveriesKind, deliveryID(delivery.CampaignID, delivery.UserID, delivery.Reference), delivery)
}

func (r *DeliveryRepository) Find(_ context.Context, campaignID, userID, reference string) (*models.Delivery, error) {
	var delivery models.Delivery

	err := r.p.read(deliveriesKind, deliveryID(campaignID, userID, reference), &delivery, persistence.ErrDeliveryNotFound)
	if err != nil {
		return nil, err
	}

	return &delivery, nil
}
