package models

import "time"

// Campaign is an outbound message referenced by action steps. Channel
// transport is out of scope for the engine; the campaign only needs to be
// addressable.
type Campaign struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id" validate:"required"`
	Name      string    `json:"name"       validate:"required,min=1"`
	Channel   string    `json:"channel"    validate:"required,oneof=email push text webhook"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeliveryState tracks the lifecycle of one campaign send for one user.
type DeliveryState string

const (
	DeliveryStatePending DeliveryState = "pending"
	DeliveryStateSent    DeliveryState = "sent"
	DeliveryStateFailed  DeliveryState = "failed"
	DeliveryStateAborted DeliveryState = "aborted"
)

// Terminal reports whether the delivery has finished, successfully or not.
func (s DeliveryState) Terminal() bool {
	switch s {
	case DeliveryStateSent, DeliveryStateFailed, DeliveryStateAborted:
		return true
	default:
		return false
	}
}

// Delivery is the observable outcome of one send, keyed by
// (campaign, user, reference). The reference ties the delivery back to the
// history row that requested it.
type Delivery struct {
	ID         string        `json:"id"`
	CampaignID string        `json:"campaign_id"`
	UserID     string        `json:"user_id"`
	Reference  string        `json:"reference"`
	State      DeliveryState `json:"state"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
