// Package events defines the lifecycle notifications published on the event
// bus as journeys admit, progress and end entrances.
package events

import "time"

type EventType string

// Bus topic.
const Topic = "embark.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	UserTrackedEvent           EventType = "user.tracked"
	UserUpdatedEvent           EventType = "user.updated"
	ListMembershipAddedEvent   EventType = "list.membership.added"
	EntranceStartedEvent       EventType = "journey.entrance.started"
	EntranceEndedEvent         EventType = "journey.entrance.ended"
	StepCompletedEvent         EventType = "journey.step.completed"
	StepFailedEvent            EventType = "journey.step.failed"
	CampaignSendRequestedEvent EventType = "campaign.send.requested"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ProjectID string         `json:"project_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type UserTracked struct {
	BaseEvent

	UserID     string         `json:"user_id"`
	EventName  string         `json:"event_name"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (e UserTracked) GetType() EventType { return UserTrackedEvent }

type UserUpdated struct {
	BaseEvent

	UserID string `json:"user_id"`
}

func (e UserUpdated) GetType() EventType { return UserUpdatedEvent }

type ListMembershipAdded struct {
	BaseEvent

	ListID string `json:"list_id"`
	UserID string `json:"user_id"`
}

func (e ListMembershipAdded) GetType() EventType { return ListMembershipAddedEvent }

type EntranceStarted struct {
	BaseEvent

	JourneyID  string `json:"journey_id"`
	EntranceID string `json:"entrance_id"`
	UserID     string `json:"user_id"`
}

func (e EntranceStarted) GetType() EventType { return EntranceStartedEvent }

type EntranceEnded struct {
	BaseEvent

	JourneyID  string `json:"journey_id"`
	EntranceID string `json:"entrance_id"`
	UserID     string `json:"user_id"`
	LastStepID string `json:"last_step_id,omitempty"`
	Failed     bool   `json:"failed"`
}

func (e EntranceEnded) GetType() EventType { return EntranceEndedEvent }

type StepCompleted struct {
	BaseEvent

	JourneyID  string `json:"journey_id"`
	EntranceID string `json:"entrance_id"`
	StepID     string `json:"step_id"`
	UserID     string `json:"user_id"`
}

func (e StepCompleted) GetType() EventType { return StepCompletedEvent }

type StepFailed struct {
	BaseEvent

	JourneyID  string `json:"journey_id"`
	EntranceID string `json:"entrance_id"`
	StepID     string `json:"step_id"`
	UserID     string `json:"user_id"`
	Error      string `json:"error,omitempty"`
}

func (e StepFailed) GetType() EventType { return StepFailedEvent }

type CampaignSendRequested struct {
	BaseEvent

	CampaignID string `json:"campaign_id"`
	UserID     string `json:"user_id"`
	Reference  string `json:"reference"`
}

func (e CampaignSendRequested) GetType() EventType { return CampaignSendRequestedEvent }
