package models

import "time"

// UserStepType is the execution state of one visited step within one
// entrance's history.
type UserStepType string

const (
	UserStepTypePending   UserStepType = "pending"   // Visited, condition not yet met
	UserStepTypeDelay     UserStepType = "delay"     // Waiting for delay_until to pass
	UserStepTypeAction    UserStepType = "action"    // Send requested, waiting for delivery
	UserStepTypeCompleted UserStepType = "completed" // Terminal for the step, run may continue
	UserStepTypeError     UserStepType = "error"     // Terminal for the step, forces entrance end
)

// JourneyUserStep is one execution record: one row per step visited per run.
// The first row of a run is the entrance; it has no EntranceID and owns the
// terminal EndedAt timestamp. Every subsequent row references it.
type JourneyUserStep struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	JourneyID  string         `json:"journey_id"`
	StepID     string         `json:"step_id"`
	EntranceID string         `json:"entrance_id,omitempty"`
	Type       UserStepType   `json:"type"`
	DelayUntil *time.Time     `json:"delay_until,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"` // Entrance rows only
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// IsEntrance reports whether this row is the root of a run.
func (s *JourneyUserStep) IsEntrance() bool {
	return s.EntranceID == ""
}

// Ended reports whether the entrance has reached its terminal state.
func (s *JourneyUserStep) Ended() bool {
	return s.EndedAt != nil
}

// Completed reports whether the step may be advanced past.
func (s *JourneyUserStep) Completed() bool {
	return s.Type == UserStepTypeCompleted
}

// SetData stores a key into the row's free-form data bag.
func (s *JourneyUserStep) SetData(key string, value any) {
	if s.Data == nil {
		s.Data = make(map[string]any)
	}

	s.Data[key] = value
}
