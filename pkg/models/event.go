package models

import "time"

// Event is a single tracked occurrence for a user (a page view, a purchase).
// Properties is the flattened event payload rules evaluate against.
type Event struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id" validate:"required"`
	UserID     string         `json:"user_id"    validate:"required"`
	Name       string         `json:"name"       validate:"required,min=1"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Snapshot returns the event as a plain map suitable for capturing into a
// history row or rendering in templates.
func (e *Event) Snapshot() map[string]any {
	if e == nil {
		return nil
	}

	return map[string]any{
		"id":         e.ID,
		"name":       e.Name,
		"properties": e.Properties,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
