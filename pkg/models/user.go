// Package models defines the core domain models for journey execution and audience segmentation.
package models

import "time"

// User is a profile tracked by a project. Attributes is a free-form bag of
// key/value pairs mutated by ingestion and by update steps.
type User struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id" validate:"required"`
	Email      string         `json:"email,omitempty"`
	Timezone   string         `json:"timezone,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Location resolves the user's timezone, falling back to the given default.
func (u *User) Location(fallback *time.Location) *time.Location {
	if u == nil || u.Timezone == "" {
		return fallback
	}

	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return fallback
	}

	return loc
}

// MergeAttributes merges the given key/value pairs into the user's attribute
// bag, overwriting existing keys.
func (u *User) MergeAttributes(attrs map[string]any) {
	if len(attrs) == 0 {
		return
	}

	if u.Attributes == nil {
		u.Attributes = make(map[string]any, len(attrs))
	}

	for k, v := range attrs {
		u.Attributes[k] = v
	}
}
