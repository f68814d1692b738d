package models

import (
	"time"

	"github.com/embarkhq/embark/pkg/rules"
)

// ListType distinguishes lists with manually managed membership from lists
// whose membership is derived by evaluating a rule against every user.
type ListType string

const (
	ListTypeStatic  ListType = "static"
	ListTypeDynamic ListType = "dynamic"
)

// List is a named audience within a project.
type List struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id" validate:"required"`
	Name      string      `json:"name"       validate:"required,min=1"`
	Type      ListType    `json:"type"       validate:"required,oneof=static dynamic"`
	Rule      *rules.Node `json:"rule,omitempty"` // Membership rule, dynamic lists only
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsDynamic reports whether membership is rule-derived.
func (l *List) IsDynamic() bool {
	return l.Type == ListTypeDynamic && l.Rule != nil
}

// ListMember is one user's membership in one list. Version tags the
// population sweep that produced the row so stale rows can be deleted in
// batch after a full re-population.
type ListMember struct {
	ListID    string    `json:"list_id"`
	UserID    string    `json:"user_id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}
