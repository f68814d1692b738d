package models

import (
	"sort"
	"time"
)

// JourneyStatus represents the lifecycle state of a journey.
type JourneyStatus string

const (
	JourneyStatusDraft       JourneyStatus = "draft"       // Editable, does not admit entrances
	JourneyStatusPublished   JourneyStatus = "published"   // Current active, admits entrances
	JourneyStatusUnpublished JourneyStatus = "unpublished" // Historical, does not admit entrances
)

// Journey is a directed graph of steps a user is individually progressed
// through over time. The step map is read-only for the duration of a run;
// structural edits go through a publish, never a mid-run mutation.
type Journey struct {
	ID          string              `json:"id"`
	ProjectID   string              `json:"project_id" validate:"required"`
	Name        string              `json:"name"       validate:"required,min=3"`
	Status      JourneyStatus       `json:"status"     validate:"required"`
	Timezone    string              `json:"timezone,omitempty"` // Project default for delay localization
	Steps       []*JourneyStep      `json:"steps"`
	Children    []*JourneyStepChild `json:"children"` // Edges between steps
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	PublishedAt *time.Time          `json:"published_at,omitempty"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`
}

// IsPublished reports whether the journey currently admits entrances.
func (j *Journey) IsPublished() bool {
	return j.Status == JourneyStatusPublished && j.DeletedAt == nil
}

// Step returns the step with the given id, or nil when the id references a
// step that no longer exists in the map.
func (j *Journey) Step(id string) *JourneyStep {
	for _, s := range j.Steps {
		if s.ID == id {
			return s
		}
	}

	return nil
}

// ChildrenOf returns the outgoing edges of a step ordered by priority. The
// ordering is stable so branch selection stays deterministic.
func (j *Journey) ChildrenOf(stepID string) []*JourneyStepChild {
	var edges []*JourneyStepChild

	for _, c := range j.Children {
		if c.StepID == stepID {
			edges = append(edges, c)
		}
	}

	sort.SliceStable(edges, func(i, k int) bool {
		return edges[i].Priority < edges[k].Priority
	})

	return edges
}

// Entrances returns every entrance step in the journey.
func (j *Journey) Entrances() []*JourneyStep {
	var entrances []*JourneyStep

	for _, s := range j.Steps {
		if s.Type == StepTypeEntrance {
			entrances = append(entrances, s)
		}
	}

	return entrances
}

// Location resolves the journey's default timezone, falling back to UTC.
func (j *Journey) Location() *time.Location {
	if j.Timezone == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(j.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}
