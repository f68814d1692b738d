// Package steps implements the per-type behaviors of journey steps. The
// step set is closed: dispatch is a compile-checked switch over the type
// discriminator, never a runtime class lookup.
package steps

import (
	"context"
	"time"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/queue"
	"github.com/embarkhq/embark/pkg/rules"

	"github.com/embarkhq/embark/pkg/campaign"
)

// Queue job names the engine dispatches.
const (
	// JobResume resumes one entrance.
	JobResume = "journey.entrance.resume"

	// JobStartJourney admits a user into another journey (link steps).
	JobStartJourney = "journey.start"

	// JobBatchEnroll bulk-enrolls a list's members into a journey.
	JobBatchEnroll = "journey.batch_enroll"
)

// Run is the read-only view of one entrance's execution a step implementation
// operates within. It is implemented by the journey state orchestrator.
type Run interface {
	Journey() *models.Journey
	User() *models.User
	Entrance() *models.JourneyUserStep

	// TriggerEvent is the snapshot of the event that admitted the user, if
	// the entrance was reactive.
	TriggerEvent() map[string]any

	// History returns every loaded history row of this entrance.
	History() []*models.JourneyUserStep

	// RelevantEvents lazily loads the user's events, restricted to the event
	// names actually referenced by this journey's gates.
	RelevantEvents(ctx context.Context) ([]rules.EventInput, error)

	// StepData maps each visited step's external id to its captured data,
	// for templating across steps.
	StepData() map[string]map[string]any

	// Location is the effective timezone: the user's own, else the journey's
	// project default.
	Location() *time.Location

	Rules() *rules.Registry
	Users() persistence.UserRepository
	Lists() persistence.ListRepository
	Deliveries() persistence.DeliveryRepository
	Sender() campaign.Sender

	// Enqueue collects a job to be flushed as a single batch when the run
	// loop finishes.
	Enqueue(job *queue.Job)

	// EnqueueDelayed schedules a job for later delivery; flushed with the
	// batch.
	EnqueueDelayed(job *queue.Job, delay time.Duration)

	Now() time.Time
}

// Step is the common contract every step type implements.
type Step interface {
	// Step returns the underlying graph node.
	Step() *models.JourneyStep

	// HasCompleted reports whether a completed record already exists for
	// this step within the current entrance's history.
	HasCompleted() bool

	// Condition reports whether the step is ready to complete. The default
	// is "not yet completed".
	Condition(ctx context.Context) (bool, error)

	// Complete performs the step's side effect and records the outcome on
	// the history row. The boolean reports whether the run may continue to
	// the next step immediately; false suspends the entrance until an
	// external trigger resumes it.
	Complete(ctx context.Context) (bool, error)

	// Next selects the successor step id; empty ends this branch.
	Next(ctx context.Context) (string, error)
}
