// Package queue provides the background job contract the journey engine
// dispatches follow-up work through. Jobs are opaque named payloads resolved
// by a registered handler; delivery guarantees (at-least-once, retry
// backoff) belong to the queue implementation, not to the engine.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one unit of deferred work.
type Job struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Payload    map[string]any `json:"payload,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// NewJob creates a named job with a fresh id.
func NewJob(name string, payload map[string]any) *Job {
	return &Job{
		ID:         uuid.New().String(),
		Name:       name,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

// String reads a string field out of the job payload.
func (j *Job) String(key string) string {
	s, _ := j.Payload[key].(string)

	return s
}

// Handler processes one job. A returned error reschedules the job with
// backoff.
type Handler func(ctx context.Context, job *Job) error

// Queue is the enqueue/consume contract.
type Queue interface {
	Enqueue(ctx context.Context, job *Job) error
	EnqueueBatch(ctx context.Context, jobs []*Job) error

	// Delay schedules the job to become consumable after the given duration.
	Delay(ctx context.Context, job *Job, delay time.Duration) error

	// Handle registers the handler for a job name. Registration must happen
	// before Consume.
	Handle(name string, handler Handler)

	// Consume blocks processing jobs until the context is cancelled.
	Consume(ctx context.Context) error

	Close() error
}
