package journey

import (
	"context"
	"encoding/json"
	"time"

	"github.com/embarkhq/embark/pkg/campaign"
	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/queue"
	"github.com/embarkhq/embark/pkg/rules"
	"github.com/embarkhq/embark/pkg/steps"
)

// delayedJob pairs a job with its wake offset until the run flushes.
type delayedJob struct {
	job   *queue.Job
	delay time.Duration
}

// runContext is the per-resume view handed to step behaviors. Jobs are
// collected here and flushed in one batch after the run loop finishes, so a
// failed run never leaves half its follow-up work enqueued.
type runContext struct {
	state    *State
	journey  *models.Journey
	user     *models.User
	entrance *models.JourneyUserStep
	history  []*models.JourneyUserStep
	location *time.Location

	events       []rules.EventInput
	eventsLoaded bool

	// snapshots holds each row's persisted form so saves of untouched rows
	// can be skipped.
	snapshots map[string]string

	jobs    []*queue.Job
	delayed []delayedJob
}

func (r *runContext) Journey() *models.Journey           { return r.journey }
func (r *runContext) User() *models.User                 { return r.user }
func (r *runContext) Entrance() *models.JourneyUserStep  { return r.entrance }
func (r *runContext) Rules() *rules.Registry             { return r.state.rules }
func (r *runContext) Users() persistence.UserRepository  { return r.state.persistence.Users() }
func (r *runContext) Lists() persistence.ListRepository  { return r.state.persistence.Lists() }
func (r *runContext) Sender() campaign.Sender            { return r.state.sender }
func (r *runContext) Now() time.Time                     { return r.state.now() }

func (r *runContext) Deliveries() persistence.DeliveryRepository {
	return r.state.persistence.Deliveries()
}

func (r *runContext) TriggerEvent() map[string]any {
	if r.entrance.Data == nil {
		return nil
	}

	snapshot, _ := r.entrance.Data["event"].(map[string]any)

	return snapshot
}

func (r *runContext) History() []*models.JourneyUserStep {
	return r.history
}

// RelevantEvents loads the user's events on first use, restricted to the
// event names referenced by the journey's gate rules.
func (r *runContext) RelevantEvents(ctx context.Context) ([]rules.EventInput, error) {
	if r.eventsLoaded {
		return r.events, nil
	}

	names := gateEventNames(r.journey)

	rows, err := r.state.persistence.Events().ByUser(ctx, r.user.ID, names)
	if err != nil {
		return nil, err
	}

	r.events = make([]rules.EventInput, 0, len(rows))
	for _, row := range rows {
		r.events = append(r.events, rules.EventInput{
			Name:       row.Name,
			Properties: row.Properties,
		})
	}

	r.eventsLoaded = true

	return r.events, nil
}

func (r *runContext) StepData() map[string]map[string]any {
	data := make(map[string]map[string]any, len(r.history))

	for _, row := range r.history {
		step := r.journey.Step(row.StepID)
		if step == nil || len(row.Data) == 0 {
			continue
		}

		data[step.ExternalID] = row.Data
	}

	return data
}

func (r *runContext) Location() *time.Location {
	return r.location
}

func (r *runContext) Enqueue(job *queue.Job) {
	r.jobs = append(r.jobs, job)
}

func (r *runContext) EnqueueDelayed(job *queue.Job, delay time.Duration) {
	r.delayed = append(r.delayed, delayedJob{job: job, delay: delay})
}

// flush hands the collected jobs to the queue. Called once, after the lock
// is released.
func (r *runContext) flush(ctx context.Context, q queue.Queue) error {
	if len(r.jobs) > 0 {
		if err := q.EnqueueBatch(ctx, r.jobs); err != nil {
			return err
		}
	}

	for _, d := range r.delayed {
		if err := q.Delay(ctx, d.job, d.delay); err != nil {
			return err
		}
	}

	return nil
}

// snapshot records the row's current persisted form.
func (r *runContext) snapshot(row *models.JourneyUserStep) {
	encoded, err := json.Marshal(row)
	if err != nil {
		return
	}

	if r.snapshots == nil {
		r.snapshots = make(map[string]string)
	}

	r.snapshots[row.ID] = string(encoded)
}

// changed reports whether the row differs from its loaded snapshot. A row
// without a snapshot is treated as changed.
func (r *runContext) changed(row *models.JourneyUserStep) bool {
	prev, ok := r.snapshots[row.ID]
	if !ok {
		return true
	}

	encoded, err := json.Marshal(row)
	if err != nil {
		return true
	}

	return string(encoded) != prev
}

// visited reports whether a step already has a history row in this run.
func (r *runContext) visited(stepID string) bool {
	for _, row := range r.history {
		if row.StepID == stepID {
			return true
		}
	}

	return false
}

// gateEventNames collects the distinct event names referenced by the
// journey's inline gate rules, so event history queries stay bounded.
func gateEventNames(j *models.Journey) []string {
	seen := make(map[string]bool)

	var names []string

	for _, step := range j.Steps {
		if step.Type != models.StepTypeGate || step.Data == nil {
			continue
		}

		raw, ok := step.Data["rule"]
		if !ok {
			continue
		}

		encoded, err := json.Marshal(raw)
		if err != nil {
			continue
		}

		var node rules.Node
		if err := json.Unmarshal(encoded, &node); err != nil {
			continue
		}

		for _, name := range node.EventNames() {
			if !seen[name] {
				seen[name] = true

				names = append(names, name)
			}
		}
	}

	return names
}

var _ steps.Run = (*runContext)(nil)
