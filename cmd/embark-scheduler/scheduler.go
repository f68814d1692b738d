package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/embarkhq/embark/pkg/lists"
	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/queue"
	"github.com/embarkhq/embark/pkg/steps"
)

const defaultReloadInterval = 5 * time.Minute

// scheduleKey is the entrance payload field carrying the cron expression of
// a scheduled batch entrance.
const scheduleKey = "schedule"

// Scheduler runs a cron with one entry per scheduled journey entrance plus a
// recurring list sweep, rebuilt periodically so published edits take effect
// without a restart.
type Scheduler struct {
	persistence    persistence.Persistence
	queue          queue.Queue
	listSweepSpec  string
	reloadInterval time.Duration
	logger         *slog.Logger

	cron *cron.Cron
}

func NewScheduler(
	persist persistence.Persistence,
	q queue.Queue,
	listSweepSpec string,
	reloadInterval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	if reloadInterval <= 0 {
		reloadInterval = defaultReloadInterval
	}

	return &Scheduler{
		persistence:    persist,
		queue:          q,
		listSweepSpec:  listSweepSpec,
		reloadInterval: reloadInterval,
		logger:         logger.With("module", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.reload(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.reloadInterval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "Scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Shutting down scheduler")
			s.stopCron()

			return nil
		case <-ticker.C:
			if err := s.reload(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Failed to reload schedules", "error", err)
			}
		}
	}
}

// reload rebuilds the cron from the current persisted state and swaps it in.
func (s *Scheduler) reload(ctx context.Context) error {
	next := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	entries, err := s.registerEntrances(ctx, next)
	if err != nil {
		return err
	}

	if _, err := next.AddFunc(s.listSweepSpec, func() {
		s.enqueueListSweeps(ctx)
	}); err != nil {
		return fmt.Errorf("invalid list sweep schedule %q: %w", s.listSweepSpec, err)
	}

	s.stopCron()
	s.cron = next
	s.cron.Start()

	s.logger.InfoContext(ctx, "Loaded schedules", "scheduled_entrances", entries)

	return nil
}

func (s *Scheduler) stopCron() {
	if s.cron == nil {
		return
	}

	// Stop returns once running entries finish; wait so two crons never
	// overlap.
	<-s.cron.Stop().Done()
}

func (s *Scheduler) registerEntrances(ctx context.Context, c *cron.Cron) (int, error) {
	journeys, err := s.persistence.Journeys().Published(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to load published journeys: %w", err)
	}

	entries := 0

	for _, j := range journeys {
		for _, entrance := range j.Entrances() {
			spec, _ := entrance.Data[scheduleKey].(string)
			if spec == "" {
				continue
			}

			if _, err := cron.ParseStandard(spec); err != nil {
				s.logger.WarnContext(ctx, "Skipping entrance with invalid schedule",
					"journey_id", j.ID,
					"step_id", entrance.ID,
					"schedule", spec,
					"error", err,
				)

				continue
			}

			journeyID, stepID := j.ID, entrance.ID

			if _, err := c.AddFunc(spec, func() {
				s.enqueueBatchEnroll(ctx, journeyID, stepID)
			}); err != nil {
				return entries, fmt.Errorf("failed to add cron entry: %w", err)
			}

			entries++
		}
	}

	return entries, nil
}

func (s *Scheduler) enqueueBatchEnroll(ctx context.Context, journeyID, stepID string) {
	job := queue.NewJob(steps.JobBatchEnroll, map[string]any{
		"journey_id": journeyID,
		"step_id":    stepID,
	})

	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "Failed to enqueue batch enroll",
			"journey_id", journeyID,
			"step_id", stepID,
			"error", err,
		)

		return
	}

	s.logger.InfoContext(ctx, "Enqueued batch enroll", "journey_id", journeyID, "step_id", stepID)
}

// enqueueListSweeps fires one population job per dynamic list.
func (s *Scheduler) enqueueListSweeps(ctx context.Context) {
	candidates, err := s.persistence.Lists().ByProject(ctx, "")
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load lists for sweep", "error", err)

		return
	}

	for _, list := range candidates {
		if !list.IsDynamic() {
			continue
		}

		job := queue.NewJob(lists.JobPopulate, map[string]any{
			"list_id": list.ID,
		})

		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.logger.ErrorContext(ctx, "Failed to enqueue list sweep", "list_id", list.ID, "error", err)
		}
	}
}
