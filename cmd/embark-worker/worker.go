package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/embarkhq/embark/pkg/campaign"
	"github.com/embarkhq/embark/pkg/cmd"
	"github.com/embarkhq/embark/pkg/eventbus"
	"github.com/embarkhq/embark/pkg/journey"
	"github.com/embarkhq/embark/pkg/lists"
	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/queue"
	"github.com/embarkhq/embark/pkg/rules"
)

// Worker wires the journey engine together and pulls jobs from the queue
// until shut down.
type Worker struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	queue       queue.Queue
	service     *journey.Service
}

func NewWorker(
	id string,
	persist persistence.Persistence,
	redisClient redis.UniversalClient,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Worker {
	q := queue.NewRedisQueue(redisClient, logger).WithTracer(tracer)
	locker := cmd.NewLock(redisClient)
	registry := rules.NewRegistry()
	sender := campaign.NewQueueSender(q, persist.Deliveries(), logger)
	matcher := lists.NewMatcher(persist, registry, logger)
	state := journey.NewState(persist, locker, q, eventBus, registry, sender, logger)
	service := journey.NewService(persist, state, q, eventBus, matcher, logger)

	return &Worker{
		id:          id,
		logger:      logger.With("module", "worker"),
		persistence: persist,
		queue:       q,
		service:     service,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker", "worker_id", w.id)

	w.service.RegisterHandlers(w.queue)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := w.queue.Consume(ctx)

	w.logger.InfoContext(ctx, "Shutting down worker")

	if closeErr := w.queue.Close(); closeErr != nil {
		w.logger.ErrorContext(ctx, "Failed to close queue", "error", closeErr)
	}

	if err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}
