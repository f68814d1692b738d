package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/embarkhq/embark/pkg/otelhelper"
)

const (
	defaultListKey  = "embark:jobs"
	defaultDelayKey = "embark:jobs:delayed"

	popTimeout     = 1 * time.Second
	promoteEvery   = 1 * time.Second
	failureBackoff = 30 * time.Second
)

// RedisQueue implements Queue on a Redis list, with delayed jobs parked in a
// sorted set scored by their ready time and promoted by the consumer loop.
type RedisQueue struct {
	client   redis.UniversalClient
	listKey  string
	delayKey string
	handlers map[string]Handler
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewRedisQueue creates a queue on the given client.
func NewRedisQueue(client redis.UniversalClient, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{
		client:   client,
		listKey:  defaultListKey,
		delayKey: defaultDelayKey,
		handlers: make(map[string]Handler),
		logger:   logger.With("module", "redis_queue"),
	}
}

// WithTracer enables a span around every consumed job.
func (q *RedisQueue) WithTracer(tracer trace.Tracer) *RedisQueue {
	q.tracer = tracer

	return q
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.Name, err)
	}

	if err := q.client.RPush(ctx, q.listKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.Name, err)
	}

	return nil
}

func (q *RedisQueue) EnqueueBatch(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}

	payloads := make([]any, 0, len(jobs))

	for _, job := range jobs {
		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job %s: %w", job.Name, err)
		}

		payloads = append(payloads, payload)
	}

	if err := q.client.RPush(ctx, q.listKey, payloads...).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %d jobs: %w", len(jobs), err)
	}

	return nil
}

func (q *RedisQueue) Delay(ctx context.Context, job *Job, delay time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.Name, err)
	}

	readyAt := float64(time.Now().Add(delay).UnixMilli())

	err = q.client.ZAdd(ctx, q.delayKey, redis.Z{Score: readyAt, Member: payload}).Err()
	if err != nil {
		return fmt.Errorf("failed to delay job %s: %w", job.Name, err)
	}

	return nil
}

func (q *RedisQueue) Handle(name string, handler Handler) {
	q.handlers[name] = handler
}

// Consume promotes due delayed jobs and processes the list until the
// context is cancelled.
func (q *RedisQueue) Consume(ctx context.Context) error {
	q.logger.InfoContext(ctx, "Starting queue consumer", "list", q.listKey)

	promote := time.NewTicker(promoteEvery)
	defer promote.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return nil
		case <-promote.C:
			if err := q.promoteDue(ctx); err != nil {
				q.logger.ErrorContext(ctx, "Error promoting delayed jobs", "error", err)
			}
		default:
			if err := q.processOne(ctx); err != nil {
				q.logger.ErrorContext(ctx, "Error processing job", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// promoteDue moves jobs whose ready time has passed from the sorted set to
// the consumable list.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	due, err := q.client.ZRangeByScore(ctx, q.delayKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed jobs: %w", err)
	}

	for _, payload := range due {
		if err := q.client.RPush(ctx, q.listKey, payload).Err(); err != nil {
			return fmt.Errorf("failed to promote delayed job: %w", err)
		}

		if err := q.client.ZRem(ctx, q.delayKey, payload).Err(); err != nil {
			return fmt.Errorf("failed to remove promoted job: %w", err)
		}
	}

	return nil
}

func (q *RedisQueue) processOne(ctx context.Context) error {
	result, err := q.client.BLPop(ctx, popTimeout, q.listKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	handler, ok := q.handlers[job.Name]
	if !ok {
		q.logger.WarnContext(ctx, "No handler registered for job", "job", job.Name)

		return nil
	}

	jobCtx := ctx

	var span trace.Span

	if q.tracer != nil {
		jobCtx, span = otelhelper.StartSpan(ctx, q.tracer, "queue.consume "+job.Name,
			attribute.String(otelhelper.JobIDKey, job.ID),
			attribute.String("embark.job.name", job.Name),
		)
		defer span.End()
	}

	if err := handler(jobCtx, &job); err != nil {
		q.logger.ErrorContext(ctx, "Job handler failed, rescheduling", "job", job.Name, "error", err)

		if span != nil {
			otelhelper.SetError(span, err)
		}

		return q.Delay(ctx, &job, failureBackoff)
	}

	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
