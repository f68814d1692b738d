package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for tests and single-node development.
// Jobs are held until Drain or Consume runs them.
type MemoryQueue struct {
	mu       sync.Mutex
	jobs     []*Job
	delayed  []*Job
	handlers map[string]Handler
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{handlers: make(map[string]Handler)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs = append(q.jobs, job)

	return nil
}

func (q *MemoryQueue) EnqueueBatch(_ context.Context, jobs []*Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs = append(q.jobs, jobs...)

	return nil
}

func (q *MemoryQueue) Delay(_ context.Context, job *Job, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.delayed = append(q.delayed, job)

	return nil
}

func (q *MemoryQueue) Handle(name string, handler Handler) {
	q.handlers[name] = handler
}

// Jobs returns a snapshot of currently pending jobs.
func (q *MemoryQueue) Jobs() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Job, len(q.jobs))
	copy(out, q.jobs)

	return out
}

// Delayed returns a snapshot of delayed jobs.
func (q *MemoryQueue) Delayed() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Job, len(q.delayed))
	copy(out, q.delayed)

	return out
}

// Drain runs every pending job through its handler, including jobs enqueued
// by the handlers themselves. Delayed jobs are not drained.
func (q *MemoryQueue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()

		if len(q.jobs) == 0 {
			q.mu.Unlock()

			return nil
		}

		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		handler := q.handlers[job.Name]
		q.mu.Unlock()

		if handler == nil {
			continue
		}

		if err := handler(ctx, job); err != nil {
			return err
		}
	}
}

// Consume drains pending jobs until the context is cancelled.
func (q *MemoryQueue) Consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := q.Drain(ctx); err != nil {
				return err
			}

			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (q *MemoryQueue) Close() error {
	return nil
}
