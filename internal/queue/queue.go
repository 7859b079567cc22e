// Package queue provides the bounded in-memory job queue between the HTTP
// ingress and the dispatch worker. Jobs are not persisted; anything still
// queued at process exit is lost.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
// The caller should surface a retryable error rather than block.
var ErrQueueFull = errors.New("queue full")

// DefaultCapacity is used when no capacity is configured.
const DefaultCapacity = 128

// Job is a single accepted open-request. The URL has already been decoded,
// scheme-checked and allowlist-checked at admission; downstream consumers
// never re-validate it.
type Job struct {
	ID         string
	URL        string
	EnqueuedAt time.Time
}

// NewJob creates a Job for url with a fresh ID.
func NewJob(url string) Job {
	return Job{
		ID:         uuid.NewString(),
		URL:        url,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue is a fixed-capacity FIFO. The producer side never blocks; the
// consumer side blocks until a job arrives or the context is cancelled.
type Queue struct {
	jobs chan Job
}

// New creates a Queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{jobs: make(chan Job, capacity)}
}

// TryEnqueue inserts a job without blocking. Returns ErrQueueFull when the
// queue is at capacity.
func (q *Queue) TryEnqueue(j Job) error {
	select {
	case q.jobs <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until a job is available or ctx is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case j := <-q.jobs:
		return j, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Depth returns the number of jobs currently queued.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Capacity returns the fixed queue capacity.
func (q *Queue) Capacity() int {
	return cap(q.jobs)
}
