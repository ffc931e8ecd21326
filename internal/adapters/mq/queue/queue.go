// Package queue defines the contract for dispatching scoring tasks to the
// worker pool. One task scores a single prediction against one race result.
package queue

import (
	"context"
	"sync"

	"github.com/apexgp/apex-scoring/internal/domain/model"
	"github.com/apexgp/apex-scoring/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 10_000
)

// Task carries everything a worker needs to score one prediction and fold
// the result into the leaderboard. Done is invoked exactly once per task
// with the outcome; the aggregator uses it to collect the batch summary.
type Task struct {
	Ref        model.RaceRef
	HasSprint  bool
	Result     *model.RaceResult
	Prediction model.Prediction
	Done       func(Outcome)
}

// Outcome reports what happened to one task.
type Outcome struct {
	UserID  string
	Points  int
	Skipped bool // malformed prediction, logged and dropped
	Err     error
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a task. Returns false when the queue is full or closed.
	Enqueue(ctx context.Context, t Task) bool

	// Dequeue returns a channel delivering tasks until the queue closes.
	Dequeue(ctx context.Context) <-chan Task

	// Len returns the current number of queued tasks.
	Len(ctx context.Context) int

	// Close stops intake; the dequeue channel drains and then closes.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a queue with the given options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)
	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a task without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}
	select {
	case q.tasks <- t:
		metrics.UpdateQueueSize(len(q.tasks))
		return true
	case <-ctx.Done():
		return false
	default:
		// Queue full; the caller decides whether to retry or fail the task.
		return false
	}
}

// Dequeue returns a channel that delivers tasks as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for t := range q.tasks {
			select {
			case out <- t:
				metrics.UpdateQueueSize(len(q.tasks))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued tasks.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.tasks)
}

// Close stops intake and lets consumers drain.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
