// Package aggregate orchestrates scoring across every prediction submitted
// for one race, fanning the work out over the scoring queue and collecting
// per-user outcomes into a batch summary.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/apexgp/apex-scoring/internal/adapters/mq/queue"
	"github.com/apexgp/apex-scoring/internal/adapters/repository"
	"github.com/apexgp/apex-scoring/internal/domain/model"
	"github.com/apexgp/apex-scoring/pkg/logger"
	"github.com/apexgp/apex-scoring/pkg/metrics"
)

const enqueueRetryDelay = 5 * time.Millisecond

// Default retry configuration for transient store errors.
const (
	defaultInitialBackoff = 50 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultMaxRetries     = 5
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithRetryPolicy tunes backoff used on transient store errors.
func WithRetryPolicy(initial, maxInterval time.Duration, maxRetries uint64) Option {
	return func(a *Aggregator) {
		if initial > 0 {
			a.initialBackoff = initial
		}
		if maxInterval >= initial {
			a.maxBackoff = maxInterval
		}
		a.maxRetries = maxRetries
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// Reader is the slice of the store the aggregator needs.
type Reader interface {
	GetRaceResult(ctx context.Context, ref model.RaceRef) (model.RaceResult, error)
	ListPredictions(ctx context.Context, ref model.RaceRef, fn func(model.Prediction) error) error
}

// Aggregator loads a race's predictions and dispatches scoring tasks.
//
// Processing order never affects totals: each task touches only its own
// user's entry and a race is folded into that entry at most once.
type Aggregator struct {
	store Reader
	queue queue.Queue

	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxRetries     uint64

	logger logger.Logger
}

// New wires an Aggregator to its store and task queue.
func New(store Reader, q queue.Queue, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:          store,
		queue:          q,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		maxRetries:     defaultMaxRetries,
		logger:         logger.Get().Named("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run scores every prediction for the referenced race. Returns a summary
// whose status is NO_RESULT when the race has no published result (fatal
// for the batch and not retryable until the result exists), PARTIAL when
// some per-user updates failed, OK otherwise. Transient store errors are
// retried with backoff before the batch gives up; they never masquerade
// as a missing result.
func (a *Aggregator) Run(ctx context.Context, ref model.RaceRef) (model.Summary, error) {
	summary := model.Summary{RaceID: ref.RaceID, Status: model.StatusOK}

	result, err := a.getResult(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			summary.Status = model.StatusNoResult
		}
		return summary, fmt.Errorf("load result for race %s: %w", ref.RaceID, err)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	collect := func(o queue.Outcome) {
		mu.Lock()
		switch {
		case o.Skipped:
			summary.Skipped++
		case o.Err != nil:
			summary.Failed = append(summary.Failed, model.FailedUser{
				UserID: o.UserID,
				Reason: o.Err.Error(),
			})
		default:
			summary.UsersScored++
		}
		mu.Unlock()
		wg.Done()
	}

	// A transient failure mid-scan restarts the listing; the seen set keeps
	// re-delivered predictions from being dispatched twice.
	dispatched := 0
	seen := make(map[string]struct{})
	err = a.retryTransient(ctx, func() error {
		return a.store.ListPredictions(ctx, ref, func(pred model.Prediction) error {
			if _, dup := seen[pred.UserID]; dup {
				return nil
			}
			task := queue.Task{
				Ref:        ref,
				HasSprint:  result.HasSprint,
				Result:     &result,
				Prediction: pred,
				Done:       collect,
			}
			wg.Add(1)
			if err := a.enqueue(ctx, task); err != nil {
				wg.Done()
				return err
			}
			seen[pred.UserID] = struct{}{}
			dispatched++
			return nil
		})
	})
	if err != nil {
		// The batch is restartable from scratch: per-user application is
		// idempotent, so an aborted listing needs no rollback.
		waitDone(ctx, &wg)
		return summary, fmt.Errorf("list predictions for race %s: %w", ref.RaceID, err)
	}

	waitDone(ctx, &wg)

	mu.Lock()
	defer mu.Unlock()
	if len(summary.Failed) > 0 {
		sort.Slice(summary.Failed, func(i, j int) bool {
			return summary.Failed[i].UserID < summary.Failed[j].UserID
		})
		summary.Status = model.StatusPartial
	}

	metrics.RecordRaceProcessed()
	a.logger.Info(ctx, "race batch complete",
		logger.String("raceID", ref.RaceID),
		logger.Int("dispatched", dispatched),
		logger.Int("scored", summary.UsersScored),
		logger.Int("skipped", summary.Skipped),
		logger.Int("failed", len(summary.Failed)),
	)
	return summary, nil
}

// getResult reads the official result, retrying transient store errors.
func (a *Aggregator) getResult(ctx context.Context, ref model.RaceRef) (model.RaceResult, error) {
	var result model.RaceResult
	err := a.retryTransient(ctx, func() error {
		var err error
		result, err = a.store.GetRaceResult(ctx, ref)
		return err
	})
	return result, err
}

// retryTransient runs op, retrying with exponential backoff while it keeps
// failing with repository.ErrTransient. Every other error is permanent.
func (a *Aggregator) retryTransient(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(a.newBackoff(), a.maxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrTransient) {
			metrics.RecordStoreRetry()
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

func (a *Aggregator) newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.initialBackoff
	b.MaxInterval = a.maxBackoff
	b.MaxElapsedTime = 0
	return b
}

// enqueue pushes a task, waiting out short backpressure windows.
func (a *Aggregator) enqueue(ctx context.Context, t queue.Task) error {
	for {
		if a.queue.Enqueue(ctx, t) {
			return nil
		}
		if a.queue.IsClosed() {
			return queue.ErrClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(enqueueRetryDelay):
		}
	}
}

// waitDone waits for outstanding tasks, abandoning the wait when ctx ends.
// Workers still hold task callbacks, so the WaitGroup must not be reused.
func waitDone(ctx context.Context, wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
