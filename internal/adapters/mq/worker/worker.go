// Package worker runs the scoring fan-out: each worker drains tasks off
// the queue, scores the prediction, persists the per-race audit record and
// folds the points into the season total.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/apexgp/apex-scoring/internal/adapters/mq/queue"
	"github.com/apexgp/apex-scoring/internal/domain/model"
	"github.com/apexgp/apex-scoring/internal/domain/scoring"
	"github.com/apexgp/apex-scoring/pkg/logger"
	"github.com/apexgp/apex-scoring/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Task is what workers read off the queue.
type Task = queue.Task

// Applier folds one race's points into a user's season total.
type Applier interface {
	Apply(ctx context.Context, userID, season, raceID string, racePoints int) (model.LeaderboardEntry, error)
}

// ScoreWriter persists the per-race audit record.
type ScoreWriter interface {
	PutPerRaceScore(ctx context.Context, score model.PerRaceScore) error
}

// Source defines how workers receive tasks.
type Source interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Worker processes scoring tasks until stopped.
type Worker struct {
	source  Source
	writer  ScoreWriter
	applier Applier
	name    string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// New creates a worker with configuration options.
func New(source Source, writer ScoreWriter, applier Applier, opts ...Option) *Worker {
	w := &Worker{
		source:   source,
		writer:   writer,
		applier:  applier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop until ctx is canceled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			w.processTask(ctx, t)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processTask scores one prediction and reports the outcome through the
// task's completion callback. Validation failures skip the prediction;
// store failures surface in the outcome so the batch can report PARTIAL.
func (w *Worker) processTask(ctx context.Context, t Task) {
	start := time.Now()
	defer func() {
		metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
	}()

	userID := t.Prediction.UserID
	if err := t.Prediction.Validate(); err != nil {
		metrics.RecordPredictionSkipped()
		w.logger.Warn(ctx, "skipping malformed prediction",
			logger.String("userID", userID),
			logger.String("raceID", t.Ref.RaceID),
			logger.Error(err),
		)
		t.Done(queue.Outcome{UserID: userID, Skipped: true, Err: err})
		return
	}

	bd := scoring.Score(t.Prediction, *t.Result, t.HasSprint)

	score := model.PerRaceScore{
		UserID:          userID,
		Season:          t.Ref.Season,
		RaceID:          t.Ref.RaceID,
		TotalRacePoints: bd.TotalRacePoints,
		Breakdown:       bd,
	}
	if err := w.writer.PutPerRaceScore(ctx, score); err != nil {
		metrics.RecordScoringError()
		w.logger.Error(ctx, "persisting per-race score failed",
			logger.String("userID", userID),
			logger.String("raceID", t.Ref.RaceID),
			logger.Error(err),
		)
		t.Done(queue.Outcome{UserID: userID, Err: fmt.Errorf("store per-race score: %w", err)})
		return
	}

	if _, err := w.applier.Apply(ctx, userID, t.Ref.Season, t.Ref.RaceID, bd.TotalRacePoints); err != nil {
		metrics.RecordScoringError()
		w.logger.Error(ctx, "leaderboard update failed",
			logger.String("userID", userID),
			logger.String("raceID", t.Ref.RaceID),
			logger.Error(err),
		)
		t.Done(queue.Outcome{UserID: userID, Err: fmt.Errorf("apply points: %w", err)})
		return
	}

	metrics.RecordPredictionScored()
	t.Done(queue.Outcome{UserID: userID, Points: bd.TotalRacePoints})
}

// Pool manages a fixed set of workers over one queue.
type Pool struct {
	workers []*Worker
	source  Source

	shutdown chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

// NewPool creates and wires workerCount workers.
func NewPool(workerCount int, source Source, writer ScoreWriter, applier Applier) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:  make([]*Worker, workerCount),
		source:   source,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = New(source, writer, applier, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals all workers and waits briefly for each to drain. Safe to
// call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.shutdown) })
	for _, w := range p.workers {
		w.stopOnce.Do(func() { close(w.shutdown) })
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue and waits for the workers to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
