// Package app provides the core business service that implements the
// dependencies required by the HTTP API: publishing race results, running
// the scoring fan-out, and serving standings.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/apexgp/apex-scoring/internal/adapters/mq/queue"
	workerpool "github.com/apexgp/apex-scoring/internal/adapters/mq/worker"
	"github.com/apexgp/apex-scoring/internal/adapters/repository"
	"github.com/apexgp/apex-scoring/internal/domain/aggregate"
	"github.com/apexgp/apex-scoring/internal/domain/inflight"
	"github.com/apexgp/apex-scoring/internal/domain/leaderboard"
	"github.com/apexgp/apex-scoring/internal/domain/model"
	"github.com/apexgp/apex-scoring/internal/domain/rankkey"
	"github.com/apexgp/apex-scoring/internal/domain/types"
	"github.com/apexgp/apex-scoring/pkg/logger"
	"github.com/apexgp/apex-scoring/pkg/metrics"
)

// ErrBatchInFlight means a batch for the same race is already running.
var ErrBatchInFlight = errors.New("race batch already in flight")

// Service owns the lifecycle of the scoring pipeline. All collaborators
// are injected or constructed at Start; nothing here is a singleton.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	codec      *rankkey.Codec
	queue      queue.Queue
	pool       *workerpool.Pool
	updater    *leaderboard.Updater
	auditor    *leaderboard.Auditor
	aggregator *aggregate.Aggregator
	guard      inflight.Guard

	// Configuration
	workerCount   int
	queueSize     int
	rankCeiling   int
	retryInitial  time.Duration
	retryMax      time.Duration
	retryAttempts uint64
	defaultSeason string

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the scoring task queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRankCeiling overrides the rank key codec ceiling.
func WithRankCeiling(ceiling int) Option {
	return func(s *Service) {
		if ceiling > 0 {
			s.rankCeiling = ceiling
		}
	}
}

// WithStore injects the persistence collaborator. Defaults to the
// in-memory store when unset.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRetryPolicy tunes backoff for transient store errors.
func WithRetryPolicy(initial, maxInterval time.Duration, attempts uint64) Option {
	return func(s *Service) {
		if initial > 0 {
			s.retryInitial = initial
		}
		if maxInterval > 0 {
			s.retryMax = maxInterval
		}
		s.retryAttempts = attempts
	}
}

// WithDefaultSeason sets the season assumed by reads that omit one.
func WithDefaultSeason(season string) Option {
	return func(s *Service) {
		if season != "" {
			s.defaultSeason = season
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU() * 2,
		queueSize:     10_000,
		rankCeiling:   rankkey.DefaultCeiling,
		retryInitial:  50 * time.Millisecond,
		retryMax:      2 * time.Second,
		retryAttempts: 5,
		defaultSeason: "2026",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires and launches the pipeline components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}

	s.codec = rankkey.New(rankkey.WithCeiling(s.rankCeiling))
	if s.store == nil {
		s.store = repository.NewMemStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.guard = inflight.New()
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.updater = leaderboard.NewUpdater(s.store, s.codec,
		leaderboard.WithRetryPolicy(s.retryInitial, s.retryMax, s.retryAttempts),
	)
	s.auditor = leaderboard.NewAuditor(s.store, s.codec)
	s.aggregator = aggregate.New(s.store, s.queue,
		aggregate.WithRetryPolicy(s.retryInitial, s.retryMax, s.retryAttempts),
	)

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store, s.updater)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("rankCeiling", s.rankCeiling),
	)
	return nil
}

// Stop gracefully shuts down the pipeline.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping scoring service...")

	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
}

// ProcessRaceResult is the entry point the results pipeline calls once a
// race concludes: it publishes the official result, then scores every
// prediction for the race. Safe to re-invoke; per-user application is
// idempotent and a concurrent duplicate batch is rejected outright.
func (s *Service) ProcessRaceResult(ctx context.Context, category, season, raceID string, result model.RaceResult) (model.Summary, error) {
	ref := model.RaceRef{Category: category, Season: season, RaceID: raceID}
	if err := ref.Validate(); err != nil {
		return model.Summary{RaceID: raceID}, err
	}
	if err := result.Validate(); err != nil {
		return model.Summary{RaceID: raceID}, err
	}

	key := ref.String()
	if !s.guard.TryAcquire(key) {
		return model.Summary{RaceID: raceID}, fmt.Errorf("%w: %s", ErrBatchInFlight, key)
	}
	defer s.guard.Release(key)

	if err := s.store.PutRaceResult(ctx, ref, result); err != nil {
		return model.Summary{RaceID: raceID}, fmt.Errorf("publish result for %s: %w", raceID, err)
	}

	summary, err := s.aggregator.Run(ctx, ref)
	if err != nil {
		return summary, err
	}
	metrics.UpdateLeaderboardUsers(s.store.Count(ctx, season))
	return summary, nil
}

// ReconcileUser recomputes one user's season total from the audit trail.
func (s *Service) ReconcileUser(ctx context.Context, userID, season string) (model.LeaderboardEntry, error) {
	if season == "" {
		season = s.defaultSeason
	}
	return s.auditor.Recompute(ctx, userID, season)
}

// ReconcileSeason sweeps every tracked entry in the season.
func (s *Service) ReconcileSeason(ctx context.Context, season string) (int, error) {
	if season == "" {
		season = s.defaultSeason
	}
	return s.auditor.RecomputeSeason(ctx, season)
}

// Top returns the first n standings of the season, best first.
func (s *Service) Top(ctx context.Context, season string, n int) ([]types.Standing, error) {
	if season == "" {
		season = s.defaultSeason
	}
	entries, err := s.store.TopEntries(ctx, season, n)
	if err != nil {
		return nil, fmt.Errorf("top entries for season %s: %w", season, err)
	}
	standings := make([]types.Standing, len(entries))
	for i, e := range entries {
		standings[i] = types.Standing{
			Rank:         i + 1,
			UserID:       e.UserID,
			TotalPoints:  e.TotalPoints,
			RacesCounted: e.RacesCounted,
		}
	}
	return standings, nil
}

// Standing returns one user's current rank and totals for the season.
func (s *Service) Standing(ctx context.Context, season, userID string) (types.Standing, error) {
	if season == "" {
		season = s.defaultSeason
	}
	if _, err := s.store.GetEntry(ctx, userID, season); err != nil {
		return types.Standing{}, err
	}
	// Rank is the entry's position in the ascending rank-key scan. The
	// stand-in store has no rank op, so walk the index.
	total := s.store.Count(ctx, season)
	entries, err := s.store.TopEntries(ctx, season, total)
	if err != nil {
		return types.Standing{}, err
	}
	for i, e := range entries {
		if e.UserID == userID {
			return types.Standing{
				Rank:         i + 1,
				UserID:       e.UserID,
				TotalPoints:  e.TotalPoints,
				RacesCounted: e.RacesCounted,
			}, nil
		}
	}
	return types.Standing{}, repository.ErrNotFound
}

// SubmitPrediction stores a user's forecast ahead of a race.
func (s *Service) SubmitPrediction(ctx context.Context, category, season, raceID string, pred model.Prediction) error {
	ref := model.RaceRef{Category: category, Season: season, RaceID: raceID}
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := pred.Validate(); err != nil {
		return err
	}
	return s.store.PutPrediction(ctx, ref, pred)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["batchesInFlight"] = s.guard.Size()
		stats["leaderboardUsers"] = s.store.Count(ctx, s.defaultSeason)
	}
	return stats
}
