// Package leaderboard maintains per-user season totals: the incremental
// updater that folds race scores in idempotently, and the auditor that
// recomputes totals from the per-race audit trail.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/apexgp/apex-scoring/internal/adapters/repository"
	"github.com/apexgp/apex-scoring/internal/domain/model"
	"github.com/apexgp/apex-scoring/internal/domain/rankkey"
	"github.com/apexgp/apex-scoring/pkg/logger"
	"github.com/apexgp/apex-scoring/pkg/metrics"
)

// Default retry configuration for transient store errors.
const (
	defaultInitialBackoff = 50 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultMaxRetries     = 5
)

// Option applies a configuration option to the Updater.
type Option func(*Updater)

// WithRetryPolicy tunes backoff used on transient store errors.
func WithRetryPolicy(initial, maxInterval time.Duration, maxRetries uint64) Option {
	return func(u *Updater) {
		if initial > 0 {
			u.initialBackoff = initial
		}
		if maxInterval >= initial {
			u.maxBackoff = maxInterval
		}
		u.maxRetries = maxRetries
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(u *Updater) {
		if l != nil {
			u.logger = l
		}
	}
}

// Updater applies per-race points to season totals.
//
// Apply is idempotent under at-least-once delivery: the entry's
// processed-race set is the guard, and the store's compare-and-put makes
// check-then-accumulate atomic per user. Updates for different users never
// contend.
type Updater struct {
	store repository.Store
	codec *rankkey.Codec

	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxRetries     uint64

	logger logger.Logger
}

// NewUpdater wires an Updater to its store and codec.
func NewUpdater(store repository.Store, codec *rankkey.Codec, opts ...Option) *Updater {
	u := &Updater{
		store:          store,
		codec:          codec,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		maxRetries:     defaultMaxRetries,
		logger:         logger.Get().Named("updater"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Apply folds racePoints for raceID into the user's season total. Applying
// the same race twice is a successful no-op returning the current entry.
func (u *Updater) Apply(ctx context.Context, userID, season, raceID string, racePoints int) (model.LeaderboardEntry, error) {
	if racePoints < 0 {
		return model.LeaderboardEntry{}, fmt.Errorf("negative race points %d for user %s", racePoints, userID)
	}

	for {
		entry, err := u.getEntry(ctx, userID, season)
		created := false
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// First scoring event for this user in the season.
			entry = model.LeaderboardEntry{
				UserID:         userID,
				Season:         season,
				ProcessedRaces: make(map[string]struct{}, 1),
			}
			created = true
		case err != nil:
			return model.LeaderboardEntry{}, fmt.Errorf("load entry for %s: %w", userID, err)
		}

		if entry.Processed(raceID) {
			// Idempotency boundary: already folded in, nothing to do.
			metrics.RecordDuplicateApply()
			u.logger.Debug(ctx, "race already applied",
				logger.String("userID", userID),
				logger.String("raceID", raceID),
			)
			return entry, nil
		}

		next := entry.Clone()
		next.TotalPoints += racePoints
		next.RacesCounted++
		next.ProcessedRaces[raceID] = struct{}{}
		key, err := u.codec.Encode(next.TotalPoints)
		if err != nil {
			return model.LeaderboardEntry{}, fmt.Errorf("encode rank key for %s: %w", userID, err)
		}
		next.RankKey = key

		stored, err := u.casEntry(ctx, next)
		switch {
		case err == nil:
			metrics.RecordLeaderboardUpdate()
			if created {
				u.logger.Debug(ctx, "created leaderboard entry",
					logger.String("userID", userID),
					logger.String("season", season),
				)
			}
			return stored, nil
		case errors.Is(err, repository.ErrVersionConflict):
			// Another update for the same user won the race; re-read and
			// re-check the guard. Not an error, not backed off.
			continue
		default:
			return model.LeaderboardEntry{}, fmt.Errorf("apply race %s for %s: %w", raceID, userID, err)
		}
	}
}

// getEntry reads the entry, retrying transient store errors with backoff.
func (u *Updater) getEntry(ctx context.Context, userID, season string) (model.LeaderboardEntry, error) {
	var entry model.LeaderboardEntry
	err := u.retryTransient(ctx, func() error {
		var err error
		entry, err = u.store.GetEntry(ctx, userID, season)
		return err
	})
	return entry, err
}

// casEntry writes conditionally, retrying only transient errors. Version
// conflicts pass straight through to the caller's read-recheck loop.
func (u *Updater) casEntry(ctx context.Context, entry model.LeaderboardEntry) (model.LeaderboardEntry, error) {
	var stored model.LeaderboardEntry
	err := u.retryTransient(ctx, func() error {
		var err error
		stored, err = u.store.CompareAndPutEntry(ctx, entry)
		return err
	})
	return stored, err
}

// retryTransient runs op, retrying with exponential backoff while it keeps
// failing with repository.ErrTransient. Every other error is permanent.
func (u *Updater) retryTransient(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(u.newBackoff(), u.maxRetries), ctx)
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

func (u *Updater) newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.initialBackoff
	b.MaxInterval = u.maxBackoff
	b.MaxElapsedTime = 0
	return b
}
