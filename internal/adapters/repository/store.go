// Package repository defines the persistence contract of the scoring core.
//
// The shape mirrors the external key-value collaborator: point lookups by
// composite identifier, ascending range scans, and conditional writes. The
// concrete store is out of scope; MemStore stands in with an ordered
// in-memory map honoring the same contract.
package repository

import (
	"context"

	"github.com/apexgp/apex-scoring/internal/domain/model"
)

// Store provides read/write access to race data and leaderboard state.
type Store interface {
	// PutRaceResult publishes the official result for a race. Publishing
	// again overwrites, which is what re-scoring relies on.
	PutRaceResult(ctx context.Context, ref model.RaceRef, result model.RaceResult) error

	// GetRaceResult returns the published result for a race.
	// Returns ErrNotFound when the race has no result yet.
	GetRaceResult(ctx context.Context, ref model.RaceRef) (model.RaceResult, error)

	// PutPrediction stores one user's prediction for a race.
	PutPrediction(ctx context.Context, ref model.RaceRef, pred model.Prediction) error

	// ListPredictions streams every prediction submitted for a race,
	// paginating internally. Delivery order is unspecified; a non-nil error
	// from fn aborts the scan.
	ListPredictions(ctx context.Context, ref model.RaceRef, fn func(model.Prediction) error) error

	// PutPerRaceScore records (or overwrites) a user's score for one race.
	PutPerRaceScore(ctx context.Context, score model.PerRaceScore) error

	// ListPerRaceScores returns all per-race scores for a user in a season.
	ListPerRaceScores(ctx context.Context, userID, season string) ([]model.PerRaceScore, error)

	// GetEntry returns the leaderboard entry for (user, season).
	// Returns ErrNotFound before the user's first scored race.
	GetEntry(ctx context.Context, userID, season string) (model.LeaderboardEntry, error)

	// CompareAndPutEntry writes entry only if the stored version still equals
	// entry.Version (zero for a brand-new entry). On success the persisted
	// version is entry.Version+1. Returns ErrVersionConflict otherwise; this
	// is the per-user serialization point for concurrent updates.
	CompareAndPutEntry(ctx context.Context, entry model.LeaderboardEntry) (model.LeaderboardEntry, error)

	// PutEntry writes entry unconditionally. Repair path only.
	PutEntry(ctx context.Context, entry model.LeaderboardEntry) (model.LeaderboardEntry, error)

	// TopEntries returns up to n entries for a season in descending point
	// order, served by an ascending scan over rank-key-ordered index keys.
	TopEntries(ctx context.Context, season string, n int) ([]model.LeaderboardEntry, error)

	// ListSeasonEntries streams every leaderboard entry in a season,
	// used by the reconciliation sweep.
	ListSeasonEntries(ctx context.Context, season string, fn func(model.LeaderboardEntry) error) error

	// Count returns the number of leaderboard entries tracked for a season.
	Count(ctx context.Context, season string) int
}
