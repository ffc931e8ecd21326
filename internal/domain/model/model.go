// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ScoreCategory names one source of points inside a race breakdown.
type ScoreCategory string

const (
	CategoryGridPosition    ScoreCategory = "gridPosition"
	CategorySprintPosition  ScoreCategory = "sprintPosition"
	CategoryPole            ScoreCategory = "pole"
	CategoryFastestLap      ScoreCategory = "fastestLap"
	CategoryPositionsGained ScoreCategory = "positionsGained"
)

// RaceRef identifies one race within a category and season,
// e.g. {"f1", "2026", "australia2026"}.
type RaceRef struct {
	Category string
	Season   string
	RaceID   string
}

// String renders the ref as a composite key segment.
func (r RaceRef) String() string {
	return r.Category + "#" + r.Season + "#" + r.RaceID
}

// Validate checks that all key parts are present and free of the
// separator used by composite store keys.
func (r RaceRef) Validate() error {
	for _, part := range []struct{ name, v string }{
		{"category", r.Category},
		{"season", r.Season},
		{"race_id", r.RaceID},
	} {
		if strings.TrimSpace(part.v) == "" {
			return &ValidationError{Field: part.name, Reason: "missing"}
		}
		if strings.Contains(part.v, "#") {
			return &ValidationError{Field: part.name, Reason: "contains reserved separator"}
		}
	}
	return nil
}

// GridSlot pairs a finishing (or predicted) position with a driver number.
type GridSlot struct {
	Position     int `json:"position"`
	DriverNumber int `json:"driverNumber"`
}

// ExtraPicks holds the optional one-shot picks attached to a prediction or
// result. Pointers distinguish an absent pick from a zero value; Pole and
// FastestLap carry driver numbers, PositionsGained carries a count.
type ExtraPicks struct {
	Pole            *int `json:"pole,omitempty"`
	FastestLap      *int `json:"fastestLap,omitempty"`
	PositionsGained *int `json:"positionsGained,omitempty"`
}

// RaceResult is the official outcome of one race. Immutable once published.
type RaceResult struct {
	GridOrder       []GridSlot `json:"gridOrder"`
	SprintPositions []GridSlot `json:"sprintPositions,omitempty"`
	Extras          ExtraPicks `json:"additionalOutcomes"`
	HasSprint       bool       `json:"hasSprint"`
}

// Validate rejects results that cannot be scored against.
func (r RaceResult) Validate() error {
	if len(r.GridOrder) == 0 {
		return &ValidationError{Field: "gridOrder", Reason: "empty"}
	}
	if err := validateSlots("gridOrder", r.GridOrder); err != nil {
		return err
	}
	if len(r.SprintPositions) > 0 {
		return validateSlots("sprintPositions", r.SprintPositions)
	}
	return nil
}

// Prediction is one user's forecast for one race, same shape as the result.
// Submitted before the race; never mutated by the scoring path.
type Prediction struct {
	UserID          string     `json:"userId"`
	GridOrder       []GridSlot `json:"gridOrder"`
	SprintPositions []GridSlot `json:"sprintPositions,omitempty"`
	Extras          ExtraPicks `json:"additionalPredictions"`
	SubmittedAt     time.Time  `json:"submittedAt,omitempty"`
}

// Validate rejects malformed predictions. A malformed prediction is skipped
// by the aggregator; it is never fatal for the rest of a race batch.
func (p Prediction) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return &ValidationError{Field: "userId", Reason: "missing"}
	}
	if len(p.GridOrder) == 0 {
		return &ValidationError{Field: "gridOrder", Reason: "empty"}
	}
	if err := validateSlots("gridOrder", p.GridOrder); err != nil {
		return err
	}
	if len(p.SprintPositions) > 0 {
		return validateSlots("sprintPositions", p.SprintPositions)
	}
	return nil
}

func validateSlots(field string, slots []GridSlot) error {
	seen := make(map[int]struct{}, len(slots))
	for _, s := range slots {
		if s.Position < 1 {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("position %d out of range", s.Position)}
		}
		if s.DriverNumber < 1 {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("driver number %d out of range", s.DriverNumber)}
		}
		if _, dup := seen[s.Position]; dup {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("duplicate position %d", s.Position)}
		}
		seen[s.Position] = struct{}{}
	}
	return nil
}

// DriverPoints is the per-driver slice of a race breakdown.
type DriverPoints struct {
	Points     int                   `json:"points"`
	ByCategory map[ScoreCategory]int `json:"breakdown"`
}

// Breakdown is the output of scoring one (Prediction, RaceResult) pair.
// Ephemeral: recomputed whenever scoring runs; only totals are persisted.
type Breakdown struct {
	Drivers map[int]DriverPoints `json:"drivers"`
	// ExtraPoints collects pick awards not tied to any driver
	// (currently only positionsGained).
	ExtraPoints     int `json:"extraPoints"`
	BonusPoints     int `json:"bonusPoints"`
	TotalRacePoints int `json:"totalRacePoints"`
}

// PerRaceScore records one user's total for one race. It is the audit trail
// the reconciliation path sums over. Re-scoring a race overwrites it.
type PerRaceScore struct {
	UserID          string    `json:"userId"`
	Season          string    `json:"season"`
	RaceID          string    `json:"raceId"`
	TotalRacePoints int       `json:"totalRacePoints"`
	Breakdown       Breakdown `json:"breakdown"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// LeaderboardEntry is the per (user, season) aggregate.
//
// Invariants: RankKey is always the codec encoding of TotalPoints, and
// RacesCounted equals len(ProcessedRaces). Version supports the store's
// compare-and-put; zero means the entry has never been persisted.
type LeaderboardEntry struct {
	UserID         string              `json:"userId"`
	Season         string              `json:"season"`
	TotalPoints    int                 `json:"totalPoints"`
	RacesCounted   int                 `json:"racesCounted"`
	RankKey        string              `json:"rankKey"`
	ProcessedRaces map[string]struct{} `json:"-"`
	Version        int64               `json:"-"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Processed reports whether raceID has already been folded into the total.
func (e LeaderboardEntry) Processed(raceID string) bool {
	_, ok := e.ProcessedRaces[raceID]
	return ok
}

// Clone returns a deep copy so callers can mutate without aliasing the
// store's view of the entry.
func (e LeaderboardEntry) Clone() LeaderboardEntry {
	out := e
	out.ProcessedRaces = make(map[string]struct{}, len(e.ProcessedRaces))
	for id := range e.ProcessedRaces {
		out.ProcessedRaces[id] = struct{}{}
	}
	return out
}
