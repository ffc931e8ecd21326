package model

// BatchStatus is the aggregate status of one race-processing call.
type BatchStatus string

const (
	// StatusOK means every prediction was scored and applied.
	StatusOK BatchStatus = "OK"
	// StatusNoResult means the race has no published result to score against.
	StatusNoResult BatchStatus = "NO_RESULT"
	// StatusPartial means some per-user updates failed; Failed carries the
	// set to hand back for external retry.
	StatusPartial BatchStatus = "PARTIAL"
)

// FailedUser identifies one user whose update did not stick.
type FailedUser struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// Summary reports the outcome of processing one race.
type Summary struct {
	RaceID      string       `json:"raceId"`
	UsersScored int          `json:"usersScored"`
	Skipped     int          `json:"skipped"`
	Failed      []FailedUser `json:"failed,omitempty"`
	Status      BatchStatus  `json:"status"`
}
