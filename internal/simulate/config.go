package simulate

import (
	"time"

	"github.com/apexgp/apex-scoring/internal/domain/model"
)

// Config holds configuration for a simulated season run.
type Config struct {
	BaseURL  string        // Base URL of the service
	NumUsers int           // Number of users to simulate
	NumRaces int           // Number of races in the simulated season
	TopN     int           // Number of top entries to fetch
	Workers  int           // Number of concurrent workers
	Timeout  time.Duration // HTTP request timeout
	Season   string        // Season identifier
	Category string        // Racing category
	LogFile  string        // Log file for run output
	Verbose  bool          // Enable verbose logging
}

// Race pairs a generated result with the predictions submitted against it.
type Race struct {
	RaceID      string
	HasSprint   bool
	Result      model.RaceResult
	Predictions map[string]model.Prediction // keyed by user ID
}

// Standing mirrors the leaderboard response shape.
type Standing struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	TotalPoints  int    `json:"total_points"`
	RacesCounted int    `json:"races_counted"`
}

// Stats holds run statistics.
type Stats struct {
	UsersGenerated       int
	RacesGenerated       int
	PredictionsSubmitted int
	PredictionsFailed    int
	ResultsSubmitted     int
	ResultsFailed        int
	UsersVerified        int
	Mismatches           int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
