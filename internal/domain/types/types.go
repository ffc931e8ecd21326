// Package types contains read-model types shared across the application.
package types

// Standing is one row of the season leaderboard as served to clients.
type Standing struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	TotalPoints  int    `json:"total_points"`
	RacesCounted int    `json:"races_counted"`
}
