// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults first, then optional YAML file, then APEX_-prefixed env vars.
// - Fields carry koanf tags matching their flat env key.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory scoring task queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// RankCeiling is the maximum encodable season total. Must stay
	// comfortably above any achievable score.
	RankCeiling int `koanf:"rank_ceiling"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DefaultSeason is assumed by reads that omit a season.
	DefaultSeason string `koanf:"default_season"`

	// RetryInitialMS, RetryMaxMS and RetryAttempts shape the backoff used
	// on transient store errors.
	RetryInitialMS int    `koanf:"retry_initial_ms"`
	RetryMaxMS     int    `koanf:"retry_max_ms"`
	RetryAttempts  uint64 `koanf:"retry_attempts"`

	// StorePageSize emulates the page limit of the backing store.
	StorePageSize int `koanf:"store_page_size"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		RankCeiling:         9_999_999,
		MaxLeaderboardLimit: 100,
		DefaultSeason:       "2026",
		RetryInitialMS:      50,
		RetryMaxMS:          2000,
		RetryAttempts:       5,
		StorePageSize:       100,
	}
}
