package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/apexgp/apex-scoring/pkg/logger"
)

// Run executes a complete simulated season against a running service.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting season simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.NumUsers),
		logger.Int("races", config.NumRaces),
		logger.Int("workers", config.Workers),
		logger.String("season", config.Season),
		logger.String("category", config.Category),
		logger.String("timeout", config.Timeout.String()),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the season
	users := generateUsers(ctx, config, stats)
	races := generateRaces(ctx, config, users, stats)

	// Step 3: Submit every prediction before any result
	if err := submitPredictions(ctx, config, races, stats); err != nil {
		return fmt.Errorf("prediction submission failed: %w", err)
	}

	// Step 4: Publish results race by race; each POST scores its batch
	if err := submitResults(ctx, config, races, stats); err != nil {
		return fmt.Errorf("result submission failed: %w", err)
	}

	// Step 5: Give in-flight leaderboard applies a moment to settle
	logger.Get().Info(ctx, "waiting for leaderboard to settle")
	time.Sleep(ProcessingDelay)

	// Step 6: Fetch standings
	standings, err := fetchLeaderboard(ctx, config)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 7: Verify against a local recompute
	if err := verifyResults(ctx, config, races, standings, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Any 200 counts as healthy; the endpoint serves Prometheus metrics.
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	var successRate float64
	submitted := stats.PredictionsSubmitted + stats.PredictionsFailed
	if submitted > 0 {
		successRate = float64(stats.PredictionsSubmitted) / float64(submitted) * PercentageMultiplier
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("usersGenerated", stats.UsersGenerated),
		logger.Int("racesGenerated", stats.RacesGenerated),
		logger.Int("predictionsSubmitted", stats.PredictionsSubmitted),
		logger.Int("predictionsFailed", stats.PredictionsFailed),
		logger.Int("resultsSubmitted", stats.ResultsSubmitted),
		logger.Int("resultsFailed", stats.ResultsFailed),
		logger.Int("usersVerified", stats.UsersVerified),
		logger.Int("mismatches", stats.Mismatches),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate))
}
