package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/apexgp/apex-scoring/internal/simulate"
)

// Default configuration constants.
const (
	defaultNumUsers   = 1000
	defaultNumRaces   = 5
	defaultTopN       = 50
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numUsers = flag.Int("users", defaultNumUsers, "Number of users to simulate")
		numRaces = flag.Int("races", defaultNumRaces, "Number of races in the season")
		topN     = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		season   = flag.String("season", "2026", "Season identifier")
		category = flag.String("category", "f1", "Racing category")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile  = flag.String("log", "", "Log file for run output (default: loadgen_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL:  *baseURL,
		NumUsers: *numUsers,
		NumRaces: *numRaces,
		TopN:     *topN,
		Workers:  *workers,
		Timeout:  *timeout,
		Season:   *season,
		Category: *category,
		LogFile:  *logFile,
		Verbose:  *verbose,
	}

	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
