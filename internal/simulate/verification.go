package simulate

import (
	"context"
	"fmt"
	"sort"

	"github.com/apexgp/apex-scoring/internal/domain/scoring"
	"github.com/apexgp/apex-scoring/pkg/logger"
)

// verifyResults recomputes every user's season total locally and checks the
// service leaderboard against it.
func verifyResults(ctx context.Context, config *Config, races []Race, standings []Standing, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results")

	if len(standings) == 0 {
		return fmt.Errorf("no standings to verify")
	}

	expected := recomputeTotals(races)

	for _, s := range standings {
		want, ok := expected[s.UserID]
		if !ok {
			stats.Mismatches++
			logger.Get().Warn(ctx, "leaderboard lists unknown user", logger.String("userID", s.UserID))
			continue
		}
		if s.TotalPoints != want {
			stats.Mismatches++
			logger.Get().Warn(ctx, "total mismatch",
				logger.String("userID", s.UserID),
				logger.Int("got", s.TotalPoints),
				logger.Int("want", want))
			continue
		}
		if s.RacesCounted != len(races) {
			stats.Mismatches++
			logger.Get().Warn(ctx, "races counted mismatch",
				logger.String("userID", s.UserID),
				logger.Int("got", s.RacesCounted),
				logger.Int("want", len(races)))
			continue
		}
		stats.UsersVerified++
	}

	if err := verifyOrdering(standings); err != nil {
		return err
	}
	if err := verifyTopEntry(expected, standings); err != nil {
		return err
	}

	displayStandings(standings, config.Verbose)

	if stats.Mismatches > 0 {
		return fmt.Errorf("%d of %d standings diverged from local recompute", stats.Mismatches, len(standings))
	}
	logger.Get().Info(ctx, "verification completed", logger.Int("usersVerified", stats.UsersVerified))
	return nil
}

// recomputeTotals runs the scoring rules locally over every (prediction,
// result) pair and sums per-user totals.
func recomputeTotals(races []Race) map[string]int {
	totals := make(map[string]int)
	for i := range races {
		for userID, pred := range races[i].Predictions {
			bd := scoring.Score(pred, races[i].Result, races[i].HasSprint)
			totals[userID] += bd.TotalRacePoints
		}
	}
	return totals
}

// verifyOrdering checks standings arrive sorted by points descending with
// contiguous ranks.
func verifyOrdering(standings []Standing) error {
	for i := 1; i < len(standings); i++ {
		if standings[i].TotalPoints > standings[i-1].TotalPoints {
			return fmt.Errorf("leaderboard not sorted: entry %d outranks entry %d", i, i-1)
		}
		if standings[i].Rank != standings[i-1].Rank+1 {
			return fmt.Errorf("ranks not contiguous at entry %d", i)
		}
	}
	return nil
}

// verifyTopEntry checks the leaderboard leader matches the locally computed
// maximum.
func verifyTopEntry(expected map[string]int, standings []Standing) error {
	best := -1
	for _, total := range expected {
		if total > best {
			best = total
		}
	}
	if top := standings[0]; top.TotalPoints != best {
		return fmt.Errorf("top standing has %d points, local recompute expects %d", top.TotalPoints, best)
	}
	return nil
}

// displayStandings prints the fetched standings, plus score statistics when
// verbose.
func displayStandings(standings []Standing, verbose bool) {
	ctx := context.Background()
	topN := 10
	if len(standings) < topN {
		topN = len(standings)
	}

	logger.Get().Info(ctx, "top standings", logger.Int("shown", topN))
	for i := 0; i < topN; i++ {
		s := standings[i]
		logger.Get().Info(ctx, "standing",
			logger.Int("rank", s.Rank),
			logger.String("userID", s.UserID),
			logger.Int("totalPoints", s.TotalPoints),
			logger.Int("racesCounted", s.RacesCounted))
	}

	if verbose && len(standings) > 0 {
		points := make([]int, len(standings))
		sum := 0
		for i, s := range standings {
			points[i] = s.TotalPoints
			sum += s.TotalPoints
		}
		sort.Sort(sort.Reverse(sort.IntSlice(points)))
		logger.Get().Info(ctx, "score statistics",
			logger.Float64("average", float64(sum)/float64(len(points))),
			logger.Int("maximum", points[0]),
			logger.Int("minimum", points[len(points)-1]))
	}
}
