package simulate

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/apexgp/apex-scoring/internal/domain/model"
	"github.com/apexgp/apex-scoring/pkg/logger"
)

// Grid shape constants.
const (
	driverCount = 20 // car numbers 1..driverCount
	gridDepth   = 10 // positions carried by results and predictions
)

// Prediction accuracy tiers. Each user is assigned one; the tier decides
// how many random swaps separate their prediction from the real outcome.
const (
	tierCount     = 4
	caseOracle    = 0 // near-perfect prediction
	caseSharp     = 1
	caseCasual    = 2
	caseScattered = 3

	oracleSwaps    = 1
	sharpSwaps     = 3
	casualSwaps    = 6
	scatteredSwaps = 12
)

const extraPickChanceDivisor = 3 // roughly one in three users names each extra

// getRandomInt returns a uniform int in [0, n) using crypto/rand.
func getRandomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateUsers creates unique user IDs.
func generateUsers(ctx context.Context, config *Config, stats *Stats) []string {
	logger.Get().Info(ctx, "generating users", logger.Int("numUsers", config.NumUsers))

	users := make([]string, config.NumUsers)
	for i := range users {
		users[i] = uuid.New().String()
	}
	stats.UsersGenerated = len(users)
	return users
}

// generateRaces creates a synthetic season: one official result per race
// plus a prediction from every user.
func generateRaces(ctx context.Context, config *Config, users []string, stats *Stats) []Race {
	logger.Get().Info(ctx, "generating races", logger.Int("numRaces", config.NumRaces))

	races := make([]Race, config.NumRaces)
	for i := range races {
		hasSprint := i%3 == 0 // sprint weekends are the minority
		result := generateResult(hasSprint)

		predictions := make(map[string]model.Prediction, len(users))
		for _, userID := range users {
			predictions[userID] = generatePrediction(userID, result)
		}

		races[i] = Race{
			RaceID:      "race_" + strconv.Itoa(i+1) + "_" + uuid.New().String()[:8],
			HasSprint:   hasSprint,
			Result:      result,
			Predictions: predictions,
		}
	}
	stats.RacesGenerated = len(races)
	return races
}

// generateResult builds a random official outcome.
func generateResult(hasSprint bool) model.RaceResult {
	grid := randomGrid()
	result := model.RaceResult{
		GridOrder: grid,
		HasSprint: hasSprint,
	}
	if hasSprint {
		result.SprintPositions = randomGrid()
	}

	pole := grid[0].DriverNumber
	fastest := grid[getRandomInt(gridDepth)].DriverNumber
	gained := getRandomInt(6)
	result.Extras = model.ExtraPicks{
		Pole:            &pole,
		FastestLap:      &fastest,
		PositionsGained: &gained,
	}
	return result
}

// generatePrediction perturbs the official result by a tier-dependent
// number of swaps so accuracy varies across the field.
func generatePrediction(userID string, result model.RaceResult) model.Prediction {
	swaps := swapsForTier(getRandomInt(tierCount))

	pred := model.Prediction{
		UserID:      userID,
		GridOrder:   shuffledCopy(result.GridOrder, swaps),
		SubmittedAt: time.Now().UTC(),
	}
	if result.HasSprint {
		pred.SprintPositions = shuffledCopy(result.SprintPositions, swaps)
	}

	if getRandomInt(extraPickChanceDivisor) == 0 {
		pole := pickDriver(result.Extras.Pole)
		pred.Extras.Pole = &pole
	}
	if getRandomInt(extraPickChanceDivisor) == 0 {
		fastest := pickDriver(result.Extras.FastestLap)
		pred.Extras.FastestLap = &fastest
	}
	if getRandomInt(extraPickChanceDivisor) == 0 {
		gained := getRandomInt(6)
		pred.Extras.PositionsGained = &gained
	}
	return pred
}

func swapsForTier(tier int) int {
	switch tier {
	case caseOracle:
		return oracleSwaps
	case caseSharp:
		return sharpSwaps
	case caseCasual:
		return casualSwaps
	case caseScattered:
		return scatteredSwaps
	default:
		return casualSwaps
	}
}

// randomGrid returns gridDepth slots filled by a random draw from the
// driver pool, positions 1..gridDepth.
func randomGrid() []model.GridSlot {
	pool := make([]int, driverCount)
	for i := range pool {
		pool[i] = i + 1
	}
	for i := len(pool) - 1; i > 0; i-- {
		j := getRandomInt(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}

	grid := make([]model.GridSlot, gridDepth)
	for i := 0; i < gridDepth; i++ {
		grid[i] = model.GridSlot{Position: i + 1, DriverNumber: pool[i]}
	}
	return grid
}

// shuffledCopy copies slots and applies n random driver swaps, keeping
// positions 1..gridDepth intact.
func shuffledCopy(slots []model.GridSlot, n int) []model.GridSlot {
	out := make([]model.GridSlot, len(slots))
	copy(out, slots)
	for i := 0; i < n; i++ {
		a := getRandomInt(len(out))
		b := getRandomInt(len(out))
		out[a].DriverNumber, out[b].DriverNumber = out[b].DriverNumber, out[a].DriverNumber
	}
	return out
}

// pickDriver returns the actual driver half the time, a random one
// otherwise, so extra picks land sometimes but not always.
func pickDriver(actual *int) int {
	if actual != nil && getRandomInt(2) == 0 {
		return *actual
	}
	return getRandomInt(driverCount) + 1
}
