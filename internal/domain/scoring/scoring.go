// Package scoring computes the point breakdown for one prediction against
// one official race result. Score is pure and deterministic: no I/O, no
// clock, no shared state, so any number of predictions can be scored
// concurrently.
package scoring

import (
	"github.com/apexgp/apex-scoring/internal/domain/model"
)

// Point values for the diff-tier rule: exact position, off by one, off by two.
const (
	exactPoints  = 10
	offByOne     = 5
	offByTwo     = 2
	extraPick    = 10
	winnerBonus  = 10
	podiumBonus  = 30
	topSixBonus  = 60
	perfectBonus = 100
)

// Score maps a prediction and the official result to a full breakdown.
// hasSprint gates sprint scoring; sprint data contributes nothing unless the
// flag is set and both sides actually carry sprint positions.
func Score(pred model.Prediction, result model.RaceResult, hasSprint bool) model.Breakdown {
	bd := model.Breakdown{
		Drivers: initDrivers(pred, result, hasSprint),
	}

	actualGrid := positionsByDriver(result.GridOrder)
	scoreDiffTier(bd.Drivers, pred.GridOrder, actualGrid, model.CategoryGridPosition)

	if hasSprint && len(result.SprintPositions) > 0 && len(pred.SprintPositions) > 0 {
		actualSprint := positionsByDriver(result.SprintPositions)
		scoreDiffTier(bd.Drivers, pred.SprintPositions, actualSprint, model.CategorySprintPosition)
	}

	scoreExtraPicks(&bd, pred.Extras, result.Extras)

	bd.BonusPoints = bonusPoints(pred.GridOrder, actualGrid)

	total := bd.ExtraPoints + bd.BonusPoints
	for _, dp := range bd.Drivers {
		total += dp.Points
	}
	bd.TotalRacePoints = total
	return bd
}

// initDrivers seeds a zero record for every driver referenced by either
// side, so the breakdown is total over all mentioned drivers even when a
// driver never matches anything.
func initDrivers(pred model.Prediction, result model.RaceResult, hasSprint bool) map[int]model.DriverPoints {
	drivers := make(map[int]model.DriverPoints)
	seed := func(slots []model.GridSlot) {
		for _, s := range slots {
			if s.DriverNumber == 0 {
				continue
			}
			if _, ok := drivers[s.DriverNumber]; !ok {
				drivers[s.DriverNumber] = model.DriverPoints{
					ByCategory: make(map[model.ScoreCategory]int),
				}
			}
		}
	}
	seed(result.GridOrder)
	seed(pred.GridOrder)
	if hasSprint {
		seed(result.SprintPositions)
		seed(pred.SprintPositions)
	}
	return drivers
}

func positionsByDriver(slots []model.GridSlot) map[int]int {
	byDriver := make(map[int]int, len(slots))
	for _, s := range slots {
		byDriver[s.DriverNumber] = s.Position
	}
	return byDriver
}

// scoreDiffTier awards 10/5/2 for position misses of 0/1/2. A driver absent
// from the actual order earns nothing for the category; a driver three or
// more positions off records an explicit zero, so the breakdown keeps the
// evaluated-but-unscored distinction.
func scoreDiffTier(drivers map[int]model.DriverPoints, predicted []model.GridSlot, actual map[int]int, cat model.ScoreCategory) {
	for _, p := range predicted {
		if p.DriverNumber == 0 {
			continue
		}
		actualPos, ok := actual[p.DriverNumber]
		if !ok {
			continue
		}
		diff := actualPos - p.Position
		if diff < 0 {
			diff = -diff
		}
		var pts int
		switch diff {
		case 0:
			pts = exactPoints
		case 1:
			pts = offByOne
		case 2:
			pts = offByTwo
		}
		dp := drivers[p.DriverNumber]
		dp.Points += pts
		dp.ByCategory[cat] = pts
		drivers[p.DriverNumber] = dp
	}
}

// scoreExtraPicks awards 10 points per exactly-matched pick. Pole and
// fastest lap name drivers and are attributed to them; positionsGained is a
// count, so its award lands in the breakdown's unassigned extra bucket.
func scoreExtraPicks(bd *model.Breakdown, pred, actual model.ExtraPicks) {
	attribute := func(cat model.ScoreCategory, p, a *int) {
		if p == nil || a == nil || *p != *a {
			return
		}
		dp, ok := bd.Drivers[*a]
		if !ok {
			return
		}
		dp.Points += extraPick
		dp.ByCategory[cat] = extraPick
		bd.Drivers[*a] = dp
	}
	attribute(model.CategoryPole, pred.Pole, actual.Pole)
	attribute(model.CategoryFastestLap, pred.FastestLap, actual.FastestLap)

	if pred.PositionsGained != nil && actual.PositionsGained != nil &&
		*pred.PositionsGained == *actual.PositionsGained {
		bd.ExtraPoints += extraPick
	}
}

// bonusPoints scores whole-grid accuracy. A position is correct iff the
// predicted driver at that slot finished exactly there. All four bonus
// tiers are independently additive.
func bonusPoints(predicted []model.GridSlot, actual map[int]int) int {
	predByPos := make(map[int]int, len(predicted))
	for _, p := range predicted {
		if p.DriverNumber != 0 {
			predByPos[p.Position] = p.DriverNumber
		}
	}
	correct := func(pos int) bool {
		driver, ok := predByPos[pos]
		if !ok {
			return false
		}
		actualPos, ok := actual[driver]
		return ok && actualPos == pos
	}

	correctTopTen := 0
	for pos := 1; pos <= 10; pos++ {
		if correct(pos) {
			correctTopTen++
		}
	}

	total := 0
	if correct(1) {
		total += winnerBonus
	}
	if correct(1) && correct(2) && correct(3) {
		total += podiumBonus
	}
	if correctTopTen >= 6 {
		total += topSixBonus
	}
	if correctTopTen == 10 {
		total += perfectBonus
	}
	return total
}
