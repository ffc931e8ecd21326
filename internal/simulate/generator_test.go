package simulate

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerator(t *testing.T) {
	Convey("Given a small simulation config", t, func() {
		ctx := context.Background()
		config := &Config{NumUsers: 8, NumRaces: 4}
		stats := &Stats{}

		users := generateUsers(ctx, config, stats)
		races := generateRaces(ctx, config, users, stats)

		Convey("Then users are unique and counted", func() {
			So(len(users), ShouldEqual, 8)
			seen := make(map[string]struct{}, len(users))
			for _, u := range users {
				seen[u] = struct{}{}
			}
			So(len(seen), ShouldEqual, 8)
			So(stats.UsersGenerated, ShouldEqual, 8)
		})

		Convey("Then every race carries a well-formed result", func() {
			So(len(races), ShouldEqual, 4)
			So(stats.RacesGenerated, ShouldEqual, 4)

			for _, race := range races {
				So(race.RaceID, ShouldNotBeBlank)
				So(race.Result.Validate(), ShouldBeNil)
				So(len(race.Result.GridOrder), ShouldEqual, gridDepth)

				positions := make(map[int]struct{}, gridDepth)
				drivers := make(map[int]struct{}, gridDepth)
				for _, slot := range race.Result.GridOrder {
					So(slot.Position, ShouldBeBetweenOrEqual, 1, gridDepth)
					So(slot.DriverNumber, ShouldBeBetweenOrEqual, 1, driverCount)
					positions[slot.Position] = struct{}{}
					drivers[slot.DriverNumber] = struct{}{}
				}
				So(len(positions), ShouldEqual, gridDepth)
				So(len(drivers), ShouldEqual, gridDepth)

				So(race.Result.Extras.Pole, ShouldNotBeNil)
				So(*race.Result.Extras.Pole, ShouldEqual, race.Result.GridOrder[0].DriverNumber)
			}
		})

		Convey("Then sprint weekends appear on every third race", func() {
			So(races[0].HasSprint, ShouldBeTrue)
			So(races[1].HasSprint, ShouldBeFalse)
			So(races[3].HasSprint, ShouldBeTrue)
			for _, race := range races {
				if race.HasSprint {
					So(len(race.Result.SprintPositions), ShouldEqual, gridDepth)
				} else {
					So(race.Result.SprintPositions, ShouldBeEmpty)
				}
			}
		})

		Convey("Then every prediction validates", func() {
			for _, race := range races {
				So(len(race.Predictions), ShouldEqual, len(users))
				for userID, pred := range race.Predictions {
					So(pred.UserID, ShouldEqual, userID)
					So(pred.Validate(), ShouldBeNil)
					if !race.HasSprint {
						So(pred.SprintPositions, ShouldBeEmpty)
					}
				}
			}
		})
	})
}
