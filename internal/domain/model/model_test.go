package model_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/apexgp/apex-scoring/internal/domain/model"
)

func TestRaceRef_Validate(t *testing.T) {
	Convey("Given a fully populated race ref", t, func() {
		ref := model.RaceRef{Category: "f1", Season: "2026", RaceID: "australia2026"}

		Convey("Then it validates and renders its composite key", func() {
			So(ref.Validate(), ShouldBeNil)
			So(ref.String(), ShouldEqual, "f1#2026#australia2026")
		})

		Convey("When a part is missing", func() {
			for _, broken := range []model.RaceRef{
				{Season: "2026", RaceID: "r1"},
				{Category: "f1", RaceID: "r1"},
				{Category: "f1", Season: "2026"},
				{Category: "  ", Season: "2026", RaceID: "r1"},
			} {
				err := broken.Validate()
				So(err, ShouldNotBeNil)
				So(model.IsValidation(err), ShouldBeTrue)
			}
		})

		Convey("When a part contains the reserved separator", func() {
			bad := model.RaceRef{Category: "f1", Season: "20#26", RaceID: "r1"}
			err := bad.Validate()

			Convey("Then it is rejected as a validation error", func() {
				So(err, ShouldNotBeNil)
				So(model.IsValidation(err), ShouldBeTrue)
			})
		})
	})
}

func TestPrediction_Validate(t *testing.T) {
	Convey("Given a well-formed prediction", t, func() {
		pred := model.Prediction{
			UserID: "user-1",
			GridOrder: []model.GridSlot{
				{Position: 1, DriverNumber: 44},
				{Position: 2, DriverNumber: 16},
			},
		}

		Convey("Then it passes validation", func() {
			So(pred.Validate(), ShouldBeNil)
		})

		Convey("When the user id is blank", func() {
			pred.UserID = "  "
			err := pred.Validate()

			So(err, ShouldNotBeNil)
			So(model.IsValidation(err), ShouldBeTrue)
		})

		Convey("When the grid is empty", func() {
			pred.GridOrder = nil
			So(pred.Validate(), ShouldNotBeNil)
		})

		Convey("When a position repeats", func() {
			pred.GridOrder = append(pred.GridOrder, model.GridSlot{Position: 1, DriverNumber: 63})
			err := pred.Validate()

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "duplicate position")
		})

		Convey("When a position is out of range", func() {
			pred.GridOrder[0].Position = 0
			So(pred.Validate(), ShouldNotBeNil)
		})

		Convey("When a driver number is out of range", func() {
			pred.GridOrder[0].DriverNumber = -4
			So(pred.Validate(), ShouldNotBeNil)
		})

		Convey("When sprint positions are present and malformed", func() {
			pred.SprintPositions = []model.GridSlot{
				{Position: 1, DriverNumber: 44},
				{Position: 1, DriverNumber: 16},
			}
			So(pred.Validate(), ShouldNotBeNil)
		})
	})
}

func TestRaceResult_Validate(t *testing.T) {
	Convey("Given a race result", t, func() {
		result := model.RaceResult{
			GridOrder: []model.GridSlot{{Position: 1, DriverNumber: 44}},
		}

		Convey("Then a populated grid validates", func() {
			So(result.Validate(), ShouldBeNil)
		})

		Convey("When the grid is empty", func() {
			So(model.RaceResult{}.Validate(), ShouldNotBeNil)
		})
	})
}

func TestLeaderboardEntry(t *testing.T) {
	Convey("Given an entry with processed races", t, func() {
		entry := model.LeaderboardEntry{
			UserID:      "user-1",
			Season:      "2026",
			TotalPoints: 120,
			ProcessedRaces: map[string]struct{}{
				"race-1": {},
			},
		}

		Convey("Then Processed reflects the set", func() {
			So(entry.Processed("race-1"), ShouldBeTrue)
			So(entry.Processed("race-2"), ShouldBeFalse)
		})

		Convey("When the entry is cloned", func() {
			clone := entry.Clone()
			clone.ProcessedRaces["race-2"] = struct{}{}

			Convey("Then mutating the clone leaves the original alone", func() {
				So(entry.Processed("race-2"), ShouldBeFalse)
				So(clone.Processed("race-1"), ShouldBeTrue)
			})
		})
	})
}

func TestValidationError(t *testing.T) {
	Convey("Given a wrapped validation error", t, func() {
		inner := &model.ValidationError{Field: "gridOrder", Reason: "empty"}
		wrapped := errors.Join(errors.New("outer"), inner)

		Convey("Then IsValidation sees through the wrapping", func() {
			So(model.IsValidation(inner), ShouldBeTrue)
			So(model.IsValidation(wrapped), ShouldBeTrue)
			So(model.IsValidation(errors.New("plain")), ShouldBeFalse)
		})
	})
}
