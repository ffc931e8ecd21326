package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/apexgp/apex-scoring/internal/adapters/http/api"
	"github.com/apexgp/apex-scoring/internal/adapters/repository"
	"github.com/apexgp/apex-scoring/internal/app"
	"github.com/apexgp/apex-scoring/internal/domain/model"
	"github.com/apexgp/apex-scoring/internal/domain/types"
)

// stubService scripts handler behavior per test case.
type stubService struct {
	summary    model.Summary
	processErr error

	submitErr error

	entry        model.LeaderboardEntry
	reconcileErr error
	repaired     int

	standings  []types.Standing
	topErr     error
	standing   types.Standing
	standErr   error
	lastSeason string
	lastLimit  int
}

func (s *stubService) ProcessRaceResult(_ context.Context, _, _, _ string, _ model.RaceResult) (model.Summary, error) {
	return s.summary, s.processErr
}

func (s *stubService) SubmitPrediction(_ context.Context, _, _, _ string, _ model.Prediction) error {
	return s.submitErr
}

func (s *stubService) ReconcileUser(_ context.Context, _, _ string) (model.LeaderboardEntry, error) {
	return s.entry, s.reconcileErr
}

func (s *stubService) ReconcileSeason(_ context.Context, _ string) (int, error) {
	return s.repaired, s.reconcileErr
}

func (s *stubService) Top(_ context.Context, season string, n int) ([]types.Standing, error) {
	s.lastSeason = season
	s.lastLimit = n
	return s.standings, s.topErr
}

func (s *stubService) Standing(_ context.Context, _, _ string) (types.Standing, error) {
	return s.standing, s.standErr
}

func (s *stubService) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newMux(svc *stubService) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, svc, 100).Register(context.Background(), mux)
	return mux
}

func doJSON(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const resultBody = `{
	"category": "f1",
	"season": "2026",
	"race_id": "race-1",
	"result": {"gridOrder": [{"position": 1, "driverNumber": 44}]}
}`

func TestResultsEndpoint(t *testing.T) {
	Convey("Given the results endpoint", t, func() {
		svc := &stubService{summary: model.Summary{
			RaceID: "race-1", UsersScored: 3, Status: model.StatusOK,
		}}
		mux := newMux(svc)

		Convey("When a valid result is posted", func() {
			rec := doJSON(mux, http.MethodPost, "/results", resultBody)

			Convey("Then the summary comes back with 200", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got model.Summary
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got.UsersScored, ShouldEqual, 3)
				So(got.Status, ShouldEqual, model.StatusOK)
			})
		})

		Convey("When the body is not JSON", func() {
			rec := doJSON(mux, http.MethodPost, "/results", "{not json")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a required field is missing", func() {
			rec := doJSON(mux, http.MethodPost, "/results", `{"category":"f1","season":"2026"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service rejects the payload as invalid", func() {
			svc.processErr = &model.ValidationError{Field: "gridOrder", Reason: "empty"}
			rec := doJSON(mux, http.MethodPost, "/results", resultBody)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a batch for the race is already running", func() {
			svc.processErr = app.ErrBatchInFlight
			rec := doJSON(mux, http.MethodPost, "/results", resultBody)

			Convey("Then the request conflicts", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When the race has no result", func() {
			svc.summary = model.Summary{RaceID: "race-1", Status: model.StatusNoResult}
			svc.processErr = repository.ErrNotFound
			rec := doJSON(mux, http.MethodPost, "/results", resultBody)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the batch fails on a store outage", func() {
			svc.summary = model.Summary{RaceID: "race-1", Status: model.StatusNoResult}
			svc.processErr = errors.New("store throttled")
			rec := doJSON(mux, http.MethodPost, "/results", resultBody)

			Convey("Then the failure is not reported as a missing result", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When the method is wrong", func() {
			rec := doJSON(mux, http.MethodGet, "/results", "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPredictionsEndpoint(t *testing.T) {
	Convey("Given the predictions endpoint", t, func() {
		svc := &stubService{}
		mux := newMux(svc)
		body := `{
			"category": "f1",
			"season": "2026",
			"race_id": "race-1",
			"prediction": {"userId": "user-1", "gridOrder": [{"position": 1, "driverNumber": 44}]}
		}`

		Convey("When a prediction is posted", func() {
			rec := doJSON(mux, http.MethodPost, "/predictions", body)

			Convey("Then it is accepted", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When the prediction fails validation", func() {
			svc.submitErr = &model.ValidationError{Field: "userId", Reason: "missing"}
			rec := doJSON(mux, http.MethodPost, "/predictions", body)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestReconcileEndpoint(t *testing.T) {
	Convey("Given the reconcile endpoint", t, func() {
		svc := &stubService{
			entry:    model.LeaderboardEntry{UserID: "user-1", TotalPoints: 210},
			repaired: 4,
		}
		mux := newMux(svc)

		Convey("When a user reconcile is requested", func() {
			rec := doJSON(mux, http.MethodPost, "/reconcile", `{"user_id":"user-1","season":"2026"}`)

			Convey("Then the repaired entry is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got model.LeaderboardEntry
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got.TotalPoints, ShouldEqual, 210)
			})
		})

		Convey("When no user is named", func() {
			rec := doJSON(mux, http.MethodPost, "/reconcile", `{"season":"2026"}`)

			Convey("Then the season sweep count is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got map[string]int
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got["repaired"], ShouldEqual, 4)
			})
		})

		Convey("When the season is missing", func() {
			rec := doJSON(mux, http.MethodPost, "/reconcile", `{"user_id":"user-1"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestLeaderboardEndpoint(t *testing.T) {
	Convey("Given the leaderboard endpoint", t, func() {
		svc := &stubService{standings: []types.Standing{
			{Rank: 1, UserID: "alice", TotalPoints: 300, RacesCounted: 3},
			{Rank: 2, UserID: "bob", TotalPoints: 120, RacesCounted: 3},
		}}
		mux := newMux(svc)

		Convey("When the leaderboard is fetched", func() {
			rec := doJSON(mux, http.MethodGet, "/leaderboard?season=2026&limit=25", "")

			Convey("Then the standings are served in order", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got []types.Standing
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].UserID, ShouldEqual, "alice")
			})

			Convey("And the query parameters reach the service", func() {
				So(svc.lastSeason, ShouldEqual, "2026")
				So(svc.lastLimit, ShouldEqual, 25)
			})
		})

		Convey("When no limit is given", func() {
			rec := doJSON(mux, http.MethodGet, "/leaderboard?season=2026", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(svc.lastLimit, ShouldEqual, 10)
		})

		Convey("When the limit is not a number", func() {
			rec := doJSON(mux, http.MethodGet, "/leaderboard?limit=abc", "")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit exceeds the cap", func() {
			rec := doJSON(mux, http.MethodGet, "/leaderboard?limit=101", "")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStandingEndpoint(t *testing.T) {
	Convey("Given the standing endpoint", t, func() {
		svc := &stubService{standing: types.Standing{
			Rank: 2, UserID: "bob", TotalPoints: 120, RacesCounted: 3,
		}}
		mux := newMux(svc)

		Convey("When an existing user is fetched", func() {
			rec := doJSON(mux, http.MethodGet, "/standing/bob?season=2026", "")

			Convey("Then the standing is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got types.Standing
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got.Rank, ShouldEqual, 2)
				So(got.UserID, ShouldEqual, "bob")
			})
		})

		Convey("When the user has no entry", func() {
			svc.standErr = repository.ErrNotFound
			rec := doJSON(mux, http.MethodGet, "/standing/ghost", "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the user id is empty", func() {
			rec := doJSON(mux, http.MethodGet, "/standing/", "")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatsAndHealthEndpoints(t *testing.T) {
	Convey("Given the observability endpoints", t, func() {
		mux := newMux(&stubService{})

		Convey("When stats are fetched", func() {
			rec := doJSON(mux, http.MethodGet, "/stats", "")

			Convey("Then the stats snapshot is served as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got map[string]interface{}
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got["started"], ShouldEqual, true)
			})
		})

		Convey("When health is probed", func() {
			rec := doJSON(mux, http.MethodGet, "/healthz", "")

			Convey("Then the metrics exposition answers", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "apex_scoring")
			})
		})
	})
}
