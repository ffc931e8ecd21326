// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/apexgp/apex-scoring/internal/adapters/repository"
	"github.com/apexgp/apex-scoring/internal/domain/model"
	"github.com/apexgp/apex-scoring/internal/domain/types"
)

// Dependencies required by HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the app service.
type Dependencies interface {
	ProcessRaceResult(ctx context.Context, category, season, raceID string, result model.RaceResult) (model.Summary, error)
	SubmitPrediction(ctx context.Context, category, season, raceID string, pred model.Prediction) error
	ReconcileUser(ctx context.Context, userID, season string) (model.LeaderboardEntry, error)
	ReconcileSeason(ctx context.Context, season string) (int, error)
	Top(ctx context.Context, season string, n int) ([]types.Standing, error)
	Standing(ctx context.Context, season, userID string) (types.Standing, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	resultsHandler     *ResultsHandler
	predictionsHandler *PredictionsHandler
	reconcileHandler   *ReconcileHandler
	leaderboardHandler *LeaderboardHandler
	standingHandler    *StandingHandler
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		resultsHandler:     NewResultsHandler(deps),
		predictionsHandler: NewPredictionsHandler(deps),
		reconcileHandler:   NewReconcileHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		standingHandler:    NewStandingHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/results", MetricsMiddleware(s.resultsHandler.HandlePostResult, "results"))
	mux.HandleFunc("/predictions", MetricsMiddleware(s.predictionsHandler.HandlePostPrediction, "predictions"))
	mux.HandleFunc("/reconcile", MetricsMiddleware(s.reconcileHandler.HandlePostReconcile, "reconcile"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/standing/", MetricsMiddleware(s.standingHandler.HandleGetStanding, "standing"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
