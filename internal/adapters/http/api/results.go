// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/apexgp/apex-scoring/internal/app"
	"github.com/apexgp/apex-scoring/internal/domain/model"
)

// resultRequest mirrors the payload the results pipeline posts when a
// race concludes.
type resultRequest struct {
	Category string           `json:"category"`
	Season   string           `json:"season"`
	RaceID   string           `json:"race_id"`
	Result   model.RaceResult `json:"result"`
}

func (r resultRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Category) == "":
		return errors.New("missing category")
	case strings.TrimSpace(r.Season) == "":
		return errors.New("missing season")
	case strings.TrimSpace(r.RaceID) == "":
		return errors.New("missing race_id")
	}
	return nil
}

// ResultsHandler handles race result submissions.
type ResultsHandler struct {
	deps Dependencies
}

// NewResultsHandler creates a results handler.
func NewResultsHandler(deps Dependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// HandlePostResult handles POST /results: publish the official result and
// score every prediction for the race. The response body carries the batch
// summary; a PARTIAL status lists the users to retry.
func (h *ResultsHandler) HandlePostResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	summary, err := h.deps.ProcessRaceResult(r.Context(), req.Category, req.Season, req.RaceID, req.Result)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, summary)
	case model.IsValidation(err):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, app.ErrBatchInFlight):
		writeError(w, http.StatusConflict, "busy", ErrBusy)
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "no_result", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// PredictionsHandler handles prediction submissions.
type PredictionsHandler struct {
	deps Dependencies
}

// NewPredictionsHandler creates a predictions handler.
func NewPredictionsHandler(deps Dependencies) *PredictionsHandler {
	return &PredictionsHandler{deps: deps}
}

// predictionRequest is the payload for POST /predictions.
type predictionRequest struct {
	Category   string           `json:"category"`
	Season     string           `json:"season"`
	RaceID     string           `json:"race_id"`
	Prediction model.Prediction `json:"prediction"`
}

// HandlePostPrediction handles POST /predictions.
func (h *PredictionsHandler) HandlePostPrediction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.SubmitPrediction(r.Context(), req.Category, req.Season, req.RaceID, req.Prediction); err != nil {
		if model.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
