// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// reconcileRequest triggers a repair. With a user_id it recomputes one
// entry; without, it sweeps the whole season.
type reconcileRequest struct {
	UserID string `json:"user_id,omitempty"`
	Season string `json:"season"`
}

// ReconcileHandler handles reconciliation requests.
type ReconcileHandler struct {
	deps Dependencies
}

// NewReconcileHandler creates a reconcile handler.
func NewReconcileHandler(deps Dependencies) *ReconcileHandler {
	return &ReconcileHandler{deps: deps}
}

// HandlePostReconcile handles POST /reconcile.
func (h *ReconcileHandler) HandlePostReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.Season) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing season"))
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		repaired, err := h.deps.ReconcileSeason(r.Context(), req.Season)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"repaired": repaired})
		return
	}

	entry, err := h.deps.ReconcileUser(r.Context(), req.UserID, req.Season)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
