// Package handlers provides HTTP handlers for browsing run history.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rdelgatto/packmule/internal/modules/results"
)

// Handler serves persisted runs and scenario outcomes.
type Handler struct {
	repo *results.Repository
	log  zerolog.Logger
}

// NewHandler creates a results handler.
func NewHandler(repo *results.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "results").Logger(),
	}
}

// HandleListRuns handles GET /api/runs?limit=N.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []results.Run{}
	}

	writeJSON(w, h.log, runs)
}

// RunDetail is the GET /api/runs/{id} response: the run plus all of its
// scenario outcomes.
type RunDetail struct {
	Run       results.Run              `json:"run"`
	Scenarios []results.ScenarioRecord `json:"scenarios"`
}

// HandleGetRun handles GET /api/runs/{id}.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	scenarios, err := h.repo.ListScenarios(id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to list run scenarios")
		http.Error(w, "Failed to list run scenarios", http.StatusInternalServerError)
		return
	}
	if scenarios == nil {
		scenarios = []results.ScenarioRecord{}
	}

	writeJSON(w, h.log, RunDetail{Run: *run, Scenarios: scenarios})
}

// HandleGetScenario handles GET /api/scenarios/{id}.
func (h *Handler) HandleGetScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.repo.GetScenario(id)
	if err != nil {
		h.log.Error().Err(err).Str("scenario_id", id).Msg("Failed to get scenario")
		http.Error(w, "Failed to get scenario", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "Scenario not found", http.StatusNotFound)
		return
	}

	writeJSON(w, h.log, rec)
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
