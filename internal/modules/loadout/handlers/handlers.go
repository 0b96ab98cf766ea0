// Package handlers provides HTTP handlers for ad-hoc scenario solves.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rdelgatto/packmule/internal/modules/catalog"
	"github.com/rdelgatto/packmule/internal/modules/loadout"
	"github.com/rdelgatto/packmule/internal/modules/params"
)

// Handler serves single-scenario solve requests outside the sweep grid.
type Handler struct {
	service    *loadout.Service
	datasets   map[string]string // label -> csv path
	paramsFile string
	log        zerolog.Logger
}

// NewHandler creates a loadout handler. datasets maps the labels clients
// may request to their catalog files.
func NewHandler(service *loadout.Service, datasets map[string]string, paramsFile string, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		datasets:   datasets,
		paramsFile: paramsFile,
		log:        log.With().Str("handler", "loadout").Logger(),
	}
}

// SolveRequest is the body of POST /api/solve.
type SolveRequest struct {
	Dataset   string `json:"dataset"`
	SquadSize int    `json:"squadSize"`
	Duration  int    `json:"duration"`
}

// SolveResponse wraps a report with its solve status for clients.
type SolveResponse struct {
	*loadout.Report
	Status  string `json:"status"`
	Optimal bool   `json:"optimal"`
}

// HandleSolve handles POST /api/solve: one scenario, solved synchronously.
func (h *Handler) HandleSolve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SquadSize < 1 || req.Duration < 1 {
		http.Error(w, "squadSize and duration must be positive", http.StatusBadRequest)
		return
	}

	path, ok := h.datasets[req.Dataset]
	if !ok {
		http.Error(w, "Unknown dataset", http.StatusNotFound)
		return
	}

	items, err := catalog.LoadFile(path)
	if err != nil {
		h.log.Error().Err(err).Str("dataset", req.Dataset).Msg("Failed to load dataset")
		http.Error(w, "Failed to load dataset", http.StatusInternalServerError)
		return
	}

	p, err := params.LoadFile(h.paramsFile, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to resolve parameters")
		http.Error(w, "Failed to resolve parameters", http.StatusInternalServerError)
		return
	}

	scn := loadout.Scenario{Label: req.Dataset, SquadSize: req.SquadSize, Duration: req.Duration}
	report, err := h.service.Run(items, scn, p)
	if err != nil {
		h.log.Error().Err(err).Str("dataset", req.Dataset).Msg("Solve failed")
		http.Error(w, "Solve failed", http.StatusInternalServerError)
		return
	}

	resp := SolveResponse{
		Report:  report,
		Status:  report.StatusString(),
		Optimal: report.Optimal(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode solve response")
	}
}
