package loadout

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rdelgatto/packmule/internal/modules/catalog"
	"github.com/rdelgatto/packmule/internal/modules/params"
	"github.com/rdelgatto/packmule/internal/solver"
)

// Service runs the full pipeline for one scenario: prepare the catalog,
// build the integer program, solve it, and score the allocation. It is
// stateless between calls and safe for concurrent use, so the sweep driver
// shares one instance across its workers.
type Service struct {
	engine    solver.Engine
	timeLimit time.Duration
	log       zerolog.Logger
}

// NewService creates a loadout service on top of the given solver engine.
// timeLimit bounds each solve; the engine keeps the best incumbent when
// the budget expires before optimality is proven.
func NewService(engine solver.Engine, timeLimit time.Duration, log zerolog.Logger) *Service {
	return &Service{
		engine:    engine,
		timeLimit: timeLimit,
		log:       log.With().Str("component", "loadout").Logger(),
	}
}

// Run solves one scenario against the raw catalog items. Infeasibility is
// an outcome, not an error: the returned report carries the status and the
// caller decides how to record it. Errors are reserved for invalid inputs
// and engine failures.
func (s *Service) Run(items []catalog.Item, scn Scenario, p params.Params) (*Report, error) {
	s.log.Info().
		Str("scenario", scn.Label).
		Int("squad_size", scn.SquadSize).
		Int("duration_days", scn.Duration).
		Msg("Solving squad loadout")

	prep, err := catalog.Prepare(items, scn.SquadSize, scn.Duration, p, s.log)
	if err != nil {
		return nil, fmt.Errorf("preparing catalog for %s: %w", scn.Label, err)
	}
	if len(prep.Items) == 0 {
		s.log.Warn().
			Str("scenario", scn.Label).
			Msg("Catalog emptied by feasibility filtering, nothing to allocate")
	}

	prob, vars := Build(prep, p)

	res, err := s.engine.Solve(prob, solver.Options{TimeLimit: s.timeLimit})
	if err != nil {
		return nil, fmt.Errorf("solving %s: %w", scn.Label, err)
	}

	report := &Report{
		ID:            uuid.NewString(),
		Scenario:      scn,
		Status:        res.Status,
		ItemsRetained: len(prep.Items),
		ItemsDropped:  len(prep.Dropped),
		SolveTime:     res.Runtime,
	}

	if res.Status == solver.StatusInfeasible {
		s.log.Warn().
			Str("scenario", scn.Label).
			Int("squad_size", scn.SquadSize).
			Int("duration_days", scn.Duration).
			Msg("No feasible allocation exists for this scenario")
		return report, nil
	}

	outcome := Score(prep, vars, res, s.log)

	report.Objective = res.Objective
	report.ActualUtility = outcome.ActualUtility
	report.IdealUtility = outcome.IdealUtility
	report.Score = outcome.Score
	report.Assignments = outcome.Assignments

	s.log.Info().
		Str("scenario", scn.Label).
		Str("status", res.Status.String()).
		Float64("objective", report.Objective).
		Float64("score", report.Score).
		Int("assignments", len(report.Assignments)).
		Dur("solve_time", res.Runtime).
		Msgf("Objective: %.2f | Self-Sufficiency Score: %.3f (%.1f%%)",
			report.Objective, report.Score, report.Score*100)

	return report, nil
}
