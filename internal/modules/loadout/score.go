package loadout

import (
	"github.com/rs/zerolog"

	"github.com/rdelgatto/packmule/internal/modules/catalog"
	"github.com/rdelgatto/packmule/internal/solver"
)

// Outcome carries the scored allocation extracted from a solver result.
type Outcome struct {
	Assignments   []Assignment
	ActualUtility float64
	IdealUtility  float64
	Score         float64
}

// Score extracts the allocation table from a solved model and rates it.
//
// Actual utility counts realized coverage, Σ b_i·a_i·x[i][k], while ideal
// utility is the unconstrained ceiling Σ b_i·r_i over the prepared catalog.
// The self-sufficiency score is their ratio; 0 when the catalog carries no
// utility at all. A score above 1 means the model allowed more coverage
// than the requirements define, which is a modeling inconsistency and is
// logged loudly rather than passed through silently.
//
// Assignments are emitted item-major and carrier-minor in catalog order
// with 1-based carrier numbers, and only for strictly positive quantities.
func Score(prep *catalog.Prepared, vars [][]solver.VarID, res *solver.Result, log zerolog.Logger) Outcome {
	var out Outcome

	for i, item := range prep.Items {
		out.IdealUtility += item.Value * item.Requirement

		for j := range vars[i] {
			units := res.IntValue(vars[i][j])
			if units <= 0 {
				continue
			}
			out.Assignments = append(out.Assignments, Assignment{
				Item:     item.Name,
				Marine:   j + 1,
				Quantity: units,
			})
			out.ActualUtility += item.Value * item.Shareability * float64(units)
		}
	}

	if out.IdealUtility > 0 {
		out.Score = out.ActualUtility / out.IdealUtility
	}

	if out.Score > 1 {
		log.Warn().
			Float64("score", out.Score).
			Float64("actual", out.ActualUtility).
			Float64("ideal", out.IdealUtility).
			Msg("Self-sufficiency score exceeds 1, allocation covers more than the stated requirements")
	}

	return out
}
