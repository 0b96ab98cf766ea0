// Package loadout is the core of packmule: it builds the multiple-knapsack
// integer program for one scenario, solves it through the engine contract,
// and scores the resulting allocation against the theoretical ideal.
//
// The formulation follows Simon, Apte and Regnier, "An Application of the
// Multiple Knapsack Problem: The Self-Sufficient Marine" (EJOR, 2017):
// items are distributed among K identical carriers under per-carrier weight
// and volume capacities, per-item availability ceilings, minimum-coverage
// floors, and one-unit-per-carrier caps on non-transferable items.
package loadout

import (
	"time"

	"github.com/rdelgatto/packmule/internal/solver"
)

// Scenario identifies one solve: a dataset label plus the squad size and
// mission duration the catalog is scaled for.
type Scenario struct {
	Label     string `json:"label"`
	SquadSize int    `json:"squadSize"`
	Duration  int    `json:"duration"`
}

// Assignment is one positive allocation cell: carrier Marine (1-based)
// carries Quantity physical units of Item.
type Assignment struct {
	Item     string `json:"item"`
	Marine   int    `json:"marine"`
	Quantity int    `json:"quantity"`
}

// Report is the full outcome of one scenario solve. Objective is the
// solver's penalty-netted value; ActualUtility is the realized utility
// Σ b·a·x. The two measure different things and must not be conflated.
type Report struct {
	ID       string        `json:"id"`
	Scenario Scenario      `json:"scenario"`
	Status   solver.Status `json:"-"`

	Objective     float64 `json:"objective"`
	ActualUtility float64 `json:"actualUtility"`
	IdealUtility  float64 `json:"idealUtility"`
	Score         float64 `json:"score"`

	Assignments []Assignment `json:"assignments"`

	ItemsRetained int           `json:"itemsRetained"`
	ItemsDropped  int           `json:"itemsDropped"`
	SolveTime     time.Duration `json:"solveTime"`
}

// Optimal reports whether the engine proved optimality within the budget.
// A false value on a solved report means the score may understate what a
// longer solve could reach.
func (r *Report) Optimal() bool {
	return r.Status == solver.StatusOptimal
}

// Infeasible reports whether no valid allocation exists, as opposed to a
// solved model that allocates nothing.
func (r *Report) Infeasible() bool {
	return r.Status == solver.StatusInfeasible
}

// StatusString exposes the solve status for serialization.
func (r *Report) StatusString() string {
	return r.Status.String()
}
