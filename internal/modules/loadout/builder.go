package loadout

import (
	"fmt"

	"github.com/rdelgatto/packmule/internal/modules/catalog"
	"github.com/rdelgatto/packmule/internal/modules/params"
	"github.com/rdelgatto/packmule/internal/solver"
)

// Build translates a prepared catalog into the integer program.
//
// Decision variables: x[i][k] ≥ 0, integer, the units of item i assigned
// to carrier k.
//
// Objective (maximize):
//
//	Σ_i coef_i·Σ_k x[i][k]  −  β·Σ_{i,k} c_i·x[i][k]  −  γ·Σ_{i,k} v_i·x[i][k]
//
// where coef_i = b_i·a_i/r_i rewards coverage, β penalizes carried weight
// and γ penalizes carried volume.
//
// Constraints:
//
//	Σ_i c_i·x[i][k] ≤ w              for every carrier k   (weight capacity)
//	Σ_i v_i·x[i][k] ≤ q              for every carrier k   (volume capacity)
//	Σ_k x[i][k] ≤ ⌊r_i/a_i⌋          for every item i      (availability)
//	Σ_k a_i·x[i][k] ≥ l_i            for every item i      (minimum coverage)
//	(1−t_i)·x[i][k] ≤ 1              for every item, carrier (transferability)
//
// The transferability rows are vacuous when t_i = 1 since the coefficient
// collapses to zero; for t_i = 0 they cap each carrier at one unit.
//
// The returned matrix maps item index i and carrier index k to the variable
// identifier for x[i][k], in catalog order, so that identical inputs always
// produce an identical formulation.
func Build(prep *catalog.Prepared, p params.Params) (*solver.Problem, [][]solver.VarID) {
	n := len(prep.Items)
	k := prep.SquadSize

	prob := solver.NewProblem("squad_loadout", solver.Maximize)

	vars := make([][]solver.VarID, n)
	for i, item := range prep.Items {
		vars[i] = make([]solver.VarID, k)
		for j := 0; j < k; j++ {
			id := prob.AddIntVar(fmt.Sprintf("x_%d_%d", i, j))
			vars[i][j] = id

			prob.AddObjectiveTerm(item.Coef, id)
			prob.AddObjectiveTerm(-p.WeightPenalty*item.Weight, id)
			prob.AddObjectiveTerm(-p.VolumePenalty*item.Volume, id)
		}
	}

	for j := 0; j < k; j++ {
		weight := prob.NewConstraint(fmt.Sprintf("weight_cap_%d", j), solver.LessEqual, prep.WeightCap)
		volume := prob.NewConstraint(fmt.Sprintf("volume_cap_%d", j), solver.LessEqual, prep.VolumeCap)
		for i, item := range prep.Items {
			weight.NewTerm(item.Weight, vars[i][j])
			volume.NewTerm(item.Volume, vars[i][j])
		}
	}

	for i, item := range prep.Items {
		ceiling := prob.NewConstraint(fmt.Sprintf("availability_%d", i), solver.LessEqual, float64(item.MaxUnits()))
		coverage := prob.NewConstraint(fmt.Sprintf("coverage_%d", i), solver.GreaterEqual, item.MinCoverage)
		for j := 0; j < k; j++ {
			ceiling.NewTerm(1, vars[i][j])
			coverage.NewTerm(item.Shareability, vars[i][j])
		}

		for j := 0; j < k; j++ {
			transfer := prob.NewConstraint(fmt.Sprintf("transfer_%d_%d", i, j), solver.LessEqual, 1)
			transfer.NewTerm(1-float64(item.Transferable), vars[i][j])
		}
	}

	return prob, vars
}
