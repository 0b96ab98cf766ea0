package solver

import (
	"fmt"
	"time"

	"github.com/nextmv-io/sdk/mip"
	"github.com/rs/zerolog"
)

// Integer variables need a declared range; the formulation leaves them
// unbounded above, so translate that as a bound no realistic allocation
// reaches.
const nextmvVarUpperBound = int64(1) << 30

// NextmvEngine solves formulations with the nextmv MIP SDK on the HiGHS
// backend. It honors the time budget and maps budget-limited incumbents to
// StatusFeasible.
type NextmvEngine struct {
	log zerolog.Logger
}

// NewNextmvEngine creates a nextmv/HiGHS engine.
func NewNextmvEngine(log zerolog.Logger) *NextmvEngine {
	return &NextmvEngine{
		log: log.With().Str("engine", "nextmv").Logger(),
	}
}

// Name implements Engine.
func (e *NextmvEngine) Name() string { return "nextmv" }

// Solve implements Engine.
func (e *NextmvEngine) Solve(p *Problem, opts Options) (*Result, error) {
	start := time.Now()

	// A formulation with no variables solves trivially.
	if len(p.Vars) == 0 {
		return &Result{Status: StatusOptimal, Runtime: time.Since(start)}, nil
	}

	m := mip.NewModel()

	vars := make([]mip.Int, len(p.Vars))
	for i := range p.Vars {
		vars[i] = m.NewInt(0, nextmvVarUpperBound)
	}

	if p.Sense == Maximize {
		m.Objective().SetMaximize()
	} else {
		m.Objective().SetMinimize()
	}
	for _, term := range p.Objective {
		m.Objective().NewTerm(term.Coef, vars[term.Var])
	}

	for _, c := range p.Constraints {
		constraint := m.NewConstraint(relationToSense(c.Relation), c.RHS)
		for _, term := range c.Terms {
			constraint.NewTerm(term.Coef, vars[term.Var])
		}
	}

	solver, err := mip.NewSolver("highs", m)
	if err != nil {
		return nil, fmt.Errorf("failed to create highs solver: %w", err)
	}

	solveOptions := mip.NewSolveOptions()
	if err := solveOptions.SetMaximumDuration(opts.TimeLimit); err != nil {
		return nil, fmt.Errorf("failed to set solver time limit: %w", err)
	}
	if err := solveOptions.SetMIPGapRelative(0); err != nil {
		return nil, fmt.Errorf("failed to set solver gap: %w", err)
	}
	if opts.Verbose {
		solveOptions.SetVerbosity(mip.Medium)
	} else {
		solveOptions.SetVerbosity(mip.Off)
	}

	solution, err := solver.Solve(solveOptions)
	if err != nil {
		return nil, fmt.Errorf("solve failed: %w", err)
	}

	if solution == nil || !solution.HasValues() {
		e.log.Debug().Str("problem", p.Name).Msg("No feasible assignment found")
		return &Result{Status: StatusInfeasible, Runtime: time.Since(start)}, nil
	}

	result := &Result{
		Status:    StatusFeasible,
		Objective: solution.ObjectiveValue(),
		Values:    make([]float64, len(vars)),
		Runtime:   solution.RunTime(),
	}
	if solution.IsOptimal() {
		result.Status = StatusOptimal
	} else {
		e.log.Warn().
			Str("problem", p.Name).
			Dur("budget", opts.TimeLimit).
			Msg("Budget exhausted before optimality was proven, keeping incumbent")
	}

	for i := range vars {
		result.Values[i] = solution.Value(vars[i])
	}

	return result, nil
}

func relationToSense(rel Relation) mip.Sense {
	switch rel {
	case GreaterEqual:
		return mip.GreaterThanOrEqual
	case Equal:
		return mip.Equal
	default:
		return mip.LessThanOrEqual
	}
}
