package solver

import (
	"fmt"
	"strings"
	"time"

	"github.com/lukpank/go-glpk/glpk"
	"github.com/rs/zerolog"
)

// GLPKEngine solves formulations with the GNU Linear Programming Kit through
// cgo bindings. The binding exposes no time-limit knob, so the budget is not
// enforced; every solve runs to completion.
type GLPKEngine struct {
	log zerolog.Logger
}

// NewGLPKEngine creates a GLPK engine.
func NewGLPKEngine(log zerolog.Logger) *GLPKEngine {
	return &GLPKEngine{
		log: log.With().Str("engine", "glpk").Logger(),
	}
}

// Name implements Engine.
func (e *GLPKEngine) Name() string { return "glpk" }

// Solve implements Engine.
func (e *GLPKEngine) Solve(p *Problem, opts Options) (*Result, error) {
	start := time.Now()

	if len(p.Vars) == 0 {
		return &Result{Status: StatusOptimal, Runtime: time.Since(start)}, nil
	}

	if opts.TimeLimit > 0 {
		e.log.Warn().
			Dur("budget", opts.TimeLimit).
			Msg("GLPK binding does not support a time limit, solver runs until completion")
	}

	lp := glpk.New()
	defer lp.Delete()

	lp.SetProbName(p.Name)
	if p.Sense == Maximize {
		lp.SetObjDir(glpk.MAX)
	} else {
		lp.SetObjDir(glpk.MIN)
	}

	lp.AddCols(len(p.Vars))
	for i, v := range p.Vars {
		col := i + 1
		lp.SetColName(col, v.Name)
		lp.SetColKind(col, glpk.VarType(glpk.IV))
		lp.SetColBnds(col, glpk.BndsType(glpk.LO), 0.0, 0.0)
	}

	// SetObjCoef overwrites, so fold repeated terms per variable first.
	objCoefs := make([]float64, len(p.Vars))
	for _, term := range p.Objective {
		objCoefs[term.Var] += term.Coef
	}
	for i, coef := range objCoefs {
		if coef != 0 {
			lp.SetObjCoef(i+1, coef)
		}
	}

	lp.AddRows(len(p.Constraints))
	for i, c := range p.Constraints {
		row := i + 1
		lp.SetRowName(row, c.Name)
		switch c.Relation {
		case GreaterEqual:
			lp.SetRowBnds(row, glpk.BndsType(glpk.LO), c.RHS, 0.0)
		case Equal:
			lp.SetRowBnds(row, glpk.BndsType(glpk.FX), c.RHS, c.RHS)
		default:
			lp.SetRowBnds(row, glpk.BndsType(glpk.UP), 0.0, c.RHS)
		}

		indices := make([]int32, len(c.Terms))
		coeffs := make([]float64, len(c.Terms))
		for j, term := range c.Terms {
			indices[j] = int32(term.Var) + 1
			coeffs[j] = term.Coef
		}
		lp.SetMatRow(row, indices, coeffs)
	}

	msgLev := glpk.MsgLev(glpk.MSG_ERR)
	if opts.Verbose {
		msgLev = glpk.MsgLev(glpk.MSG_ALL)
	}

	smcp := glpk.NewSmcp()
	smcp.SetMsgLev(msgLev)
	if err := lp.Simplex(smcp); err != nil {
		return nil, fmt.Errorf("simplex solver failed: %w", err)
	}

	iocp := glpk.NewIocp()
	iocp.SetPresolve(true)
	iocp.SetMsgLev(msgLev)
	if err := lp.Intopt(iocp); err != nil {
		// The binding reports "no primal/dual feasible solution" as an
		// error; that is an infeasible model, not an engine failure.
		if strings.Contains(strings.ToLower(err.Error()), "feasible") {
			return &Result{Status: StatusInfeasible, Runtime: time.Since(start)}, nil
		}
		return nil, fmt.Errorf("integer solver failed: %w", err)
	}

	status := lp.MipStatus()
	if status != glpk.OPT && status != glpk.FEAS {
		return &Result{Status: StatusInfeasible, Runtime: time.Since(start)}, nil
	}

	result := &Result{
		Status:    StatusOptimal,
		Objective: lp.MipObjVal(),
		Values:    make([]float64, len(p.Vars)),
		Runtime:   time.Since(start),
	}
	if status == glpk.FEAS {
		result.Status = StatusFeasible
		e.log.Warn().
			Str("problem", p.Name).
			Msg("Solver stopped before proving optimality, keeping incumbent")
	}

	for i := range p.Vars {
		result.Values[i] = lp.MipColVal(i + 1)
	}

	return result, nil
}
