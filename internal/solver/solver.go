// Package solver defines an engine-neutral integer-programming formulation
// and the narrow contract the load planner uses to solve it. Engines wrap
// external MILP solvers; the formulation carries a linear objective, linear
// constraints, and non-negative integer variables, which is all the planner
// needs.
package solver

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sense is the objective direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Relation compares a constraint's linear expression to its right-hand side.
type Relation int

const (
	LessEqual Relation = iota
	GreaterEqual
	Equal
)

func (r Relation) String() string {
	switch r {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	}
	return "?"
}

// VarID indexes a variable within its Problem.
type VarID int

// Variable is a non-negative integer decision variable. No upper bound is
// set at declaration time; ceilings are expressed as constraints.
type Variable struct {
	Name string
}

// Term is one coefficient*variable pair of a linear expression.
type Term struct {
	Coef float64
	Var  VarID
}

// Constraint is a linear constraint: sum(Terms) Relation RHS.
type Constraint struct {
	Name     string
	Relation Relation
	RHS      float64
	Terms    []Term
}

// NewTerm appends a coefficient*variable term to the constraint.
func (c *Constraint) NewTerm(coef float64, v VarID) {
	c.Terms = append(c.Terms, Term{Coef: coef, Var: v})
}

// Problem is a complete formulation. Building it never fails: an infeasible
// set of constraints is still a well-formed problem, and feasibility is
// decided by the engine.
type Problem struct {
	Name        string
	Sense       Sense
	Vars        []Variable
	Objective   []Term
	Constraints []*Constraint
}

// NewProblem creates an empty formulation.
func NewProblem(name string, sense Sense) *Problem {
	return &Problem{Name: name, Sense: sense}
}

// AddIntVar declares a non-negative integer variable and returns its id.
func (p *Problem) AddIntVar(name string) VarID {
	p.Vars = append(p.Vars, Variable{Name: name})
	return VarID(len(p.Vars) - 1)
}

// AddObjectiveTerm appends a coefficient*variable term to the objective.
func (p *Problem) AddObjectiveTerm(coef float64, v VarID) {
	p.Objective = append(p.Objective, Term{Coef: coef, Var: v})
}

// NewConstraint adds an empty constraint and returns it for NewTerm calls.
func (p *Problem) NewConstraint(name string, rel Relation, rhs float64) *Constraint {
	c := &Constraint{Name: name, Relation: rel, RHS: rhs}
	p.Constraints = append(p.Constraints, c)
	return c
}

// Status is the engine's verdict on a solve.
type Status int

const (
	// StatusOptimal - the engine proved optimality within the budget.
	StatusOptimal Status = iota
	// StatusFeasible - the budget ran out first; the incumbent is still a
	// valid assignment, just not proven optimal.
	StatusFeasible
	// StatusInfeasible - no assignment satisfies the constraints. Distinct
	// from an all-zero allocation.
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	}
	return "unknown"
}

// Result carries the engine's assignment. Values is indexed by VarID; on an
// infeasible result it is nil and every variable reads as zero.
type Result struct {
	Status    Status
	Objective float64
	Values    []float64
	Runtime   time.Duration
}

// Value returns the settled value of a variable, zero when the engine left
// it unset.
func (r *Result) Value(v VarID) float64 {
	if r == nil || int(v) < 0 || int(v) >= len(r.Values) {
		return 0
	}
	return r.Values[v]
}

// IntValue returns Value rounded to the nearest integer, for reading integer
// variables out of engines that report them as floats.
func (r *Result) IntValue(v VarID) int {
	val := r.Value(v)
	if val < 0 {
		return int(val - 0.5)
	}
	return int(val + 0.5)
}

// Options bound a single solve call.
type Options struct {
	// TimeLimit is the wall-clock budget. Engines that cannot enforce it
	// log a warning and run to completion.
	TimeLimit time.Duration
	// Verbose enables engine output. Off by default.
	Verbose bool
}

// Engine is the swappable MILP backend: given a formulation and a budget it
// returns an assignment with a status, or an error when the engine itself
// fails. Infeasibility is a status, never an error.
type Engine interface {
	Name() string
	Solve(p *Problem, opts Options) (*Result, error)
}

// NewEngine builds the configured engine by name.
func NewEngine(name string, log zerolog.Logger) (Engine, error) {
	switch name {
	case "nextmv":
		return NewNextmvEngine(log), nil
	case "glpk":
		return NewGLPKEngine(log), nil
	default:
		return nil, fmt.Errorf("unknown solver engine %q (want nextmv or glpk)", name)
	}
}
