// Package ilp implements the variable pool, constraint list, and objective
// accumulator used by promotion compilers (spec.md §4.1), plus the passive
// Observer protocol used to capture a solve's formulation (spec.md §4.2).
package ilp

import (
	"fmt"

	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/corerr"
)

// Variable is a lightweight reference to a binary decision variable. The
// zero value is not a valid Variable; only State.AddVariable and NewState
// (one presence variable per item) mint them.
type Variable struct {
	id int
}

// ID returns the variable's position in the backend's variable pool.
func (v Variable) ID() int {
	return v.id
}

// Relation is the comparison a Constraint enforces against its RHS.
type Relation int

const (
	// Eq enforces expr == rhs.
	Eq Relation = iota
	// LE enforces expr <= rhs.
	LE
	// GE enforces expr >= rhs.
	GE
)

// Term is a single coef*var addend of a linear expression.
type Term struct {
	Var  Variable
	Coef float64
}

// Expr is a linear combination of variables.
type Expr []Term

// Constraint is a linear expression related to a constant right-hand side.
type Constraint struct {
	Expr     Expr
	Relation Relation
	RHS      float64
}

// State accumulates the binary variables, objective, and constraints for a
// single solve. It owns no solver backend; the solver driver (solve.Solve)
// hands its contents to one. A State is created per solve and discarded (spec.md §3 Lifecycles).
type State struct {
	numVars     int
	objective   Expr
	constraints []Constraint
	presenceOf  map[int]Variable // item index -> presence variable
}

// NewState allocates a State with one presence variable per item in group,
// each with an objective coefficient equal to the item's full price in
// minor units (spec.md §4.1).
func NewState(group basket.ItemGroup, observer Observer) (*State, error) {
	if observer == nil {
		observer = NoopObserver{}
	}
	s := &State{presenceOf: make(map[int]Variable, group.Len())}
	for i := 0; i < group.Len(); i++ {
		item, err := group.Item(i)
		if err != nil {
			return nil, err
		}
		coef, err := item.Price.ToF64()
		if err != nil {
			return nil, fmt.Errorf("%w: item %d price %d", corerr.ErrCoefficientNotRepresentable, i, item.Price.Minor())
		}
		v := s.addVariable()
		s.presenceOf[i] = v
		s.AddObjectiveTerm(v, coef, observer)
		observer.OnPresenceVariable(i, v)
	}
	return s, nil
}

// AddVariable allocates a fresh binary decision variable.
func (s *State) AddVariable() Variable {
	return s.addVariable()
}

func (s *State) addVariable() Variable {
	v := Variable{id: s.numVars}
	s.numVars++
	return v
}

// PresenceVariable returns the presence variable for item idx.
func (s *State) PresenceVariable(idx int) (Variable, bool) {
	v, ok := s.presenceOf[idx]
	return v, ok
}

// AddObjectiveTerm adds coef*v to the objective being minimised.
func (s *State) AddObjectiveTerm(v Variable, coef float64, observer Observer) {
	s.objective = append(s.objective, Term{Var: v, Coef: coef})
	if observer != nil {
		observer.OnObjectiveTerm(v, coef)
	}
}

// AddConstraint registers a linear constraint.
func (s *State) AddConstraint(expr Expr, relation Relation, rhs float64) Constraint {
	c := Constraint{Expr: expr, Relation: relation, RHS: rhs}
	s.constraints = append(s.constraints, c)
	return c
}

// NumVariables returns the number of binary variables allocated so far.
func (s *State) NumVariables() int {
	return s.numVars
}

// Objective returns the accumulated objective expression.
func (s *State) Objective() Expr {
	return s.objective
}

// Constraints returns the accumulated constraint list.
func (s *State) Constraints() []Constraint {
	return s.constraints
}
