// Package backend implements the ILP backend contract (spec.md §6): given a
// pool of binary variables, a linear objective, and a list of linear
// constraints, return an assignment of each variable to {0,1} minimising
// the objective.
//
// No MILP or LP solver library appears anywhere in the reference corpus --
// gonum.org/v1/gonum/optimize, the only optimization-adjacent dependency
// found in the wider example pack, solves continuous objectives only and
// cannot express binary decision variables. This package is therefore a
// deliberate, documented standard-library fallback: a depth-first
// branch-and-bound search with an admissible (constraint-free) objective
// bound for pruning.
package backend

import (
	"fmt"
	"math"

	"github.com/mdcpepper/lattice/internal/promotion/corerr"
	"github.com/mdcpepper/lattice/internal/promotion/ilp"
)

// Problem is the backend-facing view of a solve: a variable count, an
// objective, and a constraint list.
type Problem struct {
	NumVars     int
	Objective   ilp.Expr
	Constraints []ilp.Constraint
}

// Solution assigns every variable a value in [0,1]. A correct MILP backend
// always returns exactly 0 or 1; callers treat any value > 0.5 as selected.
type Solution struct {
	Values []float64
}

// Selected reports whether v's solution value exceeds 0.5.
func (s Solution) Selected(v ilp.Variable) bool {
	return s.Values[v.ID()] > 0.5
}

// Backend solves a Problem to optimality.
type Backend interface {
	Solve(p Problem) (Solution, error)
}

// BranchAndBound is a pure-Go, exact (not heuristic) MILP backend using
// depth-first search with constraint-free-relaxation pruning.
type BranchAndBound struct {
	// MaxNodes bounds the number of search-tree nodes explored before the
	// solve gives up and reports ErrSolverBackend.
	MaxNodes int

	// Epsilon is the numerical tolerance used when comparing constraint
	// sums and objective values.
	Epsilon float64
}

// NewBranchAndBound constructs a BranchAndBound backend, applying sane
// defaults for non-positive inputs.
func NewBranchAndBound(maxNodes int, epsilon float64) *BranchAndBound {
	if maxNodes <= 0 {
		maxNodes = 2_000_000
	}
	if epsilon <= 0 {
		epsilon = 1e-6
	}
	return &BranchAndBound{MaxNodes: maxNodes, Epsilon: epsilon}
}

var _ Backend = (*BranchAndBound)(nil)

// Solve implements Backend.
func (b *BranchAndBound) Solve(p Problem) (Solution, error) {
	coefs := make([]float64, p.NumVars)
	for _, term := range p.Objective {
		coefs[term.Var.ID()] += term.Coef
	}

	// suffixBestCase[j] is the best (most negative) possible contribution
	// of variables j..n-1 to the objective, ignoring constraints -- an
	// admissible lower bound used to prune the search.
	suffixBestCase := make([]float64, p.NumVars+1)
	for j := p.NumVars - 1; j >= 0; j-- {
		suffixBestCase[j] = suffixBestCase[j+1] + math.Min(0, coefs[j])
	}

	assign := make([]float64, p.NumVars)
	best := math.Inf(1)
	var bestAssign []float64
	nodes := 0
	var backendErr error

	var search func(idx int, objSoFar float64)
	search = func(idx int, objSoFar float64) {
		if backendErr != nil {
			return
		}
		nodes++
		if nodes > b.MaxNodes {
			backendErr = fmt.Errorf("%w: exceeded %d branch-and-bound nodes", corerr.ErrSolverBackend, b.MaxNodes)
			return
		}
		if idx == p.NumVars {
			if !feasible(p.Constraints, assign, b.Epsilon) {
				return
			}
			if objSoFar < best-b.Epsilon {
				best = objSoFar
				bestAssign = append([]float64(nil), assign...)
			}
			return
		}
		if bestAssign != nil && objSoFar+suffixBestCase[idx] >= best-b.Epsilon {
			return // admissible bound says this branch cannot beat the incumbent
		}
		for _, v := range [2]float64{0, 1} {
			assign[idx] = v
			search(idx+1, objSoFar+coefs[idx]*v)
			if backendErr != nil {
				return
			}
		}
		assign[idx] = 0
	}

	search(0, 0)
	if backendErr != nil {
		return Solution{}, backendErr
	}
	if bestAssign == nil {
		return Solution{}, fmt.Errorf("%w: no feasible assignment satisfies all constraints", corerr.ErrSolverBackend)
	}
	return Solution{Values: bestAssign}, nil
}

func feasible(constraints []ilp.Constraint, values []float64, eps float64) bool {
	for _, c := range constraints {
		sum := 0.0
		for _, t := range c.Expr {
			sum += t.Coef * values[t.Var.ID()]
		}
		switch c.Relation {
		case ilp.Eq:
			if math.Abs(sum-c.RHS) > eps {
				return false
			}
		case ilp.LE:
			if sum > c.RHS+eps {
				return false
			}
		case ilp.GE:
			if sum < c.RHS-eps {
				return false
			}
		}
	}
	return true
}
