// Package solve implements the top-level solver driver (spec.md §4.9):
// it wires every applicable promotion's compiled variables into one
// ILPState, adds the per-item exclusivity constraint, hands the problem
// to a backend, and extracts a SolveResult.
package solve

import (
	"fmt"

	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/compile"
	"github.com/mdcpepper/lattice/internal/promotion/corerr"
	"github.com/mdcpepper/lattice/internal/promotion/ilp"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/result"
)

// Solve runs one solver-driver pass over group with promotions, in the
// order given, and returns the assembled SolveResult (spec.md §4.9).
func Solve(promotions []compile.Promotion, group basket.ItemGroup, back backend.Backend, observer ilp.Observer) (result.SolveResult, error) {
	if observer == nil {
		observer = ilp.NoopObserver{}
	}
	if back == nil {
		back = backend.NewBranchAndBound(0, 0)
	}

	state, err := ilp.NewState(group, observer)
	if err != nil {
		return result.SolveResult{}, err
	}

	var bundles []compile.VarBundle
	var applicable []compile.Promotion
	for _, p := range promotions {
		if !p.IsApplicable(group) {
			continue
		}
		bundle, err := p.Compile(group, state, observer)
		if err != nil {
			return result.SolveResult{}, err
		}
		bundles = append(bundles, bundle)
		applicable = append(applicable, p)
	}

	if err := addExclusivityConstraints(state, observer, group, bundles); err != nil {
		return result.SolveResult{}, err
	}

	sol, err := back.Solve(backend.Problem{
		NumVars:     state.NumVariables(),
		Objective:   state.Objective(),
		Constraints: state.Constraints(),
	})
	if err != nil {
		return result.SolveResult{}, fmt.Errorf("%w: %v", corerr.ErrSolverBackend, err)
	}

	return assemble(sol, group, applicable, bundles)
}

// addExclusivityConstraints emits p_i + Σ_b bundle_b.add_participation_term(i) = 1
// for every item i (spec.md §4.9 step 3).
func addExclusivityConstraints(state *ilp.State, observer ilp.Observer, group basket.ItemGroup, bundles []compile.VarBundle) error {
	for i := 0; i < group.Len(); i++ {
		presence, ok := state.PresenceVariable(i)
		if !ok {
			return fmt.Errorf("%w: item %d has no presence variable", corerr.ErrInvariantViolation, i)
		}
		expr := ilp.Expr{{Var: presence, Coef: 1}}
		for _, b := range bundles {
			expr = b.AddParticipationTerm(expr, i)
		}
		state.AddConstraint(expr, ilp.Eq, 1)
		observer.OnExclusivityConstraint(i, expr)
	}
	return nil
}

func assemble(sol backend.Solution, group basket.ItemGroup, promotions []compile.Promotion, bundles []compile.VarBundle) (result.SolveResult, error) {
	itemApplications := make(map[int][]result.Application)
	fullPriceItems := make(map[int]bool)
	var promotionApplications []result.Application

	nextBundleID := 0
	for i, bundle := range bundles {
		apps, err := bundle.ExtractApplications(sol, group, &nextBundleID)
		if err != nil {
			return result.SolveResult{}, fmt.Errorf("promotion %s: %w", promotions[i].Key(), err)
		}
		for _, app := range apps {
			itemApplications[app.ItemIdx] = append(itemApplications[app.ItemIdx], app)
		}
		promotionApplications = append(promotionApplications, apps...)
	}

	total := money.FromMinor(0, group.Currency())
	for i := 0; i < group.Len(); i++ {
		item, err := group.Item(i)
		if err != nil {
			return result.SolveResult{}, err
		}
		apps, priced := itemApplications[i]
		if !priced || len(apps) == 0 {
			fullPriceItems[i] = true
			var err error
			total, err = total.Add(item.Price)
			if err != nil {
				return result.SolveResult{}, err
			}
			continue
		}
		final := apps[len(apps)-1].FinalPrice
		var err error
		total, err = total.Add(final)
		if err != nil {
			return result.SolveResult{}, err
		}
	}

	return result.SolveResult{
		ItemApplications:      itemApplications,
		FullPriceItems:        fullPriceItems,
		Total:                 total,
		PromotionApplications: promotionApplications,
	}, nil
}
