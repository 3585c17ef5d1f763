package compile

import (
	"testing"

	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/ilp"
	"github.com/mdcpepper/lattice/pkg/testutil"
)

// addExclusivityConstraints mirrors the solver driver's step 3 (spec.md
// §4.9): for every item, exactly one of "priced at full price" or
// "priced by one of these bundles" must hold. Compiler unit tests need
// this explicitly since, without it, minimising an all-non-negative
// objective trivially selects nothing.
func addExclusivityConstraints(t *testing.T, state *ilp.State, group basket.ItemGroup, bundles ...VarBundle) {
	t.Helper()
	for i := 0; i < group.Len(); i++ {
		presence, ok := state.PresenceVariable(i)
		testutil.AssertTrue(t, ok, "presence variable exists for every item")
		expr := ilp.Expr{{Var: presence, Coef: 1}}
		for _, b := range bundles {
			expr = b.AddParticipationTerm(expr, i)
		}
		state.AddConstraint(expr, ilp.Eq, 1)
	}
}
