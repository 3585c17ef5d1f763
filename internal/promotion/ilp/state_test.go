package ilp

import (
	"testing"

	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
	"github.com/mdcpepper/lattice/pkg/testutil"
)

func twoItemGroup(t *testing.T) basket.ItemGroup {
	t.Helper()
	g, err := basket.NewItemGroup("GBP", []basket.Item{
		{ProductID: "a", Price: money.FromMinor(100, "GBP"), Tags: tags.New("fruit")},
		{ProductID: "b", Price: money.FromMinor(200, "GBP"), Tags: tags.New("fruit")},
	})
	testutil.AssertNoError(t, err, "new item group")
	return g
}

func TestNewStateAllocatesPresenceVariablesWithFullPriceCoefficients(t *testing.T) {
	obs := &countingObserver{}
	s, err := NewState(twoItemGroup(t), obs)
	testutil.AssertNoError(t, err, "new state")

	testutil.AssertEqual(t, s.NumVariables(), 2, "two presence variables")
	testutil.AssertEqual(t, obs.presenceVariables, 2, "observer saw two presence callbacks")
	testutil.AssertEqual(t, obs.objectiveTerms, 2, "observer saw two objective terms")

	total := 0.0
	for _, term := range s.Objective() {
		total += term.Coef
	}
	testutil.AssertEqual(t, total, 300.0, "objective sums to full basket total")
}

func TestNewStateDefaultsToNoopObserver(t *testing.T) {
	_, err := NewState(twoItemGroup(t), nil)
	testutil.AssertNoError(t, err, "nil observer should default to noop")
}

func TestAddVariableAndConstraint(t *testing.T) {
	s, err := NewState(twoItemGroup(t), nil)
	testutil.AssertNoError(t, err, "new state")

	v := s.AddVariable()
	testutil.AssertEqual(t, v.ID(), 2, "third variable id")

	c := s.AddConstraint(Expr{{Var: v, Coef: 1}}, LE, 1)
	testutil.AssertEqual(t, len(s.Constraints()), 1, "one constraint registered")
	testutil.AssertEqual(t, c.RHS, 1.0, "constraint rhs")
}
