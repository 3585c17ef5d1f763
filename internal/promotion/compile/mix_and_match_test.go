package compile

import (
	"testing"

	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/ilp"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/qualify"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
	"github.com/mdcpepper/lattice/pkg/testutil"
)

func mainAndDrinkBasket(t *testing.T) basket.ItemGroup {
	t.Helper()
	g, err := basket.NewItemGroup("GBP", []basket.Item{
		{ProductID: "burger", Price: money.FromMinor(400, "GBP"), Tags: tags.New("main")},
		{ProductID: "cola", Price: money.FromMinor(200, "GBP"), Tags: tags.New("drink")},
	})
	testutil.AssertNoError(t, err, "new item group")
	return g
}

func solveState(t *testing.T, state *ilp.State) backend.Solution {
	t.Helper()
	b := backend.NewBranchAndBound(0, 0)
	sol, err := b.Solve(backend.Problem{
		NumVars:     state.NumVariables(),
		Objective:   state.Objective(),
		Constraints: state.Constraints(),
	})
	testutil.AssertNoError(t, err, "solve")
	return sol
}

func TestMixAndMatchFixedTotal(t *testing.T) {
	group := mainAndDrinkBasket(t)
	_, key := newPromoArena()

	promo := &MixAndMatch{
		PromotionKey: key,
		Slots: []Slot{
			{Qualification: qualify.MatchAny(tags.New("main")), Min: 1},
			{Qualification: qualify.MatchAny(tags.New("drink")), Min: 1},
		},
		Discount:    FixedTotal,
		Amount:      money.FromMinor(500, "GBP"),
		PromoBudget: Unlimited(),
	}
	testutil.AssertTrue(t, promo.IsApplicable(group), "one main and one drink item qualify")

	state, err := ilp.NewState(group, nil)
	testutil.AssertNoError(t, err, "new state")

	bundle, err := promo.Compile(group, state, nil)
	testutil.AssertNoError(t, err, "compile")
	addExclusivityConstraints(t, state, group, bundle)

	sol := solveState(t, state)

	total := 0.0
	for _, term := range state.Objective() {
		if sol.Selected(term.Var) {
			total += term.Coef
		}
	}
	testutil.AssertEqual(t, total, 500.0, "objective reaches the fixed bundle total")

	nextID := 0
	apps, err := bundle.ExtractApplications(sol, group, &nextID)
	testutil.AssertNoError(t, err, "extract applications")
	testutil.AssertEqual(t, len(apps), 2, "both items join the one formed bundle")
	testutil.AssertEqual(t, apps[0].BundleID, apps[1].BundleID, "both applications share one bundle id")

	sum := int64(0)
	for _, app := range apps {
		sum += app.FinalPrice.Minor()
	}
	testutil.AssertEqual(t, sum, int64(500), "final prices sum to the fixed total")
}

func TestMixAndMatchNotApplicableWithoutEnoughItemsPerSlot(t *testing.T) {
	group, err := basket.NewItemGroup("GBP", []basket.Item{
		{ProductID: "burger", Price: money.FromMinor(400, "GBP"), Tags: tags.New("main")},
	})
	testutil.AssertNoError(t, err, "new item group")

	_, key := newPromoArena()
	promo := &MixAndMatch{
		PromotionKey: key,
		Slots: []Slot{
			{Qualification: qualify.MatchAny(tags.New("main")), Min: 1},
			{Qualification: qualify.MatchAny(tags.New("drink")), Min: 1},
		},
		Discount:    FixedTotal,
		Amount:      money.FromMinor(500, "GBP"),
		PromoBudget: Unlimited(),
	}
	testutil.AssertFalse(t, promo.IsApplicable(group), "no drink item present")
}

func TestMixAndMatchPercentEachItem(t *testing.T) {
	group := mainAndDrinkBasket(t)
	_, key := newPromoArena()

	promo := &MixAndMatch{
		PromotionKey: key,
		Slots: []Slot{
			{Qualification: qualify.MatchAny(tags.New("main")), Min: 1},
			{Qualification: qualify.MatchAny(tags.New("drink")), Min: 1},
		},
		Discount:    PercentEachItem,
		Percent:     0.5,
		PromoBudget: Unlimited(),
	}

	state, err := ilp.NewState(group, nil)
	testutil.AssertNoError(t, err, "new state")

	bundle, err := promo.Compile(group, state, nil)
	testutil.AssertNoError(t, err, "compile")
	addExclusivityConstraints(t, state, group, bundle)

	sol := solveState(t, state)

	discounts, err := bundle.ExtractDiscounts(sol, group)
	testutil.AssertNoError(t, err, "extract discounts")
	testutil.AssertEqual(t, discounts[0].Final.Minor(), int64(200), "main item halved")
	testutil.AssertEqual(t, discounts[1].Final.Minor(), int64(100), "drink item halved")
}
