package compile

import (
	"testing"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/ilp"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/qualify"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
	"github.com/mdcpepper/lattice/pkg/testutil"
)

func fruitBasket(t *testing.T) basket.ItemGroup {
	t.Helper()
	g, err := basket.NewItemGroup("GBP", []basket.Item{
		{ProductID: "apple", Price: money.FromMinor(200, "GBP"), Tags: tags.New("fruit")},
		{ProductID: "bread", Price: money.FromMinor(150, "GBP"), Tags: tags.New("bakery")},
		{ProductID: "pear", Price: money.FromMinor(300, "GBP"), Tags: tags.New("fruit")},
	})
	testutil.AssertNoError(t, err, "new item group")
	return g
}

func newPromoArena() (*arena.Arena, arena.Key) {
	a := arena.New()
	return a, a.Insert()
}

func TestDirectDiscountPercentageOffQualifyingSubset(t *testing.T) {
	group := fruitBasket(t)
	_, key := newPromoArena()

	promo := &DirectDiscount{
		PromotionKey:  key,
		Qualification: qualify.MatchAny(tags.New("fruit")),
		Kind:          PercentageOff,
		Percent:       0.25,
		PromoBudget:   Unlimited(),
	}

	testutil.AssertTrue(t, promo.IsApplicable(group), "basket has qualifying fruit items")

	state, err := ilp.NewState(group, nil)
	testutil.AssertNoError(t, err, "new state")

	bundle, err := promo.Compile(group, state, nil)
	testutil.AssertNoError(t, err, "compile")
	addExclusivityConstraints(t, state, group, bundle)

	b := backend.NewBranchAndBound(0, 0)
	sol, err := b.Solve(backend.Problem{
		NumVars:     state.NumVariables(),
		Objective:   state.Objective(),
		Constraints: state.Constraints(),
	})
	testutil.AssertNoError(t, err, "solve")

	discounts, err := bundle.ExtractDiscounts(sol, group)
	testutil.AssertNoError(t, err, "extract discounts")

	appleDiscount, ok := discounts[0]
	testutil.AssertTrue(t, ok, "apple should be discounted")
	testutil.AssertEqual(t, appleDiscount.Final.Minor(), int64(150), "apple 25% off 200 -> 150")

	_, breadDiscounted := discounts[1]
	testutil.AssertFalse(t, breadDiscounted, "bread does not qualify")

	pearDiscount, ok := discounts[2]
	testutil.AssertTrue(t, ok, "pear should be discounted")
	testutil.AssertEqual(t, pearDiscount.Final.Minor(), int64(225), "pear 25% off 300 -> 225")
}

func TestDirectDiscountAmountOffClampsToZero(t *testing.T) {
	group := fruitBasket(t)
	_, key := newPromoArena()

	promo := &DirectDiscount{
		PromotionKey:  key,
		Qualification: qualify.MatchAny(tags.New("bakery")),
		Kind:          AmountOff,
		Amount:        money.FromMinor(500, "GBP"),
		PromoBudget:   Unlimited(),
	}

	state, err := ilp.NewState(group, nil)
	testutil.AssertNoError(t, err, "new state")

	bundle, err := promo.Compile(group, state, nil)
	testutil.AssertNoError(t, err, "compile")
	addExclusivityConstraints(t, state, group, bundle)

	b := backend.NewBranchAndBound(0, 0)
	sol, err := b.Solve(backend.Problem{
		NumVars:     state.NumVariables(),
		Objective:   state.Objective(),
		Constraints: state.Constraints(),
	})
	testutil.AssertNoError(t, err, "solve")

	discounts, err := bundle.ExtractDiscounts(sol, group)
	testutil.AssertNoError(t, err, "extract discounts")

	breadDiscount, ok := discounts[1]
	testutil.AssertTrue(t, ok, "bread should be discounted")
	testutil.AssertTrue(t, breadDiscount.Final.IsZero(), "bread amount-off 500 on 150 clamps to zero")
}

func TestDirectDiscountApplicationLimitBudget(t *testing.T) {
	group := fruitBasket(t)
	_, key := newPromoArena()

	limit := uint32(1)
	promo := &DirectDiscount{
		PromotionKey:  key,
		Qualification: qualify.MatchAny(tags.New("fruit")),
		Kind:          PercentageOff,
		Percent:       0.5,
		PromoBudget:   Budget{ApplicationLimit: &limit},
	}

	state, err := ilp.NewState(group, nil)
	testutil.AssertNoError(t, err, "new state")

	bundle, err := promo.Compile(group, state, nil)
	testutil.AssertNoError(t, err, "compile")
	addExclusivityConstraints(t, state, group, bundle)

	b := backend.NewBranchAndBound(0, 0)
	sol, err := b.Solve(backend.Problem{
		NumVars:     state.NumVariables(),
		Objective:   state.Objective(),
		Constraints: state.Constraints(),
	})
	testutil.AssertNoError(t, err, "solve")

	selected := 0
	if bundle.IsItemParticipating(sol, 0) {
		selected++
	}
	if bundle.IsItemParticipating(sol, 2) {
		selected++
	}
	testutil.AssertEqual(t, selected, 1, "application limit of one is respected")
}

func TestDirectDiscountExtractApplicationsAssignsOneBundlePerItem(t *testing.T) {
	group := fruitBasket(t)
	_, key := newPromoArena()

	promo := &DirectDiscount{
		PromotionKey:  key,
		Qualification: qualify.MatchAny(tags.New("fruit")),
		Kind:          PercentageOff,
		Percent:       0.1,
		PromoBudget:   Unlimited(),
	}

	state, err := ilp.NewState(group, nil)
	testutil.AssertNoError(t, err, "new state")

	bundle, err := promo.Compile(group, state, nil)
	testutil.AssertNoError(t, err, "compile")
	addExclusivityConstraints(t, state, group, bundle)

	b := backend.NewBranchAndBound(0, 0)
	sol, err := b.Solve(backend.Problem{
		NumVars:     state.NumVariables(),
		Objective:   state.Objective(),
		Constraints: state.Constraints(),
	})
	testutil.AssertNoError(t, err, "solve")

	nextID := 0
	apps, err := bundle.ExtractApplications(sol, group, &nextID)
	testutil.AssertNoError(t, err, "extract applications")
	testutil.AssertEqual(t, len(apps), 2, "apple and pear each get their own application")
	testutil.AssertEqual(t, nextID, 2, "bundle id counter advanced once per application")

	seen := map[int]bool{}
	for _, app := range apps {
		testutil.AssertFalse(t, seen[app.BundleID], "bundle ids are unique per application")
		seen[app.BundleID] = true
	}
}
