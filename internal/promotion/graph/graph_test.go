package graph

import (
	"testing"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/compile"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/qualify"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
	"github.com/mdcpepper/lattice/pkg/testutil"
)

func bakeryBasket(t *testing.T) basket.ItemGroup {
	t.Helper()
	g, err := basket.NewItemGroup("GBP", []basket.Item{
		{ProductID: "loaf-1", Price: money.FromMinor(200, "GBP"), Tags: tags.New("bakery")},
		{ProductID: "loaf-2", Price: money.FromMinor(200, "GBP"), Tags: tags.New("bakery")},
		{ProductID: "loaf-3", Price: money.FromMinor(200, "GBP"), Tags: tags.New("bakery")},
		{ProductID: "juice", Price: money.FromMinor(100, "GBP"), Tags: tags.New("drink")},
	})
	testutil.AssertNoError(t, err, "new item group")
	return g
}

func TestEvaluateLayeredDAGWithSplit(t *testing.T) {
	group := bakeryBasket(t)
	a := arena.New()

	positional := &compile.Positional{
		PromotionKey:      a.Insert(),
		Qualification:     qualify.MatchAny(tags.New("bakery")),
		N:                 3,
		DiscountPositions: map[uint32]bool{2: true},
		Kind:              compile.PosPercentOff,
		Percent:           1.0,
		PromoBudget:       compile.Unlimited(),
	}
	directDiscount := &compile.DirectDiscount{
		PromotionKey:  a.Insert(),
		Qualification: qualify.MatchAny(tags.New("drink")),
		Kind:          compile.PercentageOff,
		Percent:       0.10,
		PromoBudget:   compile.Unlimited(),
	}

	b := NewBuilder()
	layerA := b.AddNode("bakery-3-for-2", []compile.Promotion{positional}, Split, nil)
	terminal := b.AddNode("terminal", nil, PassThrough, nil)
	layerB := b.AddNode("drink-10-percent-off", []compile.Promotion{directDiscount}, PassThrough, nil)

	b.AddEdge(layerA, terminal, Participating)
	b.AddEdge(layerA, layerB, NonParticipating)
	b.AddEdge(layerB, terminal, All)
	b.SetRoot(layerA)

	g, err := b.Build()
	testutil.AssertNoError(t, err, "build graph")

	res, err := Evaluate(g, group, nil)
	testutil.AssertNoError(t, err, "evaluate")

	testutil.AssertEqual(t, res.Total.Minor(), int64(490), "3-for-2 bakery (400) plus 10% off juice (90)")

	bundleIDs := map[int]bool{}
	for i := 0; i < 3; i++ {
		apps, ok := res.ItemApplications[i]
		testutil.AssertTrue(t, ok, "bakery item has an application")
		testutil.AssertEqual(t, len(apps), 1, "bakery item priced once")
		bundleIDs[apps[0].BundleID] = true
	}
	testutil.AssertEqual(t, len(bundleIDs), 1, "all three bakery items share one bundle id")

	juiceApps, ok := res.ItemApplications[3]
	testutil.AssertTrue(t, ok, "juice has an application")
	testutil.AssertEqual(t, len(juiceApps), 1, "juice priced once")
	testutil.AssertEqual(t, juiceApps[0].FinalPrice.Minor(), int64(90), "juice discounted 10%")
	testutil.AssertTrue(t, !bundleIDs[juiceApps[0].BundleID], "juice's bundle id differs from the bakery bundle")
}

func TestBuilderRejectsCycles(t *testing.T) {
	b := NewBuilder()
	n1 := b.AddNode("a", nil, PassThrough, nil)
	n2 := b.AddNode("b", nil, PassThrough, nil)
	b.AddEdge(n1, n2, All)
	b.AddEdge(n2, n1, All)
	b.SetRoot(n1)

	_, err := b.Build()
	testutil.AssertError(t, err, "cyclic graph must be rejected")
}

func TestBuilderRejectsTooManyEdgesOnPassThrough(t *testing.T) {
	b := NewBuilder()
	n1 := b.AddNode("a", nil, PassThrough, nil)
	n2 := b.AddNode("b", nil, PassThrough, nil)
	n3 := b.AddNode("c", nil, PassThrough, nil)
	b.AddEdge(n1, n2, All)
	b.AddEdge(n1, n3, All)
	b.SetRoot(n1)

	_, err := b.Build()
	testutil.AssertError(t, err, "PassThrough node with two edges must be rejected")
}

func TestEvaluateEmptyBasketReturnsEmptyResult(t *testing.T) {
	group, err := basket.NewItemGroup("GBP", nil)
	testutil.AssertNoError(t, err, "new item group")

	b := NewBuilder()
	n1 := b.AddNode("only", nil, PassThrough, nil)
	b.SetRoot(n1)
	g, err := b.Build()
	testutil.AssertNoError(t, err, "build graph")

	res, err := Evaluate(g, group, nil)
	testutil.AssertNoError(t, err, "evaluate")
	testutil.AssertEqual(t, res.Total.Minor(), int64(0), "empty basket totals zero")
}
