package memoize

import (
	"testing"
	"time"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/compile"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/qualify"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
	"github.com/mdcpepper/lattice/pkg/testutil"
)

func basketWithApple(t *testing.T) basket.ItemGroup {
	t.Helper()
	g, err := basket.NewItemGroup("GBP", []basket.Item{
		{ProductID: "apple", Price: money.FromMinor(200, "GBP"), Tags: tags.New("fruit")},
	})
	testutil.AssertNoError(t, err, "new item group")
	return g
}

func TestMemoizerCachesIdenticalSolves(t *testing.T) {
	group := basketWithApple(t)
	a := arena.New()
	promo := &compile.DirectDiscount{
		PromotionKey:  a.Insert(),
		Qualification: qualify.MatchAny(tags.New("fruit")),
		Kind:          compile.PercentageOff,
		Percent:       0.5,
		PromoBudget:   compile.Unlimited(),
	}
	promotions := []compile.Promotion{promo}

	m := New(time.Minute, time.Minute)

	first, err := m.Solve(promotions, group, nil, nil)
	testutil.AssertNoError(t, err, "first solve")
	testutil.AssertEqual(t, first.Total.Minor(), int64(100), "apple halved")

	second, err := m.Solve(promotions, group, nil, nil)
	testutil.AssertNoError(t, err, "second solve")
	testutil.AssertEqual(t, second.Total.Minor(), first.Total.Minor(), "cached result matches original")
}

func TestMemoizerDistinguishesDifferentBaskets(t *testing.T) {
	a := arena.New()
	promo := &compile.DirectDiscount{
		PromotionKey:  a.Insert(),
		Qualification: qualify.MatchAny(tags.New("fruit")),
		Kind:          compile.PercentageOff,
		Percent:       0.5,
		PromoBudget:   compile.Unlimited(),
	}
	promotions := []compile.Promotion{promo}

	m := New(time.Minute, time.Minute)

	smallGroup := basketWithApple(t)
	res1, err := m.Solve(promotions, smallGroup, nil, nil)
	testutil.AssertNoError(t, err, "solve small basket")

	largeGroup, err := basket.NewItemGroup("GBP", []basket.Item{
		{ProductID: "apple", Price: money.FromMinor(200, "GBP"), Tags: tags.New("fruit")},
		{ProductID: "pear", Price: money.FromMinor(300, "GBP"), Tags: tags.New("fruit")},
	})
	testutil.AssertNoError(t, err, "new item group")

	res2, err := m.Solve(promotions, largeGroup, nil, nil)
	testutil.AssertNoError(t, err, "solve large basket")

	testutil.AssertNotEqual(t, res1.Total.Minor(), res2.Total.Minor(), "different baskets must not share a cache entry")
}

func TestInvalidateClearsCache(t *testing.T) {
	group := basketWithApple(t)
	a := arena.New()
	promo := &compile.DirectDiscount{
		PromotionKey:  a.Insert(),
		Qualification: qualify.MatchAny(tags.New("fruit")),
		Kind:          compile.PercentageOff,
		Percent:       0.5,
		PromoBudget:   compile.Unlimited(),
	}
	promotions := []compile.Promotion{promo}

	m := New(time.Minute, time.Minute)
	_, err := m.Solve(promotions, group, nil, nil)
	testutil.AssertNoError(t, err, "solve")

	m.Invalidate()

	testutil.AssertEqual(t, m.cache.ItemCount(), 0, "invalidate flushes every cached entry")
}
