package testutil

import (
	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/compile"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/qualify"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
)

// Common test fixtures and factory functions for the promotion domain.

// FixtureCurrency is the currency every fixture below is priced in.
const FixtureCurrency = money.Currency("GBP")

// FixtureItem returns a sample basket item priced in minor units, carrying
// the given tags.
func FixtureItem(productID string, priceMinor int64, itemTags ...string) basket.Item {
	return basket.Item{
		ProductID: productID,
		Price:     money.FromMinor(priceMinor, FixtureCurrency),
		Tags:      tags.New(itemTags...),
	}
}

// FixtureItemGroup returns a small three-item basket: a tagged "sale" item,
// an untagged item, and a second tagged item, useful as a default target
// for promotion fixtures below.
func FixtureItemGroup() (basket.ItemGroup, error) {
	return basket.NewItemGroup(FixtureCurrency, []basket.Item{
		FixtureItem("sku-1", 1000, "sale"),
		FixtureItem("sku-2", 500),
		FixtureItem("sku-3", 1500, "sale"),
	})
}

// FixtureBudget returns an unlimited budget.
func FixtureBudget() compile.Budget {
	return compile.Unlimited()
}

// FixtureDirectDiscount returns a 25%-off DirectDiscount promotion
// qualifying on the given tag.
func FixtureDirectDiscount(a *arena.Arena, tag string) *compile.DirectDiscount {
	return &compile.DirectDiscount{
		PromotionKey:  a.Insert(),
		Qualification: qualify.MatchAny(tags.New(tag)),
		Kind:          compile.PercentageOff,
		Percent:       0.25,
		PromoBudget:   FixtureBudget(),
	}
}

// FixtureMixAndMatch returns a two-slot MixAndMatch bundle promotion, each
// slot requiring one item tagged tag, discounting the cheapest slot member
// by 50%.
func FixtureMixAndMatch(a *arena.Arena, tag string) *compile.MixAndMatch {
	return &compile.MixAndMatch{
		PromotionKey: a.Insert(),
		Slots: []compile.Slot{
			{Qualification: qualify.MatchAny(tags.New(tag)), Min: 1},
			{Qualification: qualify.MatchAny(tags.New(tag)), Min: 1},
		},
		Discount:    compile.PercentCheapest,
		Percent:     0.5,
		PromoBudget: FixtureBudget(),
	}
}

// FixturePositional returns a 3-for-2 Positional promotion over items
// tagged tag: the third-priced item in the bundle is free.
func FixturePositional(a *arena.Arena, tag string) *compile.Positional {
	return &compile.Positional{
		PromotionKey:      a.Insert(),
		Qualification:     qualify.MatchAny(tags.New(tag)),
		N:                 3,
		DiscountPositions: map[uint32]bool{2: true},
		Kind:              compile.PosPercentOff,
		Percent:           1.0,
		PromoBudget:       FixtureBudget(),
	}
}

// FixtureTieredThreshold returns a single-tier TieredThreshold promotion:
// spend 1000 minor units or more and get 10% off the contributing items.
func FixtureTieredThreshold(a *arena.Arena) *compile.TieredThreshold {
	threshold := money.FromMinor(1000, FixtureCurrency)
	return &compile.TieredThreshold{
		PromotionKey: a.Insert(),
		Tiers: []compile.Tier{
			{
				LowerThreshold:        compile.Threshold{Monetary: &threshold},
				ContributionQualification: qualify.MatchAll(),
				DiscountQualification: qualify.MatchAll(),
				Discount:              compile.PercentEachItem,
				Percent:               0.1,
			},
		},
		PromoBudget: FixtureBudget(),
	}
}
