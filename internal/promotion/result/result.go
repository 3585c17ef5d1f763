// Package result defines the PromotionApplication and LayeredResult value
// types shared by the compile, solve, graph, and receipt packages
// (spec.md §3). It has no behavior of its own.
package result

import (
	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/money"
)

// Application records that promotion Key rewrote item ItemIdx from
// OriginalPrice to FinalPrice as part of BundleID.
type Application struct {
	PromotionKey  arena.Key
	ItemIdx       int
	BundleID      int
	OriginalPrice money.Money
	FinalPrice    money.Money
}

// Savings returns OriginalPrice - FinalPrice.
func (a Application) Savings() (money.Money, error) {
	return a.OriginalPrice.Sub(a.FinalPrice)
}

// SolveResult is the output of a single solver driver invocation
// (spec.md §4.9).
type SolveResult struct {
	// ItemApplications maps an item index to the ordered list of
	// applications that priced it in this solve (at most one per solve,
	// per the exclusivity invariant).
	ItemApplications map[int][]Application

	// FullPriceItems is the set of item indices left at full price.
	FullPriceItems map[int]bool

	// Total is the objective value actually realised: the sum of final
	// prices across every item.
	Total money.Money

	// PromotionApplications lists every application produced by this
	// solve, in promotion order (spec.md §5 ordering guarantees).
	PromotionApplications []Application
}

// LayeredResult is the output of a full graph evaluation (spec.md §3,
// §4.10): applications accumulated across every layer an item traversed.
type LayeredResult struct {
	// ItemApplications maps an item's original basket index to its
	// ordered list of applications across every layer it traversed.
	ItemApplications map[int][]Application

	// FullPriceItems is the set of original basket indices never
	// rewritten by any layer.
	FullPriceItems map[int]bool

	// Total is the sum of final prices across the whole basket.
	Total money.Money
}
