// Package compile implements the PromotionCompiler protocol (spec.md §4.4)
// and the four built-in promotion types: DirectDiscount, MixAndMatch,
// Positional, and TieredThreshold (spec.md §4.5-§4.8).
package compile

import (
	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/ilp"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/result"
)

// Budget bounds how far a promotion may be applied. A nil field means
// unlimited on that axis (spec.md §3).
type Budget struct {
	ApplicationLimit *uint32
	MonetaryLimit    *money.Money
}

// Unlimited returns a Budget with no application or monetary limit.
func Unlimited() Budget {
	return Budget{}
}

// Discount is a single item's before/after price under a promotion.
type Discount struct {
	Original money.Money
	Final    money.Money
}

// Promotion is the common protocol every promotion type implements
// (spec.md §4.4).
type Promotion interface {
	// Key returns this promotion's arena key.
	Key() arena.Key

	// IsApplicable is a cheap pre-filter: false positives are safe (the
	// compiler adds variables no solution selects); false negatives are
	// bugs.
	IsApplicable(group basket.ItemGroup) bool

	// Compile creates decision variables, contributes objective terms,
	// and registers constraints, returning a VarBundle that owns this
	// promotion's post-solve interpretation.
	Compile(group basket.ItemGroup, state *ilp.State, observer ilp.Observer) (VarBundle, error)
}

// VarBundle owns the post-solve interpretation for one promotion
// (spec.md §4.4).
type VarBundle interface {
	// AddParticipationTerm appends this promotion's variables that rewrite
	// itemIdx to expr, for the solver driver's exclusivity constraint.
	AddParticipationTerm(expr ilp.Expr, itemIdx int) ilp.Expr

	// IsItemParticipating reports whether a variable of this promotion
	// that rewrites itemIdx is set in the solution.
	IsItemParticipating(sol backend.Solution, itemIdx int) bool

	// IsItemPricedByPromotion reports whether this promotion determines
	// itemIdx's final price. Defaults to IsItemParticipating for types
	// where participation always implies repricing.
	IsItemPricedByPromotion(sol backend.Solution, itemIdx int) bool

	// ExtractDiscounts returns the original/final price pair for every
	// item this promotion priced in the solution.
	ExtractDiscounts(sol backend.Solution, group basket.ItemGroup) (map[int]Discount, error)

	// ExtractApplications returns this promotion's applications in its
	// own bundling policy's order, advancing nextBundleID as it assigns
	// bundle ids.
	ExtractApplications(sol backend.Solution, group basket.ItemGroup, nextBundleID *int) ([]result.Application, error)
}
