package compile

import (
	"fmt"
	"math"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/corerr"
	"github.com/mdcpepper/lattice/internal/promotion/ilp"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/qualify"
	"github.com/mdcpepper/lattice/internal/promotion/result"
)

// DirectDiscountKind selects how DirectDiscount computes an item's final
// price (spec.md §4.5).
type DirectDiscountKind int

const (
	// PercentageOff computes final = price - round(price*Percent).
	PercentageOff DirectDiscountKind = iota
	// AmountOff computes final = price - Amount.
	AmountOff
	// AmountOverride sets final = Amount directly.
	AmountOverride
)

// DirectDiscount is a per-item percentage/amount-off/override promotion
// (spec.md §3, §4.5).
type DirectDiscount struct {
	PromotionKey  arena.Key
	Qualification qualify.Qualification
	Kind          DirectDiscountKind
	Percent       float64 // used when Kind == PercentageOff, e.g. 0.25 for 25%
	Amount        money.Money
	PromoBudget   Budget
}

// Key implements Promotion.
func (d *DirectDiscount) Key() arena.Key {
	return d.PromotionKey
}

// IsApplicable implements Promotion.
func (d *DirectDiscount) IsApplicable(group basket.ItemGroup) bool {
	for _, it := range group.Items() {
		if d.Qualification.Matches(it.Tags) {
			return true
		}
	}
	return false
}

func (d *DirectDiscount) finalPrice(price money.Money) (money.Money, error) {
	switch d.Kind {
	case PercentageOff:
		reduction := int64(math.Round(float64(price.Minor()) * d.Percent))
		final, err := price.Sub(money.FromMinor(reduction, price.Currency()))
		if err != nil {
			return money.Money{}, fmt.Errorf("%w: %v", corerr.ErrDiscountComputationFailed, err)
		}
		return final.ClampToZero(), nil
	case AmountOff:
		final, err := price.Sub(d.Amount)
		if err != nil {
			return money.Money{}, fmt.Errorf("%w: %v", corerr.ErrDiscountComputationFailed, err)
		}
		return final.ClampToZero(), nil
	case AmountOverride:
		return d.Amount.ClampToZero(), nil
	default:
		return money.Money{}, fmt.Errorf("%w: unknown DirectDiscountKind %d", corerr.ErrInvariantViolation, d.Kind)
	}
}

type directItem struct {
	idx      int
	v        ilp.Variable
	original money.Money
	final    money.Money
}

type directDiscountBundle struct {
	key   arena.Key
	items []directItem
}

// Compile implements Promotion.
func (d *DirectDiscount) Compile(group basket.ItemGroup, state *ilp.State, observer ilp.Observer) (VarBundle, error) {
	if observer == nil {
		observer = ilp.NoopObserver{}
	}
	bundle := &directDiscountBundle{key: d.PromotionKey}

	for i := 0; i < group.Len(); i++ {
		item, err := group.Item(i)
		if err != nil {
			return nil, err
		}
		if !d.Qualification.Matches(item.Tags) {
			continue
		}
		final, err := d.finalPrice(item.Price)
		if err != nil {
			return nil, err
		}
		coef, err := final.ToF64()
		if err != nil {
			return nil, fmt.Errorf("%w: promotion %s item %d", corerr.ErrCoefficientNotRepresentable, d.PromotionKey, i)
		}
		v := state.AddVariable()
		state.AddObjectiveTerm(v, coef, observer)
		observer.OnPromotionVariable(d.PromotionKey, i, v, coef, nil)
		bundle.items = append(bundle.items, directItem{idx: i, v: v, original: item.Price, final: final})
	}

	if err := d.addBudgetConstraints(state, observer, bundle); err != nil {
		return nil, err
	}

	return bundle, nil
}

func (d *DirectDiscount) addBudgetConstraints(state *ilp.State, observer ilp.Observer, bundle *directDiscountBundle) error {
	if d.PromoBudget.ApplicationLimit != nil {
		expr := make(ilp.Expr, 0, len(bundle.items))
		for _, it := range bundle.items {
			expr = append(expr, ilp.Term{Var: it.v, Coef: 1})
		}
		rhs := float64(*d.PromoBudget.ApplicationLimit)
		state.AddConstraint(expr, ilp.LE, rhs)
		observer.OnPromotionConstraint(d.PromotionKey, ilp.ConstraintBudgetApplicationLimit, expr, ilp.LE, rhs)
	}
	if d.PromoBudget.MonetaryLimit != nil {
		expr := make(ilp.Expr, 0, len(bundle.items))
		for _, it := range bundle.items {
			discount, err := it.original.Sub(it.final)
			if err != nil {
				return err
			}
			coef, err := discount.ToF64()
			if err != nil {
				return fmt.Errorf("%w: promotion %s budget", corerr.ErrCoefficientNotRepresentable, d.PromotionKey)
			}
			expr = append(expr, ilp.Term{Var: it.v, Coef: coef})
		}
		rhs, err := d.PromoBudget.MonetaryLimit.ToF64()
		if err != nil {
			return fmt.Errorf("%w: promotion %s monetary budget", corerr.ErrCoefficientNotRepresentable, d.PromotionKey)
		}
		state.AddConstraint(expr, ilp.LE, rhs)
		observer.OnPromotionConstraint(d.PromotionKey, ilp.ConstraintBudgetMonetaryLimit, expr, ilp.LE, rhs)
	}
	return nil
}

// AddParticipationTerm implements VarBundle.
func (b *directDiscountBundle) AddParticipationTerm(expr ilp.Expr, itemIdx int) ilp.Expr {
	for _, it := range b.items {
		if it.idx == itemIdx {
			expr = append(expr, ilp.Term{Var: it.v, Coef: 1})
		}
	}
	return expr
}

// IsItemParticipating implements VarBundle.
func (b *directDiscountBundle) IsItemParticipating(sol backend.Solution, itemIdx int) bool {
	for _, it := range b.items {
		if it.idx == itemIdx && sol.Selected(it.v) {
			return true
		}
	}
	return false
}

// IsItemPricedByPromotion implements VarBundle.
func (b *directDiscountBundle) IsItemPricedByPromotion(sol backend.Solution, itemIdx int) bool {
	return b.IsItemParticipating(sol, itemIdx)
}

// ExtractDiscounts implements VarBundle.
func (b *directDiscountBundle) ExtractDiscounts(sol backend.Solution, _ basket.ItemGroup) (map[int]Discount, error) {
	out := make(map[int]Discount)
	for _, it := range b.items {
		if sol.Selected(it.v) {
			out[it.idx] = Discount{Original: it.original, Final: it.final}
		}
	}
	return out, nil
}

// ExtractApplications implements VarBundle. Each selected item is its own
// bundle (spec.md §4.5 bundle policy).
func (b *directDiscountBundle) ExtractApplications(sol backend.Solution, _ basket.ItemGroup, nextBundleID *int) ([]result.Application, error) {
	var apps []result.Application
	for _, it := range b.items {
		if !sol.Selected(it.v) {
			continue
		}
		bundleID := *nextBundleID
		*nextBundleID++
		apps = append(apps, result.Application{
			PromotionKey:  b.key,
			ItemIdx:       it.idx,
			BundleID:      bundleID,
			OriginalPrice: it.original,
			FinalPrice:    it.final,
		})
	}
	return apps, nil
}

var _ Promotion = (*DirectDiscount)(nil)
var _ VarBundle = (*directDiscountBundle)(nil)
