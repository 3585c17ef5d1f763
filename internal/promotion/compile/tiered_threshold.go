package compile

import (
	"fmt"
	"math"
	"sort"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/corerr"
	"github.com/mdcpepper/lattice/internal/promotion/ilp"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/qualify"
	"github.com/mdcpepper/lattice/internal/promotion/result"
)

// Threshold bounds a tier's activation or cap, by monetary total, item
// count, or both (spec.md §4.8).
type Threshold struct {
	Monetary  *money.Money
	ItemCount *uint32
}

// Tier is one spend-threshold rule within a TieredThreshold promotion
// (spec.md §4.8). Discount semantics mirror MixAndMatch's
// MixAndMatchDiscountKind.
type Tier struct {
	LowerThreshold            Threshold
	UpperThreshold            *Threshold
	ContributionQualification qualify.Qualification
	DiscountQualification     qualify.Qualification
	Discount                  MixAndMatchDiscountKind
	Percent                   float64
	Amount                    money.Money
}

// TieredThreshold activates the highest-value combination of tiers whose
// contribution items clear their threshold, discounting each tier's
// matching items (spec.md §4.8).
type TieredThreshold struct {
	PromotionKey arena.Key
	Tiers        []Tier
	PromoBudget  Budget
}

// Key implements Promotion.
func (t *TieredThreshold) Key() arena.Key {
	return t.PromotionKey
}

func (t *TieredThreshold) tierCandidates(group basket.ItemGroup, tier Tier) (contrib []int, discount []int, err error) {
	for i := 0; i < group.Len(); i++ {
		item, e := group.Item(i)
		if e != nil {
			return nil, nil, e
		}
		if tier.ContributionQualification.Matches(item.Tags) {
			contrib = append(contrib, i)
		}
		if tier.DiscountQualification.Matches(item.Tags) {
			discount = append(discount, i)
		}
	}
	return contrib, discount, nil
}

// IsApplicable implements Promotion: at least one tier must have a
// non-empty contribution candidate set.
func (t *TieredThreshold) IsApplicable(group basket.ItemGroup) bool {
	for _, tier := range t.Tiers {
		contrib, _, err := t.tierCandidates(group, tier)
		if err == nil && len(contrib) > 0 {
			return true
		}
	}
	return false
}

type tierVars struct {
	active      ilp.Variable
	contributes map[int]ilp.Variable // item idx -> c_{k,i}
	discounts   map[int]ilp.Variable // item idx -> d_{k,i}
	cheapest    map[int]ilp.Variable // only for cheapest variants
	// budgetTerms holds (var, discount-if-selected) pairs for every
	// discount-bearing variable in this tier, for the monetary budget
	// constraint (spec.md §4.8).
	budgetTerms ilp.Expr
}

type tieredThresholdBundle struct {
	key   arena.Key
	tiers []Tier
	vars  []tierVars
}

// Compile implements Promotion.
func (t *TieredThreshold) Compile(group basket.ItemGroup, state *ilp.State, observer ilp.Observer) (VarBundle, error) {
	if observer == nil {
		observer = ilp.NoopObserver{}
	}
	bundle := &tieredThresholdBundle{key: t.PromotionKey, tiers: t.Tiers}

	bigM, err := maxGroupPriceF64(group)
	if err != nil {
		return nil, err
	}

	for k, tier := range t.Tiers {
		tv, err := t.compileTier(group, state, observer, k, tier, bigM)
		if err != nil {
			return nil, err
		}
		bundle.vars = append(bundle.vars, tv)
	}

	if err := t.addContributionExclusivity(state, observer, group, bundle); err != nil {
		return nil, err
	}
	if err := t.addBudgetConstraints(state, observer, bundle); err != nil {
		return nil, err
	}

	return bundle, nil
}

func (t *TieredThreshold) compileTier(group basket.ItemGroup, state *ilp.State, observer ilp.Observer, k int, tier Tier, bigM float64) (tierVars, error) {
	contribIdx, discountIdx, err := t.tierCandidates(group, tier)
	if err != nil {
		return tierVars{}, err
	}

	active := state.AddVariable()
	observer.OnAuxiliaryVariable(t.PromotionKey, active, ilp.RoleTierActive, nil, "")

	tv := tierVars{active: active, contributes: make(map[int]ilp.Variable, len(contribIdx)), discounts: make(map[int]ilp.Variable, len(discountIdx))}

	monetaryExpr := ilp.Expr{}
	countExpr := ilp.Expr{}
	for _, idx := range contribIdx {
		item, err := group.Item(idx)
		if err != nil {
			return tierVars{}, err
		}
		c := state.AddVariable()
		tv.contributes[idx] = c
		observer.OnAuxiliaryVariable(t.PromotionKey, c, ilp.RoleContributes, nil, "")

		priceF, err := item.Price.ToF64()
		if err != nil {
			return tierVars{}, fmt.Errorf("%w: promotion %s item %d", corerr.ErrCoefficientNotRepresentable, t.PromotionKey, idx)
		}
		state.AddObjectiveTerm(c, priceF, observer)
		monetaryExpr = append(monetaryExpr, ilp.Term{Var: c, Coef: priceF})
		countExpr = append(countExpr, ilp.Term{Var: c, Coef: 1})
	}

	if err := t.addThresholdConstraints(state, observer, k, tier, active, monetaryExpr, countExpr); err != nil {
		return tierVars{}, err
	}

	switch tier.Discount {
	case AmountOffTotal, FixedTotal:
		if err := t.compileBundleWideDiscount(group, state, observer, &tv, tier, discountIdx, active); err != nil {
			return tierVars{}, err
		}
	case PercentCheapest, FixedCheapest:
		cheapest, terms, err := t.compileCheapestDiscount(group, state, observer, tier, discountIdx, active, bigM)
		if err != nil {
			return tierVars{}, err
		}
		tv.cheapest = cheapest
		tv.budgetTerms = append(tv.budgetTerms, terms...)
	default:
		if err := t.compilePerItemDiscount(group, state, observer, &tv, tier, discountIdx, active); err != nil {
			return tierVars{}, err
		}
	}

	return tv, nil
}

func (t *TieredThreshold) addThresholdConstraints(state *ilp.State, observer ilp.Observer, k int, tier Tier, active ilp.Variable, monetaryExpr, countExpr ilp.Expr) error {
	if tier.LowerThreshold.Monetary != nil {
		lower, err := tier.LowerThreshold.Monetary.ToF64()
		if err != nil {
			return fmt.Errorf("%w: tier %d lower monetary threshold", corerr.ErrCoefficientNotRepresentable, k)
		}
		expr := append(append(ilp.Expr{}, monetaryExpr...), ilp.Term{Var: active, Coef: -lower})
		state.AddConstraint(expr, ilp.GE, 0)
		observer.OnPromotionConstraint(t.PromotionKey, ilp.ConstraintTierThreshold, expr, ilp.GE, 0)
	}
	if tier.LowerThreshold.ItemCount != nil {
		expr := append(append(ilp.Expr{}, countExpr...), ilp.Term{Var: active, Coef: -float64(*tier.LowerThreshold.ItemCount)})
		state.AddConstraint(expr, ilp.GE, 0)
		observer.OnPromotionConstraint(t.PromotionKey, ilp.ConstraintTierThreshold, expr, ilp.GE, 0)
	}
	if tier.UpperThreshold != nil {
		if tier.UpperThreshold.Monetary != nil {
			upper, err := tier.UpperThreshold.Monetary.ToF64()
			if err != nil {
				return fmt.Errorf("%w: tier %d upper monetary threshold", corerr.ErrCoefficientNotRepresentable, k)
			}
			state.AddConstraint(monetaryExpr, ilp.LE, upper)
			observer.OnPromotionConstraint(t.PromotionKey, ilp.ConstraintTierThreshold, monetaryExpr, ilp.LE, upper)
		}
		if tier.UpperThreshold.ItemCount != nil {
			rhs := float64(*tier.UpperThreshold.ItemCount)
			state.AddConstraint(countExpr, ilp.LE, rhs)
			observer.OnPromotionConstraint(t.PromotionKey, ilp.ConstraintTierThreshold, countExpr, ilp.LE, rhs)
		}
	}
	return nil
}

func (t *TieredThreshold) perItemFinal(tier Tier, price money.Money) (money.Money, error) {
	switch tier.Discount {
	case PercentEachItem:
		reduction := int64(math.Round(float64(price.Minor()) * tier.Percent))
		final, err := price.Sub(money.FromMinor(reduction, price.Currency()))
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case AmountOffEachItem:
		final, err := price.Sub(tier.Amount)
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case FixedPriceEachItem:
		return tier.Amount.ClampToZero(), nil
	default:
		return price, nil
	}
}

func (t *TieredThreshold) compilePerItemDiscount(group basket.ItemGroup, state *ilp.State, observer ilp.Observer, tv *tierVars, tier Tier, discountIdx []int, active ilp.Variable) error {
	for _, idx := range discountIdx {
		item, err := group.Item(idx)
		if err != nil {
			return err
		}
		final, err := t.perItemFinal(tier, item.Price)
		if err != nil {
			return err
		}
		coef, err := final.ToF64()
		if err != nil {
			return fmt.Errorf("%w: promotion %s item %d", corerr.ErrCoefficientNotRepresentable, t.PromotionKey, idx)
		}
		d := state.AddVariable()
		tv.discounts[idx] = d
		state.AddObjectiveTerm(d, coef, observer)
		observer.OnAuxiliaryVariable(t.PromotionKey, d, ilp.RoleDiscountAssigned, nil, "")

		priceF, err := item.Price.ToF64()
		if err != nil {
			return fmt.Errorf("%w: promotion %s item %d", corerr.ErrCoefficientNotRepresentable, t.PromotionKey, idx)
		}
		if delta := priceF - coef; delta != 0 {
			tv.budgetTerms = append(tv.budgetTerms, ilp.Term{Var: d, Coef: delta})
		}

		expr := ilp.Expr{{Var: d, Coef: 1}, {Var: active, Coef: -1}}
		state.AddConstraint(expr, ilp.LE, 0)
		observer.OnPromotionConstraint(t.PromotionKey, ilp.ConstraintDiscountAssignment, expr, ilp.LE, 0)
	}
	return nil
}

// compileBundleWideDiscount handles AmountOffTotal/FixedTotal tiers. Every
// discount-qualifying item is a compile-time-known, un-solved set for a
// tier (spec.md §4.8: membership follows tag qualification, not a slot
// search), so the bundle's real total price is a known constant, letting
// the monetary budget be expressed exactly: amt·active for AmountOffTotal,
// Σ price_i·d_i − amt·active for FixedTotal.
func (t *TieredThreshold) compileBundleWideDiscount(group basket.ItemGroup, state *ilp.State, observer ilp.Observer, tv *tierVars, tier Tier, discountIdx []int, active ilp.Variable) error {
	for _, idx := range discountIdx {
		item, err := group.Item(idx)
		if err != nil {
			return err
		}
		priceF, err := item.Price.ToF64()
		if err != nil {
			return fmt.Errorf("%w: promotion %s item %d", corerr.ErrCoefficientNotRepresentable, t.PromotionKey, idx)
		}
		d := state.AddVariable()
		tv.discounts[idx] = d

		coef := 0.0
		if tier.Discount == AmountOffTotal {
			coef = priceF
		}
		if coef != 0 {
			state.AddObjectiveTerm(d, coef, observer)
		}
		observer.OnAuxiliaryVariable(t.PromotionKey, d, ilp.RoleDiscountAssigned, nil, "")

		if delta := priceF - coef; delta != 0 {
			tv.budgetTerms = append(tv.budgetTerms, ilp.Term{Var: d, Coef: delta})
		}

		expr := ilp.Expr{{Var: d, Coef: 1}, {Var: active, Coef: -1}}
		state.AddConstraint(expr, ilp.LE, 0)
		observer.OnPromotionConstraint(t.PromotionKey, ilp.ConstraintDiscountAssignment, expr, ilp.LE, 0)
	}

	amt, err := tier.Amount.ToF64()
	if err != nil {
		return fmt.Errorf("%w: promotion %s tier amount", corerr.ErrCoefficientNotRepresentable, t.PromotionKey)
	}
	if tier.Discount == AmountOffTotal {
		state.AddObjectiveTerm(active, -amt, observer)
		tv.budgetTerms = append(tv.budgetTerms, ilp.Term{Var: active, Coef: amt})
	} else {
		state.AddObjectiveTerm(active, amt, observer)
		tv.budgetTerms = append(tv.budgetTerms, ilp.Term{Var: active, Coef: -amt})
	}
	return nil
}

func (t *TieredThreshold) compileCheapestDiscount(group basket.ItemGroup, state *ilp.State, observer ilp.Observer, tier Tier, discountIdx []int, active ilp.Variable, bigM float64) (map[int]ilp.Variable, ilp.Expr, error) {
	cheapest := make(map[int]ilp.Variable, len(discountIdx))
	var budgetTerms ilp.Expr
	exactlyOne := ilp.Expr{}
	for _, idx := range discountIdx {
		item, err := group.Item(idx)
		if err != nil {
			return nil, nil, err
		}
		v := state.AddVariable()
		cheapest[idx] = v
		exactlyOne = append(exactlyOne, ilp.Term{Var: v, Coef: 1})

		final, err := t.cheapestDelta(tier, item.Price)
		if err != nil {
			return nil, nil, err
		}
		adjustment, err := final.Sub(item.Price)
		if err != nil {
			return nil, nil, err
		}
		coef, err := adjustment.ToF64()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: promotion %s cheapest adjustment", corerr.ErrCoefficientNotRepresentable, t.PromotionKey)
		}
		state.AddObjectiveTerm(v, coef, observer)
		observer.OnAuxiliaryVariable(t.PromotionKey, v, ilp.RoleCheapest, nil, "")
		if coef != 0 {
			budgetTerms = append(budgetTerms, ilp.Term{Var: v, Coef: -coef})
		}
	}
	exactlyOne = append(exactlyOne, ilp.Term{Var: active, Coef: -1})
	state.AddConstraint(exactlyOne, ilp.Eq, 0)
	observer.OnPromotionConstraint(t.PromotionKey, ilp.ConstraintOrdering, exactlyOne, ilp.Eq, 0)

	for _, i := range discountIdx {
		itemI, err := group.Item(i)
		if err != nil {
			return nil, nil, err
		}
		priceI, err := itemI.Price.ToF64()
		if err != nil {
			return nil, nil, err
		}
		for _, j := range discountIdx {
			if i == j {
				continue
			}
			itemJ, err := group.Item(j)
			if err != nil {
				return nil, nil, err
			}
			priceJ, err := itemJ.Price.ToF64()
			if err != nil {
				return nil, nil, err
			}
			expr := ilp.Expr{{Var: cheapest[i], Coef: bigM}}
			state.AddConstraint(expr, ilp.LE, bigM-priceI+priceJ)
			observer.OnPromotionConstraint(t.PromotionKey, ilp.ConstraintOrdering, expr, ilp.LE, bigM-priceI+priceJ)
		}
	}

	return cheapest, budgetTerms, nil
}

func (t *TieredThreshold) cheapestDelta(tier Tier, price money.Money) (money.Money, error) {
	switch tier.Discount {
	case PercentCheapest:
		reduction := int64(math.Round(float64(price.Minor()) * tier.Percent))
		final, err := price.Sub(money.FromMinor(reduction, price.Currency()))
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case FixedCheapest:
		return tier.Amount.ClampToZero(), nil
	default:
		return money.Money{}, fmt.Errorf("%w: cheapestDelta called for non-cheapest variant", corerr.ErrInvariantViolation)
	}
}

// addContributionExclusivity ensures each item contributes to at most one
// tier of this promotion (spec.md §4.8).
func (t *TieredThreshold) addContributionExclusivity(state *ilp.State, observer ilp.Observer, group basket.ItemGroup, bundle *tieredThresholdBundle) error {
	perItem := make(map[int]ilp.Expr)
	for _, tv := range bundle.vars {
		for idx, c := range tv.contributes {
			perItem[idx] = append(perItem[idx], ilp.Term{Var: c, Coef: 1})
		}
	}
	for idx, expr := range perItem {
		if len(expr) < 2 {
			continue
		}
		state.AddConstraint(expr, ilp.LE, 1)
		observer.OnExclusivityConstraint(idx, expr)
	}
	return nil
}

func (t *TieredThreshold) addBudgetConstraints(state *ilp.State, observer ilp.Observer, bundle *tieredThresholdBundle) error {
	if t.PromoBudget.ApplicationLimit != nil {
		expr := make(ilp.Expr, 0, len(bundle.vars))
		for _, tv := range bundle.vars {
			expr = append(expr, ilp.Term{Var: tv.active, Coef: 1})
		}
		rhs := float64(*t.PromoBudget.ApplicationLimit)
		state.AddConstraint(expr, ilp.LE, rhs)
		observer.OnPromotionConstraint(t.PromotionKey, ilp.ConstraintBudgetApplicationLimit, expr, ilp.LE, rhs)
	}
	if t.PromoBudget.MonetaryLimit != nil {
		var expr ilp.Expr
		for _, tv := range bundle.vars {
			expr = append(expr, tv.budgetTerms...)
		}
		rhs, err := t.PromoBudget.MonetaryLimit.ToF64()
		if err != nil {
			return fmt.Errorf("%w: promotion %s monetary budget", corerr.ErrCoefficientNotRepresentable, t.PromotionKey)
		}
		state.AddConstraint(expr, ilp.LE, rhs)
		observer.OnPromotionConstraint(t.PromotionKey, ilp.ConstraintBudgetMonetaryLimit, expr, ilp.LE, rhs)
	}
	return nil
}

// AddParticipationTerm implements VarBundle.
func (b *tieredThresholdBundle) AddParticipationTerm(expr ilp.Expr, itemIdx int) ilp.Expr {
	for _, tv := range b.vars {
		if c, ok := tv.contributes[itemIdx]; ok {
			expr = append(expr, ilp.Term{Var: c, Coef: 1})
		}
		if d, ok := tv.discounts[itemIdx]; ok {
			expr = append(expr, ilp.Term{Var: d, Coef: 1})
		}
	}
	return expr
}

func (b *tieredThresholdBundle) findTier(sol backend.Solution, itemIdx int) (int, bool) {
	for k, tv := range b.vars {
		if d, ok := tv.discounts[itemIdx]; ok && sol.Selected(d) {
			return k, true
		}
		if c, ok := tv.contributes[itemIdx]; ok && sol.Selected(c) {
			return k, true
		}
	}
	return 0, false
}

// IsItemParticipating implements VarBundle.
func (b *tieredThresholdBundle) IsItemParticipating(sol backend.Solution, itemIdx int) bool {
	_, ok := b.findTier(sol, itemIdx)
	return ok
}

// IsItemPricedByPromotion implements VarBundle.
func (b *tieredThresholdBundle) IsItemPricedByPromotion(sol backend.Solution, itemIdx int) bool {
	for _, tv := range b.vars {
		if d, ok := tv.discounts[itemIdx]; ok && sol.Selected(d) {
			return true
		}
		if len(tv.cheapest) > 0 {
			if v, ok := tv.cheapest[itemIdx]; ok && sol.Selected(v) {
				return true
			}
		}
	}
	return false
}

func (b *tieredThresholdBundle) tierFinal(k int, price money.Money) (money.Money, error) {
	tier := b.tiers[k]
	switch tier.Discount {
	case PercentEachItem, PercentCheapest:
		reduction := money.RoundFromF64(float64(price.Minor()) * tier.Percent)
		final, err := price.Sub(money.FromMinor(reduction, price.Currency()))
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case AmountOffEachItem:
		final, err := price.Sub(tier.Amount)
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case FixedPriceEachItem, FixedCheapest:
		return tier.Amount.ClampToZero(), nil
	default:
		return price, nil
	}
}

// ExtractDiscounts implements VarBundle.
func (b *tieredThresholdBundle) ExtractDiscounts(sol backend.Solution, group basket.ItemGroup) (map[int]Discount, error) {
	out := make(map[int]Discount)
	for k, tv := range b.vars {
		if !sol.Selected(tv.active) {
			continue
		}
		discounts, err := b.extractTierDiscounts(sol, group, k, tv)
		if err != nil {
			return nil, err
		}
		for idx, d := range discounts {
			out[idx] = d
		}
	}
	return out, nil
}

func (b *tieredThresholdBundle) extractTierDiscounts(sol backend.Solution, group basket.ItemGroup, k int, tv tierVars) (map[int]Discount, error) {
	tier := b.tiers[k]
	out := make(map[int]Discount)

	switch tier.Discount {
	case AmountOffTotal, FixedTotal:
		var memberIdx []int
		for idx, d := range tv.discounts {
			if sol.Selected(d) {
				memberIdx = append(memberIdx, idx)
			}
		}
		sort.Ints(memberIdx)
		prices := make([]int64, len(memberIdx))
		fulls := make([]money.Money, len(memberIdx))
		fullTotal := int64(0)
		for i, idx := range memberIdx {
			item, err := group.Item(idx)
			if err != nil {
				return nil, err
			}
			fulls[i] = item.Price
			prices[i] = item.Price.Minor()
			fullTotal += item.Price.Minor()
		}
		var target int64
		if tier.Discount == AmountOffTotal {
			target = fullTotal - tier.Amount.Minor()
		} else {
			target = tier.Amount.Minor()
		}
		if target < 0 {
			target = 0
		}
		allocation := allocateProportional(prices, target)
		for i, idx := range memberIdx {
			out[idx] = Discount{Original: fulls[i], Final: money.FromMinor(allocation[i], fulls[i].Currency())}
		}
	case PercentCheapest, FixedCheapest:
		for idx, v := range tv.cheapest {
			if !sol.Selected(v) {
				continue
			}
			item, err := group.Item(idx)
			if err != nil {
				return nil, err
			}
			final, err := b.tierFinal(k, item.Price)
			if err != nil {
				return nil, err
			}
			out[idx] = Discount{Original: item.Price, Final: final}
		}
	default:
		for idx, d := range tv.discounts {
			if !sol.Selected(d) {
				continue
			}
			item, err := group.Item(idx)
			if err != nil {
				return nil, err
			}
			final, err := b.tierFinal(k, item.Price)
			if err != nil {
				return nil, err
			}
			out[idx] = Discount{Original: item.Price, Final: final}
		}
	}
	return out, nil
}

// ExtractApplications implements VarBundle. All items (contributors and
// discounted) in one tier activation share one bundle id (spec.md §4.8
// bundle policy).
func (b *tieredThresholdBundle) ExtractApplications(sol backend.Solution, group basket.ItemGroup, nextBundleID *int) ([]result.Application, error) {
	var apps []result.Application
	for k, tv := range b.vars {
		if !sol.Selected(tv.active) {
			continue
		}
		discounts, err := b.extractTierDiscounts(sol, group, k, tv)
		if err != nil {
			return nil, err
		}

		memberIdx := map[int]bool{}
		for idx, c := range tv.contributes {
			if sol.Selected(c) {
				memberIdx[idx] = true
			}
		}
		for idx := range discounts {
			memberIdx[idx] = true
		}
		if len(memberIdx) == 0 {
			continue
		}

		bundleID := *nextBundleID
		*nextBundleID++
		for idx := range memberIdx {
			item, err := group.Item(idx)
			if err != nil {
				return nil, err
			}
			final, ok := discounts[idx]
			if !ok {
				final = Discount{Original: item.Price, Final: item.Price}
			}
			apps = append(apps, result.Application{
				PromotionKey:  b.key,
				ItemIdx:       idx,
				BundleID:      bundleID,
				OriginalPrice: final.Original,
				FinalPrice:    final.Final,
			})
		}
	}
	return apps, nil
}

var _ Promotion = (*TieredThreshold)(nil)
var _ VarBundle = (*tieredThresholdBundle)(nil)
