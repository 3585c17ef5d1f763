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

// MixAndMatchDiscountKind selects how a formed bundle's discount is priced
// (spec.md §4.6).
type MixAndMatchDiscountKind int

const (
	PercentEachItem MixAndMatchDiscountKind = iota
	AmountOffEachItem
	FixedPriceEachItem
	PercentCheapest
	FixedCheapest
	AmountOffTotal
	FixedTotal
)

// Slot is one bundle-shape requirement (spec.md §4.6). Max nil means the
// slot has fixed arity Min.
type Slot struct {
	Qualification qualify.Qualification
	Min           uint32
	Max           *uint32
}

// MixAndMatch groups items into fixed-shape bundles and discounts them per
// item, as a flat bundle total, or on the cheapest bundle member
// (spec.md §4.6).
type MixAndMatch struct {
	PromotionKey arena.Key
	Slots        []Slot
	Discount     MixAndMatchDiscountKind
	Percent      float64
	Amount       money.Money
	PromoBudget  Budget
}

// Key implements Promotion.
func (m *MixAndMatch) Key() arena.Key {
	return m.PromotionKey
}

func (m *MixAndMatch) slotCandidates(group basket.ItemGroup) ([][]int, error) {
	candidates := make([][]int, len(m.Slots))
	for si, slot := range m.Slots {
		for i := 0; i < group.Len(); i++ {
			item, err := group.Item(i)
			if err != nil {
				return nil, err
			}
			if slot.Qualification.Matches(item.Tags) {
				candidates[si] = append(candidates[si], i)
			}
		}
	}
	return candidates, nil
}

// IsApplicable implements Promotion: the group must contain at least
// slot.Min matching items for every slot (spec.md §4.6).
func (m *MixAndMatch) IsApplicable(group basket.ItemGroup) bool {
	candidates, err := m.slotCandidates(group)
	if err != nil {
		return false
	}
	for si, slot := range m.Slots {
		if uint32(len(candidates[si])) < slot.Min {
			return false
		}
	}
	return len(m.Slots) > 0
}

func (m *MixAndMatch) maxBundles(candidates [][]int) int {
	max := -1
	for si, slot := range m.Slots {
		if slot.Min == 0 {
			continue
		}
		n := len(candidates[si]) / int(slot.Min)
		if max == -1 || n < max {
			max = n
		}
	}
	if max < 0 {
		max = 0
	}
	if m.PromoBudget.ApplicationLimit != nil && int(*m.PromoBudget.ApplicationLimit) < max {
		max = int(*m.PromoBudget.ApplicationLimit)
	}
	return max
}

func maxGroupPriceF64(group basket.ItemGroup) (float64, error) {
	max := 0.0
	for i := 0; i < group.Len(); i++ {
		item, err := group.Item(i)
		if err != nil {
			return 0, err
		}
		f, err := item.Price.ToF64()
		if err != nil {
			return 0, fmt.Errorf("%w: item %d", corerr.ErrCoefficientNotRepresentable, i)
		}
		if f > max {
			max = f
		}
	}
	return max, nil
}

type mmBundleInstance struct {
	formed       ilp.Variable
	slotVars     []map[int]ilp.Variable // per slot, item idx -> assignment variable
	cheapestVars map[int]ilp.Variable   // only populated for cheapest variants
	// budgetTerms holds (var, discount-if-selected) pairs for every
	// discount-bearing variable in this bundle instance, for the monetary
	// budget constraint (spec.md §4.8).
	budgetTerms ilp.Expr
}

type mixAndMatchBundle struct {
	key        arena.Key
	discount   MixAndMatchDiscountKind
	percent    float64
	amount     money.Money
	instances  []mmBundleInstance
	candidates [][]int
}

// Compile implements Promotion.
func (m *MixAndMatch) Compile(group basket.ItemGroup, state *ilp.State, observer ilp.Observer) (VarBundle, error) {
	if observer == nil {
		observer = ilp.NoopObserver{}
	}
	candidates, err := m.slotCandidates(group)
	if err != nil {
		return nil, err
	}
	numBundles := m.maxBundles(candidates)

	bundle := &mixAndMatchBundle{
		key:        m.PromotionKey,
		discount:   m.Discount,
		percent:    m.Percent,
		amount:     m.Amount,
		candidates: candidates,
	}

	bigM, err := maxGroupPriceF64(group)
	if err != nil {
		return nil, err
	}

	for b := 0; b < numBundles; b++ {
		inst, err := m.compileBundleInstance(group, state, observer, candidates, b, bigM)
		if err != nil {
			return nil, err
		}
		bundle.instances = append(bundle.instances, inst)
	}

	if err := m.addBudgetConstraints(state, observer, bundle); err != nil {
		return nil, err
	}

	return bundle, nil
}

func (m *MixAndMatch) compileBundleInstance(group basket.ItemGroup, state *ilp.State, observer ilp.Observer, candidates [][]int, b int, bigM float64) (mmBundleInstance, error) {
	zB := state.AddVariable()
	observer.OnAuxiliaryVariable(m.PromotionKey, zB, ilp.RoleBundleFormed, nil, "")

	inst := mmBundleInstance{formed: zB, slotVars: make([]map[int]ilp.Variable, len(m.Slots))}

	for si, slot := range m.Slots {
		items := candidates[si]
		yVars := make(map[int]ilp.Variable, len(items))
		sizeExpr := ilp.Expr{}
		for _, idx := range items {
			item, err := group.Item(idx)
			if err != nil {
				return mmBundleInstance{}, err
			}
			v := state.AddVariable()
			yVars[idx] = v

			coef, err := m.perItemObjectiveCoef(item.Price)
			if err != nil {
				return mmBundleInstance{}, err
			}
			if coef != 0 {
				state.AddObjectiveTerm(v, coef, observer)
			}
			observer.OnPromotionVariable(m.PromotionKey, idx, v, coef, map[string]any{"slot": si, "bundle": b})
			sizeExpr = append(sizeExpr, ilp.Term{Var: v, Coef: 1})

			priceF, err := item.Price.ToF64()
			if err != nil {
				return mmBundleInstance{}, fmt.Errorf("%w: promotion %s item %d", corerr.ErrCoefficientNotRepresentable, m.PromotionKey, idx)
			}
			if delta := priceF - coef; delta != 0 {
				inst.budgetTerms = append(inst.budgetTerms, ilp.Term{Var: v, Coef: delta})
			}
		}
		inst.slotVars[si] = yVars

		if slot.Max == nil {
			expr := append(append(ilp.Expr{}, sizeExpr...), ilp.Term{Var: zB, Coef: -float64(slot.Min)})
			state.AddConstraint(expr, ilp.Eq, 0)
			observer.OnPromotionConstraint(m.PromotionKey, ilp.ConstraintSlotSize, expr, ilp.Eq, 0)
		} else {
			lower := append(append(ilp.Expr{}, sizeExpr...), ilp.Term{Var: zB, Coef: -float64(slot.Min)})
			state.AddConstraint(lower, ilp.GE, 0)
			observer.OnPromotionConstraint(m.PromotionKey, ilp.ConstraintSlotSize, lower, ilp.GE, 0)

			upper := append(append(ilp.Expr{}, sizeExpr...), ilp.Term{Var: zB, Coef: -float64(*slot.Max)})
			state.AddConstraint(upper, ilp.LE, 0)
			observer.OnPromotionConstraint(m.PromotionKey, ilp.ConstraintSlotSize, upper, ilp.LE, 0)
		}
	}

	switch m.Discount {
	case AmountOffTotal:
		amt, err := m.Amount.ToF64()
		if err != nil {
			return mmBundleInstance{}, fmt.Errorf("%w: promotion %s amount", corerr.ErrCoefficientNotRepresentable, m.PromotionKey)
		}
		state.AddObjectiveTerm(zB, -amt, observer)
		inst.budgetTerms = append(inst.budgetTerms, ilp.Term{Var: zB, Coef: amt})
	case FixedTotal:
		amt, err := m.Amount.ToF64()
		if err != nil {
			return mmBundleInstance{}, fmt.Errorf("%w: promotion %s amount", corerr.ErrCoefficientNotRepresentable, m.PromotionKey)
		}
		state.AddObjectiveTerm(zB, amt, observer)
		inst.budgetTerms = append(inst.budgetTerms, ilp.Term{Var: zB, Coef: -amt})
	case PercentCheapest, FixedCheapest:
		cheapest, terms, err := m.compileCheapestConstraints(group, state, observer, candidates, inst, bigM)
		if err != nil {
			return mmBundleInstance{}, err
		}
		inst.cheapestVars = cheapest
		inst.budgetTerms = append(inst.budgetTerms, terms...)
	}

	return inst, nil
}

// perItemObjectiveCoef returns the per-item objective contribution of a
// slot-assignment variable. Per-item discount variants reprice directly;
// bundle-wide and cheapest variants participate at full price (repricing
// happens via the bundle-formed or cheapest auxiliary variable instead).
func (m *MixAndMatch) perItemObjectiveCoef(price money.Money) (float64, error) {
	switch m.Discount {
	case PercentEachItem:
		reduction := int64(math.Round(float64(price.Minor()) * m.Percent))
		final, err := price.Sub(money.FromMinor(reduction, price.Currency()))
		if err != nil {
			return 0, err
		}
		return final.ClampToZero().ToF64()
	case AmountOffEachItem:
		final, err := price.Sub(m.Amount)
		if err != nil {
			return 0, err
		}
		return final.ClampToZero().ToF64()
	case FixedPriceEachItem:
		return m.Amount.ClampToZero().ToF64()
	case AmountOffTotal:
		return price.ToF64()
	case FixedTotal:
		return 0, nil
	case PercentCheapest, FixedCheapest:
		return price.ToF64()
	default:
		return 0, fmt.Errorf("%w: unknown MixAndMatchDiscountKind %d", corerr.ErrInvariantViolation, m.Discount)
	}
}

func (m *MixAndMatch) cheapestDelta(price money.Money) (money.Money, error) {
	switch m.Discount {
	case PercentCheapest:
		reduction := int64(math.Round(float64(price.Minor()) * m.Percent))
		final, err := price.Sub(money.FromMinor(reduction, price.Currency()))
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case FixedCheapest:
		return m.Amount.ClampToZero(), nil
	default:
		return money.Money{}, fmt.Errorf("%w: cheapestDelta called for non-cheapest variant", corerr.ErrInvariantViolation)
	}
}

func (m *MixAndMatch) compileCheapestConstraints(group basket.ItemGroup, state *ilp.State, observer ilp.Observer, candidates [][]int, inst mmBundleInstance, bigM float64) (map[int]ilp.Variable, ilp.Expr, error) {
	union := map[int]bool{}
	for _, items := range candidates {
		for _, idx := range items {
			union[idx] = true
		}
	}

	participation := make(map[int]ilp.Expr, len(union))
	for idx := range union {
		var expr ilp.Expr
		for si, yVars := range inst.slotVars {
			if v, ok := yVars[idx]; ok {
				expr = append(expr, ilp.Term{Var: v, Coef: 1})
			}
			_ = si
		}
		participation[idx] = expr
	}

	cheapest := make(map[int]ilp.Variable, len(union))
	var budgetTerms ilp.Expr
	exactlyOne := ilp.Expr{}
	for idx := range union {
		v := state.AddVariable()
		cheapest[idx] = v
		exactlyOne = append(exactlyOne, ilp.Term{Var: v, Coef: 1})

		link := ilp.Expr{{Var: v, Coef: 1}}
		for _, term := range participation[idx] {
			link = append(link, ilp.Term{Var: term.Var, Coef: -1})
		}
		state.AddConstraint(link, ilp.LE, 0)
		observer.OnPromotionConstraint(m.PromotionKey, ilp.ConstraintOrdering, link, ilp.LE, 0)

		item, err := group.Item(idx)
		if err != nil {
			return nil, nil, err
		}
		delta, err := m.cheapestDelta(item.Price)
		if err != nil {
			return nil, nil, err
		}
		full := item.Price
		adjustment, err := delta.Sub(full)
		if err != nil {
			return nil, nil, err
		}
		coef, err := adjustment.ToF64()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: promotion %s cheapest adjustment", corerr.ErrCoefficientNotRepresentable, m.PromotionKey)
		}
		state.AddObjectiveTerm(v, coef, observer)
		observer.OnAuxiliaryVariable(m.PromotionKey, v, ilp.RoleCheapest, nil, "")
		if coef != 0 {
			budgetTerms = append(budgetTerms, ilp.Term{Var: v, Coef: -coef})
		}
	}
	exactlyOne = append(exactlyOne, ilp.Term{Var: inst.formed, Coef: -1})
	state.AddConstraint(exactlyOne, ilp.Eq, 0)
	observer.OnPromotionConstraint(m.PromotionKey, ilp.ConstraintOrdering, exactlyOne, ilp.Eq, 0)

	for i := range union {
		itemI, err := group.Item(i)
		if err != nil {
			return nil, nil, err
		}
		priceI, err := itemI.Price.ToF64()
		if err != nil {
			return nil, nil, err
		}
		for j := range union {
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
			for _, term := range participation[j] {
				expr = append(expr, ilp.Term{Var: term.Var, Coef: bigM})
			}
			rhs := 2*bigM - priceI + priceJ
			state.AddConstraint(expr, ilp.LE, rhs)
			observer.OnPromotionConstraint(m.PromotionKey, ilp.ConstraintOrdering, expr, ilp.LE, rhs)
		}
	}

	return cheapest, budgetTerms, nil
}

func (m *MixAndMatch) addBudgetConstraints(state *ilp.State, observer ilp.Observer, bundle *mixAndMatchBundle) error {
	if m.PromoBudget.ApplicationLimit != nil {
		expr := make(ilp.Expr, 0, len(bundle.instances))
		for _, inst := range bundle.instances {
			expr = append(expr, ilp.Term{Var: inst.formed, Coef: 1})
		}
		rhs := float64(*m.PromoBudget.ApplicationLimit)
		state.AddConstraint(expr, ilp.LE, rhs)
		observer.OnPromotionConstraint(m.PromotionKey, ilp.ConstraintBudgetApplicationLimit, expr, ilp.LE, rhs)
	}
	if m.PromoBudget.MonetaryLimit != nil {
		var expr ilp.Expr
		for _, inst := range bundle.instances {
			expr = append(expr, inst.budgetTerms...)
		}
		rhs, err := m.PromoBudget.MonetaryLimit.ToF64()
		if err != nil {
			return fmt.Errorf("%w: promotion %s monetary budget", corerr.ErrCoefficientNotRepresentable, m.PromotionKey)
		}
		state.AddConstraint(expr, ilp.LE, rhs)
		observer.OnPromotionConstraint(m.PromotionKey, ilp.ConstraintBudgetMonetaryLimit, expr, ilp.LE, rhs)
	}
	return nil
}

// AddParticipationTerm implements VarBundle.
func (b *mixAndMatchBundle) AddParticipationTerm(expr ilp.Expr, itemIdx int) ilp.Expr {
	for _, inst := range b.instances {
		for _, yVars := range inst.slotVars {
			if v, ok := yVars[itemIdx]; ok {
				expr = append(expr, ilp.Term{Var: v, Coef: 1})
			}
		}
	}
	return expr
}

func (b *mixAndMatchBundle) findParticipation(sol backend.Solution, itemIdx int) (int, ilp.Variable, bool) {
	for bi, inst := range b.instances {
		for _, yVars := range inst.slotVars {
			if v, ok := yVars[itemIdx]; ok && sol.Selected(v) {
				return bi, v, true
			}
		}
	}
	return 0, ilp.Variable{}, false
}

// IsItemParticipating implements VarBundle.
func (b *mixAndMatchBundle) IsItemParticipating(sol backend.Solution, itemIdx int) bool {
	_, _, ok := b.findParticipation(sol, itemIdx)
	return ok
}

// IsItemPricedByPromotion implements VarBundle.
func (b *mixAndMatchBundle) IsItemPricedByPromotion(sol backend.Solution, itemIdx int) bool {
	bi, _, ok := b.findParticipation(sol, itemIdx)
	if !ok {
		return false
	}
	switch b.discount {
	case PercentCheapest, FixedCheapest:
		v, ok := b.instances[bi].cheapestVars[itemIdx]
		return ok && sol.Selected(v)
	default:
		return true
	}
}

// ExtractDiscounts implements VarBundle.
func (b *mixAndMatchBundle) ExtractDiscounts(sol backend.Solution, group basket.ItemGroup) (map[int]Discount, error) {
	out := make(map[int]Discount)
	for bi := range b.instances {
		discounts, err := b.extractInstanceDiscounts(sol, group, bi)
		if err != nil {
			return nil, err
		}
		for idx, d := range discounts {
			out[idx] = d
		}
	}
	return out, nil
}

func (b *mixAndMatchBundle) extractInstanceDiscounts(sol backend.Solution, group basket.ItemGroup, bi int) (map[int]Discount, error) {
	inst := b.instances[bi]
	if !sol.Selected(inst.formed) {
		return nil, nil
	}

	var memberIdx []int
	for _, yVars := range inst.slotVars {
		for idx, v := range yVars {
			if sol.Selected(v) {
				memberIdx = append(memberIdx, idx)
			}
		}
	}
	sort.Ints(memberIdx)

	out := make(map[int]Discount, len(memberIdx))

	switch b.discount {
	case AmountOffTotal, FixedTotal:
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
		if b.discount == AmountOffTotal {
			target = fullTotal - b.amount.Minor()
		} else {
			target = b.amount.Minor()
		}
		if target < 0 {
			target = 0
		}
		allocation := allocateProportional(prices, target)
		for i, idx := range memberIdx {
			out[idx] = Discount{Original: fulls[i], Final: money.FromMinor(allocation[i], fulls[i].Currency())}
		}
	case PercentCheapest, FixedCheapest:
		for _, idx := range memberIdx {
			item, err := group.Item(idx)
			if err != nil {
				return nil, err
			}
			if v, ok := inst.cheapestVars[idx]; ok && sol.Selected(v) {
				delta, err := b.cheapestFinal(item.Price)
				if err != nil {
					return nil, err
				}
				out[idx] = Discount{Original: item.Price, Final: delta}
			} else {
				out[idx] = Discount{Original: item.Price, Final: item.Price}
			}
		}
	default: // per-item variants
		for _, idx := range memberIdx {
			item, err := group.Item(idx)
			if err != nil {
				return nil, err
			}
			final, err := b.perItemFinal(item.Price)
			if err != nil {
				return nil, err
			}
			out[idx] = Discount{Original: item.Price, Final: final}
		}
	}
	return out, nil
}

func (b *mixAndMatchBundle) perItemFinal(price money.Money) (money.Money, error) {
	switch b.discount {
	case PercentEachItem:
		reduction := money.RoundFromF64(float64(price.Minor()) * b.percent)
		final, err := price.Sub(money.FromMinor(reduction, price.Currency()))
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case AmountOffEachItem:
		final, err := price.Sub(b.amount)
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case FixedPriceEachItem:
		return b.amount.ClampToZero(), nil
	default:
		return price, nil
	}
}

func (b *mixAndMatchBundle) cheapestFinal(price money.Money) (money.Money, error) {
	switch b.discount {
	case PercentCheapest:
		reduction := money.RoundFromF64(float64(price.Minor()) * b.percent)
		final, err := price.Sub(money.FromMinor(reduction, price.Currency()))
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case FixedCheapest:
		return b.amount.ClampToZero(), nil
	default:
		return price, nil
	}
}

// ExtractApplications implements VarBundle. Every item in a formed bundle
// instance shares one bundle id (spec.md §4.6 bundle policy).
func (b *mixAndMatchBundle) ExtractApplications(sol backend.Solution, group basket.ItemGroup, nextBundleID *int) ([]result.Application, error) {
	var apps []result.Application
	for bi := range b.instances {
		discounts, err := b.extractInstanceDiscounts(sol, group, bi)
		if err != nil {
			return nil, err
		}
		if len(discounts) == 0 {
			continue
		}
		bundleID := *nextBundleID
		*nextBundleID++
		for idx, d := range discounts {
			apps = append(apps, result.Application{
				PromotionKey:  b.key,
				ItemIdx:       idx,
				BundleID:      bundleID,
				OriginalPrice: d.Original,
				FinalPrice:    d.Final,
			})
		}
	}
	return apps, nil
}

var _ Promotion = (*MixAndMatch)(nil)
var _ VarBundle = (*mixAndMatchBundle)(nil)
