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

// PositionalDiscountKind selects how Positional computes a discounted
// position's final price, mirroring DirectDiscountKind (spec.md §4.7).
type PositionalDiscountKind int

const (
	PosPercentOff PositionalDiscountKind = iota
	PosAmountOff
	PosAmountOverride
)

// Positional groups N qualifying items into a price-ordered bundle and
// discounts specific positions within it (e.g. 3-for-2: N=3, position 2
// discounted 100%) (spec.md §4.7).
type Positional struct {
	PromotionKey      arena.Key
	Qualification     qualify.Qualification
	N                 uint32
	DiscountPositions map[uint32]bool
	Kind              PositionalDiscountKind
	Percent           float64
	Amount            money.Money
	PromoBudget       Budget
}

// Key implements Promotion.
func (p *Positional) Key() arena.Key {
	return p.PromotionKey
}

func (p *Positional) candidates(group basket.ItemGroup) ([]int, error) {
	var idxs []int
	for i := 0; i < group.Len(); i++ {
		item, err := group.Item(i)
		if err != nil {
			return nil, err
		}
		if p.Qualification.Matches(item.Tags) {
			idxs = append(idxs, i)
		}
	}
	return idxs, nil
}

// IsApplicable implements Promotion.
func (p *Positional) IsApplicable(group basket.ItemGroup) bool {
	idxs, err := p.candidates(group)
	if err != nil || p.N == 0 {
		return false
	}
	return uint32(len(idxs)) >= p.N
}

func (p *Positional) numBundles(candidateCount int) int {
	if p.N == 0 {
		return 0
	}
	n := candidateCount / int(p.N)
	if p.PromoBudget.ApplicationLimit != nil && int(*p.PromoBudget.ApplicationLimit) < n {
		n = int(*p.PromoBudget.ApplicationLimit)
	}
	return n
}

func (p *Positional) finalPrice(price money.Money) (money.Money, error) {
	switch p.Kind {
	case PosPercentOff:
		reduction := int64(math.Round(float64(price.Minor()) * p.Percent))
		final, err := price.Sub(money.FromMinor(reduction, price.Currency()))
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case PosAmountOff:
		final, err := price.Sub(p.Amount)
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case PosAmountOverride:
		return p.Amount.ClampToZero(), nil
	default:
		return money.Money{}, fmt.Errorf("%w: unknown PositionalDiscountKind %d", corerr.ErrInvariantViolation, p.Kind)
	}
}

type posBundleInstance struct {
	formed ilp.Variable
	// posVars[position][itemIdx] = the variable for item itemIdx at that position.
	posVars []map[int]ilp.Variable
	// discountTerms holds (var, full-final) for every discounted-position
	// variable, for the monetary budget constraint.
	discountTerms ilp.Expr
}

type positionalBundle struct {
	key        arena.Key
	kind       PositionalDiscountKind
	percent    float64
	amount     money.Money
	discPos    map[uint32]bool
	n          uint32
	instances  []posBundleInstance
	candidates []int
}

// Compile implements Promotion.
func (p *Positional) Compile(group basket.ItemGroup, state *ilp.State, observer ilp.Observer) (VarBundle, error) {
	if observer == nil {
		observer = ilp.NoopObserver{}
	}
	candidates, err := p.candidates(group)
	if err != nil {
		return nil, err
	}
	numBundles := p.numBundles(len(candidates))

	bundle := &positionalBundle{
		key:        p.PromotionKey,
		kind:       p.Kind,
		percent:    p.Percent,
		amount:     p.Amount,
		discPos:    p.DiscountPositions,
		n:          p.N,
		candidates: candidates,
	}

	bigM, err := maxGroupPriceF64(group)
	if err != nil {
		return nil, err
	}

	for b := 0; b < numBundles; b++ {
		inst, err := p.compileBundleInstance(group, state, observer, candidates, b, bigM)
		if err != nil {
			return nil, err
		}
		bundle.instances = append(bundle.instances, inst)
	}

	if err := p.addBudgetConstraints(state, observer, bundle); err != nil {
		return nil, err
	}

	return bundle, nil
}

func (p *Positional) compileBundleInstance(group basket.ItemGroup, state *ilp.State, observer ilp.Observer, candidates []int, b int, bigM float64) (posBundleInstance, error) {
	zB := state.AddVariable()
	observer.OnAuxiliaryVariable(p.PromotionKey, zB, ilp.RoleBundleFormed, nil, "")

	inst := posBundleInstance{formed: zB, posVars: make([]map[int]ilp.Variable, p.N)}

	for pos := uint32(0); pos < p.N; pos++ {
		posInt := int(pos)
		itemVars := make(map[int]ilp.Variable, len(candidates))
		sumExpr := ilp.Expr{}
		discounted := p.DiscountPositions[pos]
		for _, idx := range candidates {
			item, err := group.Item(idx)
			if err != nil {
				return posBundleInstance{}, err
			}
			price := item.Price
			if discounted {
				final, err := p.finalPrice(item.Price)
				if err != nil {
					return posBundleInstance{}, err
				}
				price = final
			}
			coef, err := price.ToF64()
			if err != nil {
				return posBundleInstance{}, fmt.Errorf("%w: promotion %s item %d", corerr.ErrCoefficientNotRepresentable, p.PromotionKey, idx)
			}
			v := state.AddVariable()
			itemVars[idx] = v
			state.AddObjectiveTerm(v, coef, observer)
			observer.OnAuxiliaryVariable(p.PromotionKey, v, ilp.RolePosition, &posInt, "")
			sumExpr = append(sumExpr, ilp.Term{Var: v, Coef: 1})

			if discounted {
				delta, err := item.Price.Sub(price)
				if err != nil {
					return posBundleInstance{}, err
				}
				deltaCoef, err := delta.ToF64()
				if err != nil {
					return posBundleInstance{}, fmt.Errorf("%w: promotion %s item %d discount delta", corerr.ErrCoefficientNotRepresentable, p.PromotionKey, idx)
				}
				inst.discountTerms = append(inst.discountTerms, ilp.Term{Var: v, Coef: deltaCoef})
			}
		}
		inst.posVars[pos] = itemVars

		expr := append(append(ilp.Expr{}, sumExpr...), ilp.Term{Var: zB, Coef: -1})
		state.AddConstraint(expr, ilp.Eq, 0)
		observer.OnPromotionConstraint(p.PromotionKey, ilp.ConstraintSlotSize, expr, ilp.Eq, 0)
	}

	if err := p.addOrderingConstraints(state, observer, group, candidates, inst, bigM); err != nil {
		return posBundleInstance{}, err
	}

	return inst, nil
}

func (p *Positional) addOrderingConstraints(state *ilp.State, observer ilp.Observer, group basket.ItemGroup, candidates []int, inst posBundleInstance, bigM float64) error {
	for pLow := uint32(0); pLow < p.N; pLow++ {
		for pHigh := pLow + 1; pHigh < p.N; pHigh++ {
			for _, i := range candidates {
				itemI, err := group.Item(i)
				if err != nil {
					return err
				}
				priceI, err := itemI.Price.ToF64()
				if err != nil {
					return err
				}
				vi, ok := inst.posVars[pLow][i]
				if !ok {
					continue
				}
				for _, j := range candidates {
					if i == j {
						continue
					}
					itemJ, err := group.Item(j)
					if err != nil {
						return err
					}
					priceJ, err := itemJ.Price.ToF64()
					if err != nil {
						return err
					}
					vj, ok := inst.posVars[pHigh][j]
					if !ok {
						continue
					}
					expr := ilp.Expr{{Var: vi, Coef: bigM}, {Var: vj, Coef: bigM}}
					rhs := 2*bigM - priceI + priceJ
					state.AddConstraint(expr, ilp.LE, rhs)
					observer.OnPromotionConstraint(p.PromotionKey, ilp.ConstraintOrdering, expr, ilp.LE, rhs)
				}
			}
		}
	}
	return nil
}

func (p *Positional) addBudgetConstraints(state *ilp.State, observer ilp.Observer, bundle *positionalBundle) error {
	if p.PromoBudget.ApplicationLimit != nil {
		expr := make(ilp.Expr, 0, len(bundle.instances))
		for _, inst := range bundle.instances {
			expr = append(expr, ilp.Term{Var: inst.formed, Coef: 1})
		}
		rhs := float64(*p.PromoBudget.ApplicationLimit)
		state.AddConstraint(expr, ilp.LE, rhs)
		observer.OnPromotionConstraint(p.PromotionKey, ilp.ConstraintBudgetApplicationLimit, expr, ilp.LE, rhs)
	}
	if p.PromoBudget.MonetaryLimit != nil {
		// monetary_limit bounds the summed discount across disc_{i,p}
		// variables (spec.md §4.7): Σ (full - final) · disc_{i,p} ≤ limit.
		var expr ilp.Expr
		for _, inst := range bundle.instances {
			expr = append(expr, inst.discountTerms...)
		}
		rhs, err := p.PromoBudget.MonetaryLimit.ToF64()
		if err != nil {
			return fmt.Errorf("%w: promotion %s monetary budget", corerr.ErrCoefficientNotRepresentable, p.PromotionKey)
		}
		state.AddConstraint(expr, ilp.LE, rhs)
		observer.OnPromotionConstraint(p.PromotionKey, ilp.ConstraintBudgetMonetaryLimit, expr, ilp.LE, rhs)
	}
	return nil
}

// AddParticipationTerm implements VarBundle.
func (b *positionalBundle) AddParticipationTerm(expr ilp.Expr, itemIdx int) ilp.Expr {
	for _, inst := range b.instances {
		for _, itemVars := range inst.posVars {
			if v, ok := itemVars[itemIdx]; ok {
				expr = append(expr, ilp.Term{Var: v, Coef: 1})
			}
		}
	}
	return expr
}

func (b *positionalBundle) findPosition(sol backend.Solution, itemIdx int) (int, uint32, bool) {
	for bi, inst := range b.instances {
		for pos, itemVars := range inst.posVars {
			if v, ok := itemVars[itemIdx]; ok && sol.Selected(v) {
				return bi, uint32(pos), true
			}
		}
	}
	return 0, 0, false
}

// IsItemParticipating implements VarBundle.
func (b *positionalBundle) IsItemParticipating(sol backend.Solution, itemIdx int) bool {
	_, _, ok := b.findPosition(sol, itemIdx)
	return ok
}

// IsItemPricedByPromotion implements VarBundle.
func (b *positionalBundle) IsItemPricedByPromotion(sol backend.Solution, itemIdx int) bool {
	_, pos, ok := b.findPosition(sol, itemIdx)
	return ok && b.discPos[pos]
}

func (b *positionalBundle) finalFor(pos uint32, price money.Money) (money.Money, error) {
	if !b.discPos[pos] {
		return price, nil
	}
	switch b.kind {
	case PosPercentOff:
		reduction := money.RoundFromF64(float64(price.Minor()) * b.percent)
		final, err := price.Sub(money.FromMinor(reduction, price.Currency()))
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case PosAmountOff:
		final, err := price.Sub(b.amount)
		if err != nil {
			return money.Money{}, err
		}
		return final.ClampToZero(), nil
	case PosAmountOverride:
		return b.amount.ClampToZero(), nil
	default:
		return price, nil
	}
}

// ExtractDiscounts implements VarBundle.
func (b *positionalBundle) ExtractDiscounts(sol backend.Solution, group basket.ItemGroup) (map[int]Discount, error) {
	out := make(map[int]Discount)
	for _, inst := range b.instances {
		if !sol.Selected(inst.formed) {
			continue
		}
		for pos, itemVars := range inst.posVars {
			for idx, v := range itemVars {
				if !sol.Selected(v) {
					continue
				}
				item, err := group.Item(idx)
				if err != nil {
					return nil, err
				}
				final, err := b.finalFor(uint32(pos), item.Price)
				if err != nil {
					return nil, err
				}
				out[idx] = Discount{Original: item.Price, Final: final}
			}
		}
	}
	return out, nil
}

// ExtractApplications implements VarBundle. Every item in a formed bundle
// shares one bundle id, discounted or not (spec.md §4.7 bundle policy).
func (b *positionalBundle) ExtractApplications(sol backend.Solution, group basket.ItemGroup, nextBundleID *int) ([]result.Application, error) {
	var apps []result.Application
	for _, inst := range b.instances {
		if !sol.Selected(inst.formed) {
			continue
		}
		bundleID := *nextBundleID
		*nextBundleID++
		for pos, itemVars := range inst.posVars {
			for idx, v := range itemVars {
				if !sol.Selected(v) {
					continue
				}
				item, err := group.Item(idx)
				if err != nil {
					return nil, err
				}
				final, err := b.finalFor(uint32(pos), item.Price)
				if err != nil {
					return nil, err
				}
				apps = append(apps, result.Application{
					PromotionKey:  b.key,
					ItemIdx:       idx,
					BundleID:      bundleID,
					OriginalPrice: item.Price,
					FinalPrice:    final,
				})
			}
		}
	}
	return apps, nil
}

var _ Promotion = (*Positional)(nil)
var _ VarBundle = (*positionalBundle)(nil)
