package ilp

import "github.com/mdcpepper/lattice/internal/promotion/arena"

// AuxiliaryRole labels what an auxiliary variable represents, for
// observers that want to render or assert on the formulation (e.g. a
// Mix-and-Match "bundle-formed" binary, or a Positional "position"
// variable).
type AuxiliaryRole string

const (
	// RoleBundleFormed marks a "this bundle instance was formed" binary.
	RoleBundleFormed AuxiliaryRole = "bundle_formed"
	// RolePosition marks a positional "item occupies position p" binary.
	RolePosition AuxiliaryRole = "position"
	// RoleCheapest marks a "this item is the cheapest in its bundle" binary.
	RoleCheapest AuxiliaryRole = "cheapest"
	// RoleTierActive marks a tiered-threshold "tier k is active" binary.
	RoleTierActive AuxiliaryRole = "tier_active"
	// RoleContributes marks a "item contributes to tier k" binary.
	RoleContributes AuxiliaryRole = "contributes"
	// RoleDiscountAssigned marks a "item is discounted by tier k" binary.
	RoleDiscountAssigned AuxiliaryRole = "discount_assigned"
)

// ConstraintKind labels the role of a promotion-registered constraint, for
// observers rendering a formulation.
type ConstraintKind string

const (
	// ConstraintBudgetApplicationLimit caps the number of applications.
	ConstraintBudgetApplicationLimit ConstraintKind = "budget_application_limit"
	// ConstraintBudgetMonetaryLimit caps total discount amount.
	ConstraintBudgetMonetaryLimit ConstraintKind = "budget_monetary_limit"
	// ConstraintSlotSize enforces a Mix-and-Match slot's arity or a
	// Positional bundle's size.
	ConstraintSlotSize ConstraintKind = "slot_size"
	// ConstraintOrdering enforces price ordering: Positional position order
	// and the Mix-and-Match / TieredThreshold "is cheapest" selection.
	ConstraintOrdering ConstraintKind = "ordering"
	// ConstraintTierThreshold enforces a TieredThreshold activation bound.
	ConstraintTierThreshold ConstraintKind = "tier_threshold"
	// ConstraintDiscountAssignment bounds a discount variable by tier activity.
	ConstraintDiscountAssignment ConstraintKind = "discount_assignment"
)

// GraphNode is the minimal description of a graph layer an observer needs
// to render layer-begin/layer-end notifications around a solve. Defined
// here (rather than imported from the graph package) to avoid a dependency
// cycle: graph depends on ilp, not the reverse.
type GraphNode struct {
	LayerKey     string
	PromotionKeys []arena.Key
}

// Observer is a passive sink invoked during compilation and solving. The
// solver never branches on observer identity or return values; observer
// output exists purely for debugging, rendering, and testing (spec.md
// §4.2).
type Observer interface {
	// OnPresenceVariable fires once per item when its presence variable is
	// allocated at State construction.
	OnPresenceVariable(itemIdx int, v Variable)

	// OnPromotionVariable fires when a promotion compiler allocates a
	// variable that directly represents an item's participation (e.g.
	// DirectDiscount's x_{promo,i}).
	OnPromotionVariable(key arena.Key, itemIdx int, v Variable, coef float64, metadata map[string]any)

	// OnAuxiliaryVariable fires for variables that don't directly rewrite
	// an item's price but support the formulation (bundle counters,
	// position variables, tier-active binaries, ...).
	OnAuxiliaryVariable(key arena.Key, v Variable, role AuxiliaryRole, pos *int, state string)

	// OnObjectiveTerm fires for every coef*var contribution to the
	// objective, including presence variables.
	OnObjectiveTerm(v Variable, coef float64)

	// OnExclusivityConstraint fires for the solver driver's per-item
	// exclusivity constraint (spec.md §4.9) and for a TieredThreshold
	// promotion's per-item cross-tier contribution constraint.
	OnExclusivityConstraint(itemIdx int, expr Expr)

	// OnPromotionConstraint fires for every constraint a promotion
	// compiler registers beyond exclusivity (budgets, slot sizes,
	// ordering, tier thresholds, ...).
	OnPromotionConstraint(key arena.Key, kind ConstraintKind, expr Expr, relation Relation, rhs float64)

	// OnLayerBegin fires when the graph evaluator starts solving a layer.
	OnLayerBegin(layerKey string, node GraphNode)

	// OnLayerEnd fires when the graph evaluator finishes solving a layer.
	OnLayerEnd()
}

// NoopObserver implements Observer with no-op methods. It is the default
// used whenever a caller passes a nil Observer.
type NoopObserver struct{}

func (NoopObserver) OnPresenceVariable(int, Variable)                                         {}
func (NoopObserver) OnPromotionVariable(arena.Key, int, Variable, float64, map[string]any)     {}
func (NoopObserver) OnAuxiliaryVariable(arena.Key, Variable, AuxiliaryRole, *int, string)       {}
func (NoopObserver) OnObjectiveTerm(Variable, float64)                                         {}
func (NoopObserver) OnExclusivityConstraint(int, Expr)                                         {}
func (NoopObserver) OnPromotionConstraint(arena.Key, ConstraintKind, Expr, Relation, float64)   {}
func (NoopObserver) OnLayerBegin(string, GraphNode)                                            {}
func (NoopObserver) OnLayerEnd()                                                                {}

var _ Observer = NoopObserver{}
