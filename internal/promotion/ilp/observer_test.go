package ilp

import "github.com/mdcpepper/lattice/internal/promotion/arena"

// countingObserver counts invocations per callback kind, mirroring the
// CountingObserver test pattern from
// original_source/crates/core/src/graph/evaluation.rs. Used to assert a
// solve visited every expected callback exactly the right number of times,
// not just to assert on the final solution.
type countingObserver struct {
	presenceVariables      int
	promotionVariables     int
	auxiliaryVariables     int
	objectiveTerms         int
	exclusivityConstraints int
	promotionConstraints   int
	layerBegins            int
	layerEnds              int
}

func (c *countingObserver) OnPresenceVariable(int, Variable) {
	c.presenceVariables++
}

func (c *countingObserver) OnPromotionVariable(arena.Key, int, Variable, float64, map[string]any) {
	c.promotionVariables++
}

func (c *countingObserver) OnAuxiliaryVariable(arena.Key, Variable, AuxiliaryRole, *int, string) {
	c.auxiliaryVariables++
}

func (c *countingObserver) OnObjectiveTerm(Variable, float64) {
	c.objectiveTerms++
}

func (c *countingObserver) OnExclusivityConstraint(int, Expr) {
	c.exclusivityConstraints++
}

func (c *countingObserver) OnPromotionConstraint(arena.Key, ConstraintKind, Expr, Relation, float64) {
	c.promotionConstraints++
}

func (c *countingObserver) OnLayerBegin(string, GraphNode) {
	c.layerBegins++
}

func (c *countingObserver) OnLayerEnd() {
	c.layerEnds++
}

var _ Observer = (*countingObserver)(nil)
