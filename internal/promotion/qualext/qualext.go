// Package qualext implements an optional qualify.Rule backed by a compiled
// expr-lang expression (spec.md §4.3 extension point), wrapping the
// teacher's pkg/rules.CompiledRule directly rather than reimplementing its
// compile-once/evaluate-many pattern. The core never constructs one of
// these itself; callers opt in at the boundary when tag-only
// HasAll/HasAny/HasNone/Group qualification isn't expressive enough (e.g.
// "at least 3 distinct tags" or price-aware rules supplied via Extra).
package qualext

import (
	"github.com/mdcpepper/lattice/internal/promotion/qualify"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
	"github.com/mdcpepper/lattice/pkg/rules"
)

// ExprRule is a qualify.Rule backed by a pkg/rules.CompiledRule.
type ExprRule struct {
	extra    map[string]any
	compiled *rules.CompiledRule
}

// NewExprRule compiles expression via pkg/rules.NewRule, to be evaluated
// against an env map with a "Tags" key (the item's tags as a string slice)
// and any caller-supplied extra fields merged in alongside it (spec.md §9
// Open Question: "qualification beyond tags"). name and description are
// forwarded to pkg/rules.NewRule for diagnostics; they play no role in
// Matches.
func NewExprRule(name, expression, description string, extra map[string]any) (*ExprRule, error) {
	compiled, err := rules.NewRule(name, expression, description)
	if err != nil {
		return nil, err
	}
	return &ExprRule{extra: extra, compiled: compiled}, nil
}

// Matches implements qualify.Rule.
func (r *ExprRule) Matches(itemTags tags.Collection) bool {
	env := make(map[string]interface{}, len(r.extra)+1)
	for k, v := range r.extra {
		env[k] = v
	}
	env["Tags"] = itemTags.Values()

	matched, err := r.compiled.Evaluate(env)
	if err != nil {
		return false
	}
	return matched
}

// Expression returns the source expression this rule was compiled from.
func (r *ExprRule) Expression() string {
	return r.compiled.GetExpression()
}

var _ qualify.Rule = (*ExprRule)(nil)
