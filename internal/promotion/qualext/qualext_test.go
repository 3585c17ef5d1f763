package qualext

import (
	"testing"

	"github.com/mdcpepper/lattice/internal/promotion/qualify"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
	"github.com/mdcpepper/lattice/pkg/testutil"
)

func TestExprRuleMatchesOnTagCount(t *testing.T) {
	rule, err := NewExprRule("at-least-two-tags", "len(Tags) >= 2", "requires at least two tags", nil)
	testutil.AssertNoError(t, err, "compile expression")

	testutil.AssertTrue(t, rule.Matches(tags.New("fruit", "fresh")), "two tags satisfies >= 2")
	testutil.AssertFalse(t, rule.Matches(tags.New("fruit")), "one tag does not satisfy >= 2")
}

func TestExprRuleUsesExtraEnvironment(t *testing.T) {
	rule, err := NewExprRule("gold-tier", `tier == "gold"`, "requires gold tier", map[string]any{"tier": "gold"})
	testutil.AssertNoError(t, err, "compile expression")

	testutil.AssertTrue(t, rule.Matches(tags.New("anything")), "extra field drives the match")
}

func TestExprRuleSatisfiesQualifyRule(t *testing.T) {
	rule, err := NewExprRule("always-true", "true", "always matches", nil)
	testutil.AssertNoError(t, err, "compile expression")

	var q qualify.Rule = rule
	testutil.AssertTrue(t, q.Matches(tags.New()), "ExprRule is usable as a qualify.Rule")
}

func TestNewExprRuleRejectsInvalidExpression(t *testing.T) {
	_, err := NewExprRule("bad-syntax", "this is not valid expr syntax {{{", "intentionally broken", nil)
	testutil.AssertError(t, err, "invalid expression must fail to compile")
}
