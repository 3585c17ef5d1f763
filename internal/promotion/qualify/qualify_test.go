package qualify

import (
	"testing"

	"github.com/mdcpepper/lattice/internal/promotion/tags"
	"github.com/mdcpepper/lattice/pkg/testutil"
)

func TestEmptyQualificationMatchesAll(t *testing.T) {
	q := MatchAll()
	itemTags := tags.New("peak", "snack")

	testutil.AssertTrue(t, q.Matches(itemTags), "empty qualification should match all")
}

func TestSupportsNestedBooleanGroups(t *testing.T) {
	q := Qualification{
		Op: And,
		Rules: []Rule{
			HasAll{Tags: tags.New("peak", "snack")},
			Group{Qualification: Qualification{
				Op: Or,
				Rules: []Rule{
					HasAny{Tags: tags.New("member", "staff")},
					HasNone{Tags: tags.New("excluded")},
				},
			}},
		},
	}

	testutil.AssertTrue(t, q.Matches(tags.New("peak", "snack", "member")), "member should match")
	testutil.AssertTrue(t, q.Matches(tags.New("peak", "snack")), "neither member nor excluded should match")
	testutil.AssertFalse(t, q.Matches(tags.New("peak", "member")), "missing snack should not match")
	testutil.AssertFalse(t, q.Matches(tags.New("peak", "snack", "excluded")), "excluded should not match")
}

func TestHasAllEmptyTagsMatchesEverything(t *testing.T) {
	r := HasAll{}
	testutil.AssertTrue(t, r.Matches(tags.New("anything")), "empty HasAll matches all")
}

func TestHasAnyEmptyTagsMatchesNothing(t *testing.T) {
	r := HasAny{}
	testutil.AssertFalse(t, r.Matches(tags.New("anything")), "empty HasAny matches nothing")
}

func TestHasNoneEmptyTagsMatchesEverything(t *testing.T) {
	r := HasNone{}
	testutil.AssertTrue(t, r.Matches(tags.New("anything")), "empty HasNone matches all")
}

func TestMatchAnyDegradesToMatchAllWhenEmpty(t *testing.T) {
	q := MatchAny(tags.Collection{})
	testutil.AssertTrue(t, q.Matches(tags.New("anything")), "MatchAny with no tags matches all")
}
