// Package qualify implements the nested boolean tag qualification rules
// used by promotions and mix-and-match slots (spec.md §3, §4.3), grounded
// on original_source/crates/core/src/promotions/qualification.rs.
package qualify

import "github.com/mdcpepper/lattice/internal/promotion/tags"

// BoolOp is the boolean operation combining a Qualification's rules.
type BoolOp int

const (
	// And requires every child rule to match.
	And BoolOp = iota
	// Or requires at least one child rule to match.
	Or
)

// Rule is a single qualification predicate. The four built-in kinds below
// satisfy this interface; callers may supply their own implementation at
// the boundary (see internal/promotion/qualext) without the core ever
// constructing one itself.
type Rule interface {
	Matches(itemTags tags.Collection) bool
}

// Qualification is a tree of Rules combined by a single BoolOp. Empty
// Rules matches every item.
type Qualification struct {
	Op    BoolOp
	Rules []Rule
}

// MatchAll returns a Qualification that matches every item.
func MatchAll() Qualification {
	return Qualification{Op: And}
}

// MatchAny returns a Qualification requiring at least one of the given
// tags to be present. An empty tag set degrades to MatchAll, matching the
// original implementation's behavior.
func MatchAny(t tags.Collection) Qualification {
	if t.IsEmpty() {
		return MatchAll()
	}
	return Qualification{Op: And, Rules: []Rule{HasAny{Tags: t}}}
}

// Matches evaluates the qualification against an item's tag set.
func (q Qualification) Matches(itemTags tags.Collection) bool {
	if len(q.Rules) == 0 {
		return true
	}
	switch q.Op {
	case Or:
		for _, r := range q.Rules {
			if r.Matches(itemTags) {
				return true
			}
		}
		return false
	default: // And
		for _, r := range q.Rules {
			if !r.Matches(itemTags) {
				return false
			}
		}
		return true
	}
}

// HasAll requires the item to have every tag in Tags. An empty Tags
// matches everything.
type HasAll struct {
	Tags tags.Collection
}

// Matches implements Rule.
func (r HasAll) Matches(itemTags tags.Collection) bool {
	if r.Tags.IsEmpty() {
		return true
	}
	return itemTags.Intersection(r.Tags).Len() == r.Tags.Len()
}

// HasAny requires the item to have at least one tag in Tags. An empty
// Tags matches nothing.
type HasAny struct {
	Tags tags.Collection
}

// Matches implements Rule.
func (r HasAny) Matches(itemTags tags.Collection) bool {
	if r.Tags.IsEmpty() {
		return false
	}
	return itemTags.Intersects(r.Tags)
}

// HasNone requires the item to have none of the tags in Tags. An empty
// Tags matches everything.
type HasNone struct {
	Tags tags.Collection
}

// Matches implements Rule.
func (r HasNone) Matches(itemTags tags.Collection) bool {
	if r.Tags.IsEmpty() {
		return true
	}
	return !itemTags.Intersects(r.Tags)
}

// Group nests another Qualification as a single rule.
type Group struct {
	Qualification Qualification
}

// Matches implements Rule.
func (g Group) Matches(itemTags tags.Collection) bool {
	return g.Qualification.Matches(itemTags)
}
