package tags

import (
	"testing"

	"github.com/mdcpepper/lattice/pkg/testutil"
)

func TestNewDeduplicatesAndSorts(t *testing.T) {
	c := New("snack", "fruit", "snack", "bakery")
	testutil.AssertEqual(t, c.Values(), []string{"bakery", "fruit", "snack"}, "sorted unique values")
	testutil.AssertEqual(t, c.Len(), 3, "length")
}

func TestIntersectsAndIntersection(t *testing.T) {
	a := New("fruit", "snack")
	b := New("snack", "bakery")

	testutil.AssertTrue(t, a.Intersects(b), "should intersect on snack")
	testutil.AssertEqual(t, a.Intersection(b).Values(), []string{"snack"}, "intersection")

	c := New("dairy")
	testutil.AssertFalse(t, a.Intersects(c), "should not intersect")
	testutil.AssertTrue(t, a.Intersection(c).IsEmpty(), "empty intersection")
}

func TestUnionIsIdentityOverEmpty(t *testing.T) {
	a := New("fruit")
	empty := New()

	testutil.AssertEqual(t, a.Union(empty).Values(), a.Values(), "union with empty is identity")
	testutil.AssertEqual(t, empty.Union(a).Values(), a.Values(), "union with empty is identity (reversed)")
}

func TestSymmetricDifference(t *testing.T) {
	a := New("fruit", "snack")
	b := New("snack", "bakery")

	testutil.AssertEqual(t, a.SymmetricDifference(b).Values(), []string{"bakery", "fruit"}, "symmetric difference")
}

func TestAddRemove(t *testing.T) {
	c := New("fruit")
	c = c.Add("snack")
	testutil.AssertTrue(t, c.Contains("snack"), "contains after add")

	c = c.Remove("fruit")
	testutil.AssertFalse(t, c.Contains("fruit"), "removed")
	testutil.AssertEqual(t, c.Len(), 1, "length after remove")
}
