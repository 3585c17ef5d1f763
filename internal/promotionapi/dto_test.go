package promotionapi

import (
	"testing"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/compile"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/pkg/testutil"
)

func TestToItemGroup(t *testing.T) {
	items := []ItemDTO{
		{ProductID: "sku-1", PriceMinor: 1000, Tags: []string{"sale"}},
		{ProductID: "sku-2", PriceMinor: 500},
	}

	group, err := toItemGroup("GBP", items)
	testutil.AssertNoError(t, err, "toItemGroup")
	testutil.AssertEqual(t, group.Len(), 2, "item count")

	total, err := group.Total()
	testutil.AssertNoError(t, err, "group total")
	testutil.AssertEqual(t, total.Minor(), int64(1500), "total minor")
}

func TestToQualification_NilDegradesToMatchAll(t *testing.T) {
	qual, err := toQualification(nil)
	testutil.AssertNoError(t, err, "toQualification")
	testutil.AssertEqual(t, len(qual.Rules), 0, "nil qualification has no rules")
}

func TestToQualification_NestedGroup(t *testing.T) {
	dto := &QualificationDTO{
		Op: "or",
		Rules: []RuleDTO{
			{Kind: "has_all", Tags: []string{"sale"}},
			{
				Kind: "group",
				Group: &QualificationDTO{
					Op:    "and",
					Rules: []RuleDTO{{Kind: "has_none", Tags: []string{"clearance"}}},
				},
			},
		},
	}

	qual, err := toQualification(dto)
	testutil.AssertNoError(t, err, "toQualification")
	testutil.AssertEqual(t, len(qual.Rules), 2, "rule count")
}

func TestToRule_UnknownKindErrors(t *testing.T) {
	_, err := toRule(RuleDTO{Kind: "bogus"})
	testutil.AssertError(t, err, "unknown rule kind should error")
}

func TestToRule_GroupWithoutNestedQualificationErrors(t *testing.T) {
	_, err := toRule(RuleDTO{Kind: "group"})
	testutil.AssertError(t, err, "group rule without Group should error")
}

func TestToBudget(t *testing.T) {
	limit := int64(5000)
	appLimit := uint32(3)

	b := toBudget(&BudgetDTO{ApplicationLimit: &appLimit, MonetaryLimit: &limit}, money.Currency("GBP"))

	testutil.AssertNotNil(t, b.ApplicationLimit, "application limit set")
	testutil.AssertNotNil(t, b.MonetaryLimit, "monetary limit set")
	testutil.AssertEqual(t, b.MonetaryLimit.Minor(), int64(5000), "monetary limit value")
}

func TestToBudget_NilIsUnlimited(t *testing.T) {
	b := toBudget(nil, money.Currency("GBP"))
	testutil.AssertNil(t, b.ApplicationLimit, "nil budget has no application limit")
	testutil.AssertNil(t, b.MonetaryLimit, "nil budget has no monetary limit")
}

func TestToPromotion_DirectDiscount(t *testing.T) {
	a := arena.New()
	key := a.Insert()

	promo, err := toPromotion(key, money.Currency("GBP"), PromotionDTO{
		ID:      "p1",
		Type:    "direct_discount",
		Kind:    "percentage_off",
		Percent: 0.1,
	})
	testutil.AssertNoError(t, err, "toPromotion direct_discount")

	dd, ok := promo.(*compile.DirectDiscount)
	testutil.AssertTrue(t, ok, "expected *compile.DirectDiscount")
	testutil.AssertEqual(t, dd.Kind, compile.PercentageOff, "discount kind")
}

func TestToPromotion_UnknownTypeErrors(t *testing.T) {
	a := arena.New()
	_, err := toPromotion(a.Insert(), money.Currency("GBP"), PromotionDTO{ID: "p1", Type: "bogus"})
	testutil.AssertError(t, err, "unknown promotion type should error")
}

func TestToPromotions_LabelsByClientID(t *testing.T) {
	a := arena.New()
	promotions, labels, err := toPromotions(a, money.Currency("GBP"), []PromotionDTO{
		{ID: "ten-percent-off", Type: "direct_discount", Kind: "percentage_off", Percent: 0.1},
	})
	testutil.AssertNoError(t, err, "toPromotions")
	testutil.AssertEqual(t, len(promotions), 1, "promotion count")
	testutil.AssertEqual(t, labels[promotions[0].Key()], "ten-percent-off", "label attribution")
}

func TestToGraph_UnknownPromotionIDErrors(t *testing.T) {
	_, err := toGraph([]GraphNodeDTO{
		{LayerKey: "layer-1", PromotionIDs: []string{"missing"}},
	}, map[string]compile.Promotion{}, nil)
	testutil.AssertError(t, err, "graph referencing unknown promotion id should error")
}

func TestToGraph_OutOfRangeEdgeErrors(t *testing.T) {
	_, err := toGraph([]GraphNodeDTO{
		{LayerKey: "layer-1", Edges: []GraphEdgeDTO{{To: 5, Tag: "all"}}},
	}, map[string]compile.Promotion{}, nil)
	testutil.AssertError(t, err, "edge to out-of-range node should error")
}

func TestToGraph_SingleNodeIsRoot(t *testing.T) {
	g, err := toGraph([]GraphNodeDTO{
		{LayerKey: "layer-1"},
	}, map[string]compile.Promotion{}, nil)
	testutil.AssertNoError(t, err, "toGraph single node")
	testutil.AssertNotNil(t, g, "graph built")
}
