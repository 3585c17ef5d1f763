// Package promotionapi implements the demo HTTP surface described in
// SPEC_FULL.md §6.1: a single POST /v1/baskets/solve resource plus a
// liveness probe, grounded on the teacher's ports/http handler idiom
// (request decode -> validate -> call domain -> encode) and on
// original_source's php-ext budget wire shape
// ({application_limit, monetary_limit}). Money travels as minor-unit
// integers (price_minor, amount_minor), not as {amount, currency} objects.
package promotionapi

import (
	"fmt"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/compile"
	"github.com/mdcpepper/lattice/internal/promotion/graph"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/qualify"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
)

// SolveRequest is the decoded body of POST /v1/baskets/solve.
type SolveRequest struct {
	Currency   string         `json:"currency" validate:"required,len=3"`
	Items      []ItemDTO      `json:"items" validate:"required,min=1,dive"`
	Promotions []PromotionDTO `json:"promotions" validate:"dive"`
	Graph      []GraphNodeDTO `json:"graph,omitempty"`
}

// ItemDTO mirrors basket.Item's wire shape.
type ItemDTO struct {
	ProductID  string   `json:"product_id" validate:"required"`
	PriceMinor int64    `json:"price_minor"`
	Tags       []string `json:"tags,omitempty"`
}

// BudgetDTO follows the optionality of original_source's php-ext budget
// wire shape {application_limit: Option<i64>, monetary_limit: Option<Money>};
// the monetary limit is carried as a minor-unit integer under
// monetary_limit_minor rather than as a Money object.
type BudgetDTO struct {
	ApplicationLimit *uint32 `json:"application_limit,omitempty"`
	MonetaryLimit    *int64  `json:"monetary_limit_minor,omitempty"`
}

// QualificationDTO is the wire shape of qualify.Qualification: a boolean
// op over a list of rules, each either a tag predicate or a nested group.
type QualificationDTO struct {
	Op    string    `json:"op" validate:"omitempty,oneof=and or"`
	Rules []RuleDTO `json:"rules,omitempty" validate:"dive"`
}

// RuleDTO is one node of a QualificationDTO's rule list.
type RuleDTO struct {
	Kind  string            `json:"kind" validate:"required,oneof=has_all has_any has_none group"`
	Tags  []string          `json:"tags,omitempty"`
	Group *QualificationDTO `json:"group,omitempty"`
}

// SlotDTO mirrors compile.Slot.
type SlotDTO struct {
	Qualification QualificationDTO `json:"qualification"`
	Min           uint32           `json:"min"`
	Max           *uint32          `json:"max,omitempty"`
}

// ThresholdDTO mirrors compile.Threshold.
type ThresholdDTO struct {
	MonetaryMinor *int64  `json:"monetary_minor,omitempty"`
	ItemCount     *uint32 `json:"item_count,omitempty"`
}

// TierDTO mirrors compile.Tier.
type TierDTO struct {
	LowerThreshold            ThresholdDTO     `json:"lower_threshold"`
	UpperThreshold            *ThresholdDTO    `json:"upper_threshold,omitempty"`
	ContributionQualification QualificationDTO `json:"contribution_qualification"`
	DiscountQualification     QualificationDTO `json:"discount_qualification"`
	Discount                  string           `json:"discount"`
	Percent                   float64          `json:"percent,omitempty"`
	AmountMinor               int64            `json:"amount_minor,omitempty"`
}

// PromotionDTO is a tagged union over the four built-in compilers
// (spec.md §4.4-§4.8), discriminated by Type.
type PromotionDTO struct {
	ID            string            `json:"id" validate:"required"`
	Type          string            `json:"type" validate:"required,oneof=direct_discount mix_and_match positional tiered_threshold"`
	Qualification *QualificationDTO `json:"qualification,omitempty"`
	Kind          string            `json:"kind,omitempty"`
	Percent       float64           `json:"percent,omitempty"`
	AmountMinor   int64             `json:"amount_minor,omitempty"`
	Budget        *BudgetDTO        `json:"budget,omitempty"`

	// Positional
	N                 uint32   `json:"n,omitempty"`
	DiscountPositions []uint32 `json:"discount_positions,omitempty"`

	// MixAndMatch
	Slots []SlotDTO `json:"slots,omitempty"`

	// TieredThreshold
	Tiers []TierDTO `json:"tiers,omitempty"`
}

// GraphNodeDTO is one layer of the optional promotion graph (spec.md §4.10,
// §4.2). Node 0 is always the root. When Graph is omitted entirely, the
// handler builds no graph and calls solve.Solve once over every supplied
// promotion, in request order (spec.md §4.9's plain solver path).
type GraphNodeDTO struct {
	LayerKey     string         `json:"layer_key" validate:"required"`
	PromotionIDs []string       `json:"promotion_ids"`
	OutputMode   string         `json:"output_mode" validate:"omitempty,oneof=pass_through split"`
	Edges        []GraphEdgeDTO `json:"edges,omitempty"`
}

// GraphEdgeDTO is one directed edge from its owning node to To.
type GraphEdgeDTO struct {
	To  int    `json:"to"`
	Tag string `json:"tag" validate:"required,oneof=all participating non_participating"`
}

// ReceiptDTO is the response body: the solved receipt (spec.md §4.11)
// plus an echo of which client-supplied promotion IDs contributed savings.
type ReceiptDTO struct {
	SubtotalMinor int64                `json:"subtotal_minor"`
	TotalMinor    int64                `json:"total_minor"`
	SavingsMinor  int64                `json:"savings_minor"`
	Currency      string               `json:"currency"`
	Promotions    []PromotionSavingsDTO `json:"promotions"`
}

// PromotionSavingsDTO attributes savings back to a client-supplied
// promotion id.
type PromotionSavingsDTO struct {
	PromotionID  string `json:"promotion_id"`
	SavingsMinor int64  `json:"savings_minor"`
}

// toItemGroup converts the decoded items into a basket.ItemGroup.
func toItemGroup(currency string, items []ItemDTO) (basket.ItemGroup, error) {
	cur := money.Currency(currency)
	converted := make([]basket.Item, len(items))
	for i, it := range items {
		converted[i] = basket.Item{
			ProductID: it.ProductID,
			Price:     money.FromMinor(it.PriceMinor, cur),
			Tags:      tags.New(it.Tags...),
		}
	}
	return basket.NewItemGroup(cur, converted)
}

// toQualification converts a QualificationDTO into a qualify.Qualification.
// A nil DTO degrades to qualify.MatchAll, matching the core's own
// "empty Rules matches every item" convention.
func toQualification(dto *QualificationDTO) (qualify.Qualification, error) {
	if dto == nil {
		return qualify.MatchAll(), nil
	}
	op := qualify.And
	if dto.Op == "or" {
		op = qualify.Or
	}
	rules := make([]qualify.Rule, 0, len(dto.Rules))
	for _, r := range dto.Rules {
		rule, err := toRule(r)
		if err != nil {
			return qualify.Qualification{}, err
		}
		rules = append(rules, rule)
	}
	return qualify.Qualification{Op: op, Rules: rules}, nil
}

func toRule(dto RuleDTO) (qualify.Rule, error) {
	switch dto.Kind {
	case "has_all":
		return qualify.HasAll{Tags: tags.New(dto.Tags...)}, nil
	case "has_any":
		return qualify.HasAny{Tags: tags.New(dto.Tags...)}, nil
	case "has_none":
		return qualify.HasNone{Tags: tags.New(dto.Tags...)}, nil
	case "group":
		if dto.Group == nil {
			return nil, fmt.Errorf("rule kind %q requires a group", dto.Kind)
		}
		nested, err := toQualification(dto.Group)
		if err != nil {
			return nil, err
		}
		return qualify.Group{Qualification: nested}, nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", dto.Kind)
	}
}

func toBudget(dto *BudgetDTO, currency money.Currency) compile.Budget {
	if dto == nil {
		return compile.Unlimited()
	}
	b := compile.Budget{ApplicationLimit: dto.ApplicationLimit}
	if dto.MonetaryLimit != nil {
		limit := money.FromMinor(*dto.MonetaryLimit, currency)
		b.MonetaryLimit = &limit
	}
	return b
}

func toThreshold(dto ThresholdDTO, currency money.Currency) compile.Threshold {
	t := compile.Threshold{ItemCount: dto.ItemCount}
	if dto.MonetaryMinor != nil {
		m := money.FromMinor(*dto.MonetaryMinor, currency)
		t.Monetary = &m
	}
	return t
}

func toMixAndMatchDiscountKind(kind string) (compile.MixAndMatchDiscountKind, error) {
	switch kind {
	case "percent_each_item":
		return compile.PercentEachItem, nil
	case "amount_off_each_item":
		return compile.AmountOffEachItem, nil
	case "fixed_price_each_item":
		return compile.FixedPriceEachItem, nil
	case "percent_cheapest":
		return compile.PercentCheapest, nil
	case "fixed_cheapest":
		return compile.FixedCheapest, nil
	case "amount_off_total":
		return compile.AmountOffTotal, nil
	case "fixed_total":
		return compile.FixedTotal, nil
	default:
		return 0, fmt.Errorf("unknown mix-and-match discount kind %q", kind)
	}
}

// toPromotions converts the request's promotions into compile.Promotion
// values, returning a map from each promotion's arena.Key to the
// client-supplied ID so the receipt can attribute savings back to it.
func toPromotions(a *arena.Arena, currency money.Currency, dtos []PromotionDTO) ([]compile.Promotion, map[arena.Key]string, error) {
	promotions := make([]compile.Promotion, 0, len(dtos))
	labels := make(map[arena.Key]string, len(dtos))

	for _, dto := range dtos {
		key := a.Insert()
		labels[key] = dto.ID

		promo, err := toPromotion(key, currency, dto)
		if err != nil {
			return nil, nil, fmt.Errorf("promotion %q: %w", dto.ID, err)
		}
		promotions = append(promotions, promo)
	}
	return promotions, labels, nil
}

func toPromotion(key arena.Key, currency money.Currency, dto PromotionDTO) (compile.Promotion, error) {
	budget := toBudget(dto.Budget, currency)

	switch dto.Type {
	case "direct_discount":
		qual, err := toQualification(dto.Qualification)
		if err != nil {
			return nil, err
		}
		kind, err := directDiscountKind(dto.Kind)
		if err != nil {
			return nil, err
		}
		return &compile.DirectDiscount{
			PromotionKey:  key,
			Qualification: qual,
			Kind:          kind,
			Percent:       dto.Percent,
			Amount:        money.FromMinor(dto.AmountMinor, currency),
			PromoBudget:   budget,
		}, nil

	case "positional":
		qual, err := toQualification(dto.Qualification)
		if err != nil {
			return nil, err
		}
		kind, err := positionalKind(dto.Kind)
		if err != nil {
			return nil, err
		}
		positions := make(map[uint32]bool, len(dto.DiscountPositions))
		for _, p := range dto.DiscountPositions {
			positions[p] = true
		}
		return &compile.Positional{
			PromotionKey:      key,
			Qualification:     qual,
			N:                 dto.N,
			DiscountPositions: positions,
			Kind:              kind,
			Percent:           dto.Percent,
			Amount:            money.FromMinor(dto.AmountMinor, currency),
			PromoBudget:       budget,
		}, nil

	case "mix_and_match":
		kind, err := toMixAndMatchDiscountKind(dto.Kind)
		if err != nil {
			return nil, err
		}
		slots := make([]compile.Slot, 0, len(dto.Slots))
		for _, s := range dto.Slots {
			qual, err := toQualification(&s.Qualification)
			if err != nil {
				return nil, err
			}
			slots = append(slots, compile.Slot{Qualification: qual, Min: s.Min, Max: s.Max})
		}
		return &compile.MixAndMatch{
			PromotionKey: key,
			Slots:        slots,
			Discount:     kind,
			Percent:      dto.Percent,
			Amount:       money.FromMinor(dto.AmountMinor, currency),
			PromoBudget:  budget,
		}, nil

	case "tiered_threshold":
		tiers := make([]compile.Tier, 0, len(dto.Tiers))
		for _, t := range dto.Tiers {
			contribQual, err := toQualification(&t.ContributionQualification)
			if err != nil {
				return nil, err
			}
			discountQual, err := toQualification(&t.DiscountQualification)
			if err != nil {
				return nil, err
			}
			kind, err := toMixAndMatchDiscountKind(t.Discount)
			if err != nil {
				return nil, err
			}
			var upper *compile.Threshold
			if t.UpperThreshold != nil {
				th := toThreshold(*t.UpperThreshold, currency)
				upper = &th
			}
			tiers = append(tiers, compile.Tier{
				LowerThreshold:            toThreshold(t.LowerThreshold, currency),
				UpperThreshold:            upper,
				ContributionQualification: contribQual,
				DiscountQualification:     discountQual,
				Discount:                  kind,
				Percent:                   t.Percent,
				Amount:                    money.FromMinor(t.AmountMinor, currency),
			})
		}
		return &compile.TieredThreshold{
			PromotionKey: key,
			Tiers:        tiers,
			PromoBudget:  budget,
		}, nil

	default:
		return nil, fmt.Errorf("unknown promotion type %q", dto.Type)
	}
}

func directDiscountKind(kind string) (compile.DirectDiscountKind, error) {
	switch kind {
	case "percentage_off":
		return compile.PercentageOff, nil
	case "amount_off":
		return compile.AmountOff, nil
	case "amount_override":
		return compile.AmountOverride, nil
	default:
		return 0, fmt.Errorf("unknown direct discount kind %q", kind)
	}
}

func positionalKind(kind string) (compile.PositionalDiscountKind, error) {
	switch kind {
	case "percent_off":
		return compile.PosPercentOff, nil
	case "amount_off":
		return compile.PosAmountOff, nil
	case "amount_override":
		return compile.PosAmountOverride, nil
	default:
		return 0, fmt.Errorf("unknown positional discount kind %q", kind)
	}
}

// toGraph builds an internal/promotion/graph.Graph from the request's node
// list, indexing promotions by client-supplied ID. Node 0 is always root.
func toGraph(nodes []GraphNodeDTO, promotionsByID map[string]compile.Promotion, back backend.Backend) (*graph.Graph, error) {
	b := graph.NewBuilder()
	ids := make([]graph.NodeID, len(nodes))

	for i, n := range nodes {
		mode := graph.PassThrough
		if n.OutputMode == "split" {
			mode = graph.Split
		}
		promos := make([]compile.Promotion, 0, len(n.PromotionIDs))
		for _, pid := range n.PromotionIDs {
			p, ok := promotionsByID[pid]
			if !ok {
				return nil, fmt.Errorf("graph node %q references unknown promotion id %q", n.LayerKey, pid)
			}
			promos = append(promos, p)
		}
		ids[i] = b.AddNode(n.LayerKey, promos, mode, back)
	}

	for i, n := range nodes {
		for _, e := range n.Edges {
			if e.To < 0 || e.To >= len(ids) {
				return nil, fmt.Errorf("graph node %q has edge to out-of-range node %d", n.LayerKey, e.To)
			}
			tag := graph.All
			switch e.Tag {
			case "participating":
				tag = graph.Participating
			case "non_participating":
				tag = graph.NonParticipating
			}
			b.AddEdge(ids[i], ids[e.To], tag)
		}
	}

	if len(ids) > 0 {
		b.SetRoot(ids[0])
	}

	return b.Build()
}
