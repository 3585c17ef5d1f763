// Package graph implements the layered DAG promotion evaluator
// (spec.md §4.10), grounded on
// original_source/crates/core/src/graph/evaluation.rs. No graph/DAG
// library appears anywhere in the reference corpus, so node storage and
// traversal are a deliberate, documented standard-library DFS.
package graph

import (
	"fmt"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/compile"
	"github.com/mdcpepper/lattice/internal/promotion/corerr"
	"github.com/mdcpepper/lattice/internal/promotion/ilp"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/result"
	"github.com/mdcpepper/lattice/internal/promotion/solve"
)

// OutputMode selects how a node routes its items to successors
// (spec.md §4.10).
type OutputMode int

const (
	// PassThrough forwards every item down the node's single All edge.
	PassThrough OutputMode = iota
	// Split partitions items by whether this layer rewrote them, routing
	// each partition down its own edge.
	Split
)

// EdgeTag labels a directed edge's routing role (spec.md §4.10).
type EdgeTag int

const (
	// All is the only edge a PassThrough node may carry.
	All EdgeTag = iota
	// Participating carries items a Split node rewrote.
	Participating
	// NonParticipating carries items a Split node left untouched.
	NonParticipating
)

// NodeID identifies a node within a Graph.
type NodeID int

// Node is one layer of the promotion graph.
type Node struct {
	id          NodeID
	LayerKey    string
	Promotions  []compile.Promotion
	OutputMode  OutputMode
	backend     backend.Backend
}

type edge struct {
	target NodeID
	tag    EdgeTag
}

// Graph is a built, validated layered DAG ready for evaluation.
type Graph struct {
	nodes []Node
	edges map[NodeID][]edge
	root  NodeID
}

// Builder assembles a Graph, validating structure at Build time
// (spec.md §4.10 builder invariants).
type Builder struct {
	nodes   []Node
	edges   map[NodeID][]edge
	rootSet bool
	root    NodeID
}

// NewBuilder returns an empty graph Builder.
func NewBuilder() *Builder {
	return &Builder{edges: make(map[NodeID][]edge)}
}

// AddNode registers a new layer node and returns its id for use in AddEdge
// and SetRoot.
func (b *Builder) AddNode(layerKey string, promotions []compile.Promotion, mode OutputMode, back backend.Backend) NodeID {
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, Node{id: id, LayerKey: layerKey, Promotions: promotions, OutputMode: mode, backend: back})
	return id
}

// AddEdge connects from -> to with the given tag.
func (b *Builder) AddEdge(from, to NodeID, tag EdgeTag) {
	b.edges[from] = append(b.edges[from], edge{target: to, tag: tag})
}

// SetRoot designates the graph's single entry node.
func (b *Builder) SetRoot(root NodeID) {
	b.root = root
	b.rootSet = true
}

// Build validates the accumulated structure and returns a Graph.
//
// Validated per spec.md §4.10: exactly one root; PassThrough nodes carry
// 0 or 1 All edge; Split nodes carry up to one Participating and one
// NonParticipating edge; no cycles.
func (b *Builder) Build() (*Graph, error) {
	if !b.rootSet {
		return nil, fmt.Errorf("%w: no root set", corerr.ErrGraphStructureInvalid)
	}
	if int(b.root) < 0 || int(b.root) >= len(b.nodes) {
		return nil, fmt.Errorf("%w: root node %d out of range", corerr.ErrGraphStructureInvalid, b.root)
	}

	for _, n := range b.nodes {
		out := b.edges[n.id]
		switch n.OutputMode {
		case PassThrough:
			if len(out) > 1 {
				return nil, fmt.Errorf("%w: node %q has %d edges, PassThrough allows at most 1", corerr.ErrGraphStructureInvalid, n.LayerKey, len(out))
			}
			for _, e := range out {
				if e.tag != All {
					return nil, fmt.Errorf("%w: node %q PassThrough edge must be tagged All", corerr.ErrGraphStructureInvalid, n.LayerKey)
				}
			}
		case Split:
			if len(out) > 2 {
				return nil, fmt.Errorf("%w: node %q has %d edges, Split allows at most 2", corerr.ErrGraphStructureInvalid, n.LayerKey, len(out))
			}
			seen := map[EdgeTag]bool{}
			for _, e := range out {
				if e.tag == All {
					return nil, fmt.Errorf("%w: node %q Split edge cannot be tagged All", corerr.ErrGraphStructureInvalid, n.LayerKey)
				}
				if seen[e.tag] {
					return nil, fmt.Errorf("%w: node %q has duplicate %v edge", corerr.ErrGraphStructureInvalid, n.LayerKey, e.tag)
				}
				seen[e.tag] = true
			}
		default:
			return nil, fmt.Errorf("%w: node %q has unknown output mode", corerr.ErrGraphStructureInvalid, n.LayerKey)
		}
	}

	if err := detectCycle(b.root, b.edges, len(b.nodes)); err != nil {
		return nil, err
	}

	return &Graph{nodes: b.nodes, edges: b.edges, root: b.root}, nil
}

func detectCycle(root NodeID, edges map[NodeID][]edge, numNodes int) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, numNodes)

	var visit func(n NodeID) error
	visit = func(n NodeID) error {
		color[n] = gray
		for _, e := range edges[n] {
			switch color[e.target] {
			case gray:
				return fmt.Errorf("%w: cycle detected through node %d", corerr.ErrGraphStructureInvalid, e.target)
			case white:
				if err := visit(e.target); err != nil {
					return err
				}
			}
		}
		color[n] = black
		return nil
	}

	return visit(root)
}

// TrackedItem is one item flowing through the graph, carrying its
// original basket index, current (possibly rewritten) item, and
// accumulated applications (spec.md §4.10).
type TrackedItem struct {
	OriginalIdx  int
	Item         basket.Item
	Applications []result.Application
}

func currentPrice(ti TrackedItem) money.Money {
	if len(ti.Applications) == 0 {
		return ti.Item.Price
	}
	return ti.Applications[len(ti.Applications)-1].FinalPrice
}

// newTrackedItems seeds a TrackedItem slice from a basket, with no
// accumulated applications.
func newTrackedItems(group basket.ItemGroup) ([]TrackedItem, error) {
	out := make([]TrackedItem, group.Len())
	for i := 0; i < group.Len(); i++ {
		item, err := group.Item(i)
		if err != nil {
			return nil, err
		}
		out[i] = TrackedItem{OriginalIdx: i, Item: item}
	}
	return out, nil
}

// Evaluate runs the graph's DFS traversal starting from its root, solving
// each promotion-bearing layer and routing items to successors
// (spec.md §4.10).
func Evaluate(g *Graph, group basket.ItemGroup, observer ilp.Observer) (result.LayeredResult, error) {
	if observer == nil {
		observer = ilp.NoopObserver{}
	}
	items, err := newTrackedItems(group)
	if err != nil {
		return result.LayeredResult{}, err
	}

	nextBundleID := 0
	final, err := evaluateNode(g, g.root, items, group.Currency(), &nextBundleID, observer)
	if err != nil {
		return result.LayeredResult{}, err
	}

	return assembleLayered(final, group)
}

func evaluateNode(g *Graph, n NodeID, items []TrackedItem, currency money.Currency, nextBundleID *int, observer ilp.Observer) ([]TrackedItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if int(n) < 0 || int(n) >= len(g.nodes) {
		return items, nil
	}
	node := g.nodes[n]

	if len(node.Promotions) == 0 {
		return routeToSuccessors(g, n, node.OutputMode, items, currency, nextBundleID, observer)
	}

	groupItems := make([]basket.Item, len(items))
	for i, ti := range items {
		groupItems[i] = ti.Item.WithPrice(currentPrice(ti))
	}
	layerGroup, err := basket.NewItemGroup(currency, groupItems)
	if err != nil {
		return nil, err
	}

	graphNode := ilp.GraphNode{LayerKey: node.LayerKey, PromotionKeys: promotionKeys(node.Promotions)}
	observer.OnLayerBegin(node.LayerKey, graphNode)
	res, err := solve.Solve(node.Promotions, layerGroup, node.backend, observer)
	observer.OnLayerEnd()
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", node.LayerKey, err)
	}

	bundleOffset := *nextBundleID
	maxBundle := -1
	updated := make([]TrackedItem, len(items))
	copy(updated, items)

	for _, app := range res.PromotionApplications {
		if app.BundleID > maxBundle {
			maxBundle = app.BundleID
		}
		if app.ItemIdx < 0 || app.ItemIdx >= len(updated) {
			continue
		}
		remapped := result.Application{
			PromotionKey:  app.PromotionKey,
			ItemIdx:       updated[app.ItemIdx].OriginalIdx,
			BundleID:      app.BundleID + bundleOffset,
			OriginalPrice: app.OriginalPrice,
			FinalPrice:    app.FinalPrice,
		}
		updated[app.ItemIdx].Applications = append(updated[app.ItemIdx].Applications, remapped)
	}

	if maxBundle >= 0 {
		*nextBundleID = bundleOffset + maxBundle + 1
	}

	return routeToSuccessors(g, n, node.OutputMode, updated, currency, nextBundleID, observer)
}

func promotionKeys(promotions []compile.Promotion) []arena.Key {
	keys := make([]arena.Key, len(promotions))
	for i, p := range promotions {
		keys[i] = p.Key()
	}
	return keys
}

func routeToSuccessors(g *Graph, n NodeID, mode OutputMode, items []TrackedItem, currency money.Currency, nextBundleID *int, observer ilp.Observer) ([]TrackedItem, error) {
	edges := g.edges[n]

	switch mode {
	case PassThrough:
		for _, e := range edges {
			if e.tag == All {
				return evaluateNode(g, e.target, items, currency, nextBundleID, observer)
			}
		}
		return items, nil

	case Split:
		var participating, nonParticipating []TrackedItem
		for _, ti := range items {
			if len(ti.Applications) > 0 {
				participating = append(participating, ti)
			} else {
				nonParticipating = append(nonParticipating, ti)
			}
		}

		var participatingTarget, nonParticipatingTarget *NodeID
		for _, e := range edges {
			target := e.target
			switch e.tag {
			case Participating:
				participatingTarget = &target
			case NonParticipating:
				nonParticipatingTarget = &target
			}
		}

		var final []TrackedItem
		if participatingTarget != nil && len(participating) > 0 {
			routed, err := evaluateNode(g, *participatingTarget, participating, currency, nextBundleID, observer)
			if err != nil {
				return nil, err
			}
			final = append(final, routed...)
		} else {
			final = append(final, participating...)
		}

		if nonParticipatingTarget != nil && len(nonParticipating) > 0 {
			routed, err := evaluateNode(g, *nonParticipatingTarget, nonParticipating, currency, nextBundleID, observer)
			if err != nil {
				return nil, err
			}
			final = append(final, routed...)
		} else {
			final = append(final, nonParticipating...)
		}

		return final, nil

	default:
		return nil, fmt.Errorf("%w: unknown output mode", corerr.ErrGraphStructureInvalid)
	}
}

func assembleLayered(items []TrackedItem, group basket.ItemGroup) (result.LayeredResult, error) {
	itemApplications := make(map[int][]result.Application)
	fullPriceItems := make(map[int]bool)
	total := money.FromMinor(0, group.Currency())

	byOriginal := make(map[int]TrackedItem, len(items))
	for _, ti := range items {
		byOriginal[ti.OriginalIdx] = ti
	}

	for i := 0; i < group.Len(); i++ {
		ti, ok := byOriginal[i]
		if !ok {
			fullPriceItems[i] = true
			item, err := group.Item(i)
			if err != nil {
				return result.LayeredResult{}, err
			}
			var err2 error
			total, err2 = total.Add(item.Price)
			if err2 != nil {
				return result.LayeredResult{}, err2
			}
			continue
		}
		if len(ti.Applications) == 0 {
			fullPriceItems[i] = true
		} else {
			itemApplications[i] = ti.Applications
		}
		var err error
		total, err = total.Add(currentPrice(ti))
		if err != nil {
			return result.LayeredResult{}, err
		}
	}

	return result.LayeredResult{
		ItemApplications: itemApplications,
		FullPriceItems:   fullPriceItems,
		Total:            total,
	}, nil
}
