// Package memoize wraps the solver driver with a content-addressed cache
// (SPEC_FULL.md §2, §5). It sits entirely outside the core's dependency
// graph: the core has no knowledge of caching, and this package imports
// the core rather than the other way around. Grounded on the teacher's
// pkg/cache (internal in-process Cache backed by patrickmn/go-cache),
// generalized from a byte-value store to a typed solve-result store since
// the cached value (result.SolveResult) is a Go struct, not a byte blob.
package memoize

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/compile"
	"github.com/mdcpepper/lattice/internal/promotion/ilp"
	"github.com/mdcpepper/lattice/internal/promotion/result"
	"github.com/mdcpepper/lattice/internal/promotion/solve"
)

// Memoizer caches solve.Solve results keyed by the promotion set's identity
// and the basket's content, so identical repeated solves (e.g. a storefront
// re-pricing the same cart on every page load) skip the ILP backend.
//
// Each cache read, write and flush is guarded by a mutex (SPEC_FULL.md §5)
// even though patrickmn/go-cache is itself safe for concurrent use. The
// mutex is released while solve.Solve runs, so it does not deduplicate
// work: two goroutines that miss on the same key at the same time each run
// a solve, and the later Set overwrites the earlier one.
type Memoizer struct {
	mu    sync.Mutex
	cache *gocache.Cache
	ttl   time.Duration
}

// New constructs a Memoizer whose entries expire after ttl, swept every
// cleanupInterval.
func New(ttl, cleanupInterval time.Duration) *Memoizer {
	return &Memoizer{cache: gocache.New(ttl, cleanupInterval), ttl: ttl}
}

// Solve returns the cached SolveResult for (promotions, group) if present,
// otherwise runs solve.Solve, caches, and returns the fresh result.
func (m *Memoizer) Solve(promotions []compile.Promotion, group basket.ItemGroup, back backend.Backend, observer ilp.Observer) (result.SolveResult, error) {
	key := computeKey(promotions, group)

	m.mu.Lock()
	if cached, found := m.cache.Get(key); found {
		m.mu.Unlock()
		return cached.(result.SolveResult), nil
	}
	m.mu.Unlock()

	res, err := solve.Solve(promotions, group, back, observer)
	if err != nil {
		return result.SolveResult{}, err
	}

	m.mu.Lock()
	m.cache.Set(key, res, m.ttl)
	m.mu.Unlock()

	return res, nil
}

// Invalidate clears every cached entry. Useful when a caller's promotion
// catalog changes (budgets consumed, promotions added/removed) in a way
// that isn't reflected by promotion identity alone.
func (m *Memoizer) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Flush()
}

// computeKey hashes every promotion's arena key (its identity, including
// generation) and every basket item's product id, price, and tags into a
// single content-address. Two solves with the same promotions-by-identity
// over the same basket content always produce the same key.
func computeKey(promotions []compile.Promotion, group basket.ItemGroup) string {
	h := sha256.New()
	for _, p := range promotions {
		h.Write([]byte(p.Key().String()))
		h.Write([]byte{0})
	}
	h.Write([]byte("|"))
	h.Write([]byte(group.Currency()))
	h.Write([]byte{0})
	for i := 0; i < group.Len(); i++ {
		item, err := group.Item(i)
		if err != nil {
			continue
		}
		h.Write([]byte(item.ProductID))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(item.Price.Minor(), 10)))
		h.Write([]byte{0})
		for _, tag := range item.Tags.Values() {
			h.Write([]byte(tag))
			h.Write([]byte{0})
		}
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}
