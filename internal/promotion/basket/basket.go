// Package basket implements the Item and ItemGroup primitives: an
// immutable, currency-uniform sequence of tagged, priced line items.
package basket

import (
	"fmt"

	"github.com/mdcpepper/lattice/internal/promotion/corerr"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
)

// Item is a single priced, tagged line item. Immutable at the core
// boundary; rewriting a price between graph layers produces a new Item
// rather than mutating in place.
type Item struct {
	ProductID string
	Price     money.Money
	Tags      tags.Collection
}

// WithPrice returns a copy of the item with its price replaced.
func (it Item) WithPrice(price money.Money) Item {
	it.Price = price
	return it
}

// ItemGroup is an ordered, currency-uniform sequence of Items. Item indices
// are 0-based and are the universal identifier used in ILP variables,
// constraints, and applications.
type ItemGroup struct {
	items    []Item
	currency money.Currency
}

// NewItemGroup validates that every item's price currency matches the
// group currency and returns an ItemGroup. Order is preserved.
func NewItemGroup(currency money.Currency, items []Item) (ItemGroup, error) {
	for i, it := range items {
		if it.Price.Currency() != currency {
			return ItemGroup{}, fmt.Errorf("%w: item %d has currency %s, group is %s",
				corerr.ErrCurrencyMismatch, i, it.Price.Currency(), currency)
		}
	}
	cp := make([]Item, len(items))
	copy(cp, items)
	return ItemGroup{items: cp, currency: currency}, nil
}

// Currency returns the group's currency.
func (g ItemGroup) Currency() money.Currency {
	return g.currency
}

// Len returns the number of items.
func (g ItemGroup) Len() int {
	return len(g.items)
}

// Item returns the item at idx, or an error if idx is out of range.
func (g ItemGroup) Item(idx int) (Item, error) {
	if idx < 0 || idx >= len(g.items) {
		return Item{}, fmt.Errorf("%w: index %d, group has %d items",
			corerr.ErrItemIndexOutOfRange, idx, len(g.items))
	}
	return g.items[idx], nil
}

// Items returns the items as a slice. The returned slice must not be
// mutated by the caller.
func (g ItemGroup) Items() []Item {
	return g.items
}

// Total returns the sum of every item's price.
func (g ItemGroup) Total() (money.Money, error) {
	total := money.Zero(g.currency)
	var err error
	for _, it := range g.items {
		total, err = total.Add(it.Price)
		if err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

// WithRewrittenPrices returns a new ItemGroup with the given item indices'
// prices replaced. Used by the graph evaluator to build the ItemGroup for
// the next layer from tracked items' current prices.
func (g ItemGroup) WithRewrittenPrices(prices map[int]money.Money) (ItemGroup, error) {
	items := make([]Item, len(g.items))
	copy(items, g.items)
	for idx, price := range prices {
		if idx < 0 || idx >= len(items) {
			return ItemGroup{}, fmt.Errorf("%w: index %d, group has %d items",
				corerr.ErrItemIndexOutOfRange, idx, len(items))
		}
		items[idx] = items[idx].WithPrice(price)
	}
	return NewItemGroup(g.currency, items)
}
