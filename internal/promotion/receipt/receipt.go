// Package receipt assembles a human-facing summary from a basket and a
// LayeredResult (spec.md §4.11), grounded on the teacher's
// internal/offer/domain/order_adjustment.go aggregation idiom (decimal
// usage not carried into the core: money stays exact-integer throughout).
package receipt

import (
	"fmt"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/corerr"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/result"
)

// PromotionSavings aggregates the total discount one promotion
// contributed across the whole receipt.
type PromotionSavings struct {
	PromotionKey arena.Key
	Savings      money.Money
}

// Receipt is the final, human-facing summary of a basket after every
// graph layer has run (spec.md §4.11).
type Receipt struct {
	Subtotal         money.Money
	Total            money.Money
	Savings          money.Money
	PromotionSavings []PromotionSavings
}

// Assemble computes a Receipt from basket and a graph evaluation's
// LayeredResult. Rejects any application whose ItemIdx falls outside the
// basket (spec.md §4.11).
func Assemble(group basket.ItemGroup, lr result.LayeredResult) (Receipt, error) {
	currency := group.Currency()
	subtotal := money.FromMinor(0, currency)

	for i := 0; i < group.Len(); i++ {
		item, err := group.Item(i)
		if err != nil {
			return Receipt{}, err
		}
		var err2 error
		subtotal, err2 = subtotal.Add(item.Price)
		if err2 != nil {
			return Receipt{}, err2
		}
	}

	for idx := range lr.ItemApplications {
		if idx < 0 || idx >= group.Len() {
			return Receipt{}, fmt.Errorf("%w: application references item %d, basket has %d items",
				corerr.ErrItemIndexOutOfRange, idx, group.Len())
		}
	}
	for idx := range lr.FullPriceItems {
		if idx < 0 || idx >= group.Len() {
			return Receipt{}, fmt.Errorf("%w: full-price set references item %d, basket has %d items",
				corerr.ErrItemIndexOutOfRange, idx, group.Len())
		}
	}

	savingsByPromotion := make(map[arena.Key]money.Money)
	var order []arena.Key

	for idx := 0; idx < group.Len(); idx++ {
		apps := lr.ItemApplications[idx]
		for _, app := range apps {
			if app.ItemIdx != idx {
				return Receipt{}, fmt.Errorf("%w: application item index %d does not match its map key %d",
					corerr.ErrInvariantViolation, app.ItemIdx, idx)
			}
			saved, err := app.Savings()
			if err != nil {
				return Receipt{}, err
			}
			existing, ok := savingsByPromotion[app.PromotionKey]
			if !ok {
				order = append(order, app.PromotionKey)
				existing = money.FromMinor(0, currency)
			}
			existing, err = existing.Add(saved)
			if err != nil {
				return Receipt{}, err
			}
			savingsByPromotion[app.PromotionKey] = existing
		}
	}

	promotionSavings := make([]PromotionSavings, 0, len(order))
	for _, key := range order {
		promotionSavings = append(promotionSavings, PromotionSavings{PromotionKey: key, Savings: savingsByPromotion[key]})
	}

	savings, err := subtotal.Sub(lr.Total)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{
		Subtotal:         subtotal,
		Total:            lr.Total,
		Savings:          savings,
		PromotionSavings: promotionSavings,
	}, nil
}
