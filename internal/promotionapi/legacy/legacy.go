// Package legacy converts a shopspring/decimal-priced legacy basket
// payload into the core's integer-minor-unit basket.ItemGroup
// (SPEC_FULL.md §6.2), grounded on the teacher's
// internal/offer/domain/order_adjustment.go's decimal.Decimal amount
// fields -- the one precedent in the teacher for a domain value carried as
// a decimal rather than an integer. This is the ONLY package in the
// repository allowed to import shopspring/decimal: everywhere past this
// boundary, money is an exact int64 minor-unit count (spec.md §3, §9).
package legacy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mdcpepper/lattice/internal/promotion/basket"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/tags"
)

// minorUnitExponents lists the currency exponents this adapter knows how
// to convert, including a zero-decimal minor unit (JPY) and a
// three-decimal one (KWD). Exponent returns an error for anything not
// listed here rather than assuming 2, per §9's "never round silently"
// policy.
var minorUnitExponents = map[string]int32{
	"GBP": 2,
	"USD": 2,
	"EUR": 2,
	"JPY": 0,
	"KWD": 3,
}

// Exponent returns the number of decimal places a currency's minor unit
// represents.
func Exponent(currency string) (int32, error) {
	exp, ok := minorUnitExponents[currency]
	if !ok {
		return 0, fmt.Errorf("legacy: unknown minor-unit exponent for currency %q", currency)
	}
	return exp, nil
}

// Item is a legacy, decimal-priced line item.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Tags      []string
}

// ToMinor converts price into an exact integer count of currency's minor
// units, rejecting any value that doesn't round-trip exactly (e.g. a GBP
// price of 1.005, which has no exact penny representation).
func ToMinor(price decimal.Decimal, currency string) (int64, error) {
	exp, err := Exponent(currency)
	if err != nil {
		return 0, err
	}
	shifted := price.Shift(exp)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("legacy: price %s is not an exact integer number of %s minor units", price.String(), currency)
	}
	return shifted.IntPart(), nil
}

// ToItemGroup converts a legacy basket into the core's basket.ItemGroup.
func ToItemGroup(currency string, items []Item) (basket.ItemGroup, error) {
	converted := make([]basket.Item, len(items))
	for i, it := range items {
		minor, err := ToMinor(it.Price, currency)
		if err != nil {
			return basket.ItemGroup{}, fmt.Errorf("item %d (%s): %w", i, it.ProductID, err)
		}
		converted[i] = basket.Item{
			ProductID: it.ProductID,
			Price:     money.FromMinor(minor, money.Currency(currency)),
			Tags:      tags.New(it.Tags...),
		}
	}
	return basket.NewItemGroup(money.Currency(currency), converted)
}
