package legacy

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mdcpepper/lattice/pkg/testutil"
)

func TestToMinor(t *testing.T) {
	tests := []struct {
		name     string
		price    decimal.Decimal
		currency string
		want     int64
		wantErr  bool
	}{
		{
			name:     "exact GBP pence",
			price:    decimal.NewFromFloat(19.99),
			currency: "GBP",
			want:     1999,
		},
		{
			name:     "exact whole pound",
			price:    decimal.NewFromInt(5),
			currency: "GBP",
			want:     500,
		},
		{
			name:     "JPY has no minor unit",
			price:    decimal.NewFromInt(500),
			currency: "JPY",
			want:     500,
		},
		{
			name:     "sub-penny GBP price is rejected",
			price:    decimal.RequireFromString("1.005"),
			currency: "GBP",
			wantErr:  true,
		},
		{
			name:     "unknown currency is rejected",
			price:    decimal.NewFromInt(1),
			currency: "XYZ",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToMinor(tt.price, tt.currency)
			if tt.wantErr {
				testutil.AssertError(t, err, "ToMinor")
				return
			}
			testutil.AssertNoError(t, err, "ToMinor")
			testutil.AssertEqual(t, got, tt.want, "minor units")
		})
	}
}

func TestToItemGroup(t *testing.T) {
	items := []Item{
		{ProductID: "sku-1", Price: decimal.NewFromFloat(9.99), Tags: []string{"sale"}},
		{ProductID: "sku-2", Price: decimal.NewFromFloat(4.50)},
	}

	group, err := ToItemGroup("GBP", items)
	testutil.AssertNoError(t, err, "ToItemGroup")
	testutil.AssertEqual(t, group.Len(), 2, "item count")

	total, err := group.Total()
	testutil.AssertNoError(t, err, "group.Total")
	testutil.AssertEqual(t, total.Minor(), int64(1449), "group total")
}

func TestToItemGroup_RejectsInexactPrice(t *testing.T) {
	items := []Item{
		{ProductID: "sku-1", Price: decimal.RequireFromString("1.005")},
	}

	_, err := ToItemGroup("GBP", items)
	testutil.AssertError(t, err, "ToItemGroup should reject a non-exact minor-unit price")
}
