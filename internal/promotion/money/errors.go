package money

import "errors"

var (
	// ErrCurrencyMismatch is returned when an arithmetic operation mixes currencies.
	ErrCurrencyMismatch = errors.New("money: currency mismatch")

	// ErrOverflow is returned when an arithmetic operation overflows int64.
	ErrOverflow = errors.New("money: overflow")

	// ErrNotRepresentable is returned when a value cannot round-trip through f64.
	ErrNotRepresentable = errors.New("money: value not representable as f64")
)
