// Package money implements exact integer minor-unit currency arithmetic.
//
// Money never uses floating point or arbitrary-precision decimal
// representations. A value is an int64 count of a currency's smallest unit
// (e.g. pence, cents) plus a stable currency code. The only place a Money
// value touches floating point is at the ILP coefficient boundary, via
// ToF64, which fails loudly rather than lose precision silently.
package money

import (
	"fmt"
	"math"
)

// maxExactInt is the largest magnitude an int64 can have while still being
// exactly representable as a float64 (2^53).
const maxExactInt = int64(1) << 53

// Currency is a stable currency identifier, e.g. an ISO 4217 alpha code.
// Identity is by value equality of the code, not by any lookup table.
type Currency string

// Money is an exact count of minor units in a single currency.
type Money struct {
	minor    int64
	currency Currency
}

// Zero returns a zero-value Money in the given currency.
func Zero(currency Currency) Money {
	return Money{currency: currency}
}

// FromMinor constructs a Money from an integer count of minor units.
func FromMinor(minor int64, currency Currency) Money {
	return Money{minor: minor, currency: currency}
}

// Minor returns the integer minor-unit amount.
func (m Money) Minor() int64 {
	return m.minor
}

// Currency returns the currency of this value.
func (m Money) Currency() Currency {
	return m.currency
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.minor < 0
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.minor == 0
}

// ClampToZero returns m, or zero in the same currency if m is negative.
// Per spec.md §3, negative intermediate results are clamped to zero only at
// a promotion's final per-item output -- callers decide when that applies.
func (m Money) ClampToZero() Money {
	if m.minor < 0 {
		return Zero(m.currency)
	}
	return m
}

// Add returns m+other, or an error if the currencies differ or the sum
// overflows an int64.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	sum := m.minor + other.minor
	if (other.minor > 0 && sum < m.minor) || (other.minor < 0 && sum > m.minor) {
		return Money{}, fmt.Errorf("%w: %d + %d", ErrOverflow, m.minor, other.minor)
	}
	return Money{minor: sum, currency: m.currency}, nil
}

// Sub returns m-other, or an error if the currencies differ or the
// difference overflows an int64.
func (m Money) Sub(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	diff := m.minor - other.minor
	if (other.minor < 0 && diff < m.minor) || (other.minor > 0 && diff > m.minor) {
		return Money{}, fmt.Errorf("%w: %d - %d", ErrOverflow, m.minor, other.minor)
	}
	return Money{minor: diff, currency: m.currency}, nil
}

// ToF64 converts the minor-unit amount to a float64 suitable as an ILP
// coefficient. It fails if the value cannot round-trip exactly through a
// 64-bit IEEE-754 double (|v| > 2^53), per spec.md §3/§9.
func (m Money) ToF64() (float64, error) {
	return ExactF64(m.minor)
}

// ExactF64 converts an int64 to float64, failing if the value is not
// exactly representable (i.e. would lose precision as a double).
func ExactF64(v int64) (float64, error) {
	if v > maxExactInt || v < -maxExactInt {
		return 0, fmt.Errorf("%w: %d exceeds +/-2^53", ErrNotRepresentable, v)
	}
	f := float64(v)
	if int64(f) != v {
		return 0, fmt.Errorf("%w: %d does not round-trip through f64", ErrNotRepresentable, v)
	}
	return f, nil
}

// RoundFromF64 rounds a float64 ILP solution coefficient back to an exact
// minor-unit int64. Used only for quantities derived arithmetically inside
// the solver (never for the canonical Money values themselves, which stay
// integer end to end).
func RoundFromF64(f float64) int64 {
	return int64(math.Round(f))
}

func (c Currency) String() string {
	return string(c)
}
