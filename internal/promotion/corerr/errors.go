// Package corerr defines the core engine's error kinds. The core never
// couples an error to an HTTP status or a user-facing message; translation
// to outer-layer error representations (pkg/errors.AppError) happens only
// at the boundary packages that consume the core.
package corerr

import "errors"

var (
	// ErrCurrencyMismatch indicates money operands in different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrItemIndexOutOfRange indicates a bundle referenced an unknown item.
	ErrItemIndexOutOfRange = errors.New("item index out of range")

	// ErrCoefficientNotRepresentable indicates a minor-unit value cannot
	// round-trip through f64.
	ErrCoefficientNotRepresentable = errors.New("coefficient not representable as f64")

	// ErrDiscountComputationFailed indicates underflow or other arithmetic
	// failure inside a compiler.
	ErrDiscountComputationFailed = errors.New("discount computation failed")

	// ErrGraphStructureInvalid indicates a cycle, missing root, or
	// inconsistent edge shape in a promotion graph.
	ErrGraphStructureInvalid = errors.New("graph structure invalid")

	// ErrSolverBackend indicates the ILP backend did not return a solution.
	ErrSolverBackend = errors.New("solver backend failed")

	// ErrInvariantViolation indicates a defensive assertion tripped,
	// meaning a core bug rather than bad input.
	ErrInvariantViolation = errors.New("invariant violation")
)
