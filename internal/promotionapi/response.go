package promotionapi

import (
	"errors"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/corerr"
	"github.com/mdcpepper/lattice/internal/promotion/money"
	"github.com/mdcpepper/lattice/internal/promotion/receipt"
	pkgerrors "github.com/mdcpepper/lattice/pkg/errors"
)

// toReceiptDTO converts a domain Receipt into its wire shape, attributing
// each promotion's savings back to the client-supplied id it arrived with.
func toReceiptDTO(rpt receipt.Receipt, labels map[arena.Key]string, currency money.Currency) ReceiptDTO {
	promos := make([]PromotionSavingsDTO, 0, len(rpt.PromotionSavings))
	for _, ps := range rpt.PromotionSavings {
		promos = append(promos, PromotionSavingsDTO{
			PromotionID:  labels[ps.PromotionKey],
			SavingsMinor: ps.Savings.Minor(),
		})
	}

	return ReceiptDTO{
		SubtotalMinor: rpt.Subtotal.Minor(),
		TotalMinor:    rpt.Total.Minor(),
		SavingsMinor:  rpt.Savings.Minor(),
		Currency:      string(currency),
		Promotions:    promos,
	}
}

// translateCoreError maps internal/promotion/corerr sentinels to the
// outer-layer pkg/errors.AppError shape at the HTTP boundary
// (SPEC_FULL.md §7.2). ErrInvariantViolation and unrecognised errors get a
// generic client message and keep the core error as the AppError's
// Internal error, so it still reaches the logs via
// pkg/errors.HandleHTTPError. ErrSolverBackend also gets a generic
// message, with no Internal error attached.
func translateCoreError(err error) error {
	switch {
	case errors.Is(err, corerr.ErrCurrencyMismatch),
		errors.Is(err, corerr.ErrItemIndexOutOfRange):
		return pkgerrors.BadRequest(err.Error())

	case errors.Is(err, corerr.ErrCoefficientNotRepresentable),
		errors.Is(err, corerr.ErrDiscountComputationFailed),
		errors.Is(err, corerr.ErrGraphStructureInvalid):
		return pkgerrors.UnprocessableEntity(err.Error())

	case errors.Is(err, corerr.ErrSolverBackend):
		return pkgerrors.ServiceUnavailable("the solver could not reach a solution in time")

	case errors.Is(err, corerr.ErrInvariantViolation):
		return pkgerrors.InternalWrap(err, "an internal invariant was violated")

	default:
		return pkgerrors.InternalWrap(err, "unexpected error solving basket")
	}
}
