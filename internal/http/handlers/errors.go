package handlers

import (
	"errors"

	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/availability"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/bookings"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/catalog"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/orders"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payments"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payouts"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/refunds"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/apperr"
)

// toAppErr maps module sentinel errors to the error taxonomy the error
// handler middleware renders. Anything unmapped stays internal.
func toAppErr(err error) error {
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		return err
	}

	var capErr *availability.CapacityError
	if errors.As(err, &capErr) {
		return apperr.ConflictErr("Not enough spots left on this date.")
	}
	var bankErr *payouts.MissingBankInfoError
	if errors.As(err, &bankErr) {
		return apperr.PreconditionErr("Recipient bank details are incomplete.", bankErr.Fields)
	}

	switch {
	case errors.Is(err, bookings.ErrNotFound),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, refunds.ErrNotFound),
		errors.Is(err, payouts.ErrNotFound),
		errors.Is(err, availability.ErrSlotNotFound),
		errors.Is(err, catalog.ErrTourNotFound),
		errors.Is(err, catalog.ErrUserNotFound),
		errors.Is(err, payments.ErrNotificationNotFound):
		return apperr.NotFoundErr("Resource not found.")

	case errors.Is(err, bookings.ErrForbidden),
		errors.Is(err, payouts.ErrForbidden):
		return apperr.ForbiddenErr("You do not have access to this resource.")

	case errors.Is(err, bookings.ErrOwnTour):
		return apperr.ForbiddenErr("You cannot book your own tour.")

	case errors.Is(err, availability.ErrSlotClosed):
		return apperr.InvalidErr("This date is closed for booking.", nil)
	case errors.Is(err, availability.ErrPastDate):
		return apperr.InvalidErr("This date is no longer bookable.", nil)
	case errors.Is(err, bookings.ErrTourNotBookable):
		return apperr.InvalidErr("This tour is not bookable.", nil)
	case errors.Is(err, bookings.ErrSlotTourMismatch):
		return apperr.InvalidErr("The selected date does not belong to this tour.", nil)

	case errors.Is(err, bookings.ErrInvalidTransition),
		errors.Is(err, bookings.ErrNotEditable),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, refunds.ErrAlreadyCancelled),
		errors.Is(err, refunds.ErrNotCancellable),
		errors.Is(err, refunds.ErrTooCloseToTour),
		errors.Is(err, payouts.ErrAlreadyExists),
		errors.Is(err, payouts.ErrNotCompleted),
		errors.Is(err, payouts.ErrNothingToPay),
		errors.Is(err, payouts.ErrNotProcessable):
		return apperr.ConflictErr(err.Error())

	case errors.Is(err, refunds.ErrBankDetailsMissing):
		return apperr.PreconditionErr("Bank details are required for a refund.", map[string]string{
			"bank_name":           "required",
			"bank_account_number": "required",
			"bank_account_name":   "required",
		})
	}

	return apperr.Wrap(err)
}
