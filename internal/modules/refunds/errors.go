package refunds

import "errors"

var (
	ErrNotFound           = errors.New("refund not found")
	ErrAlreadyCancelled   = errors.New("booking is already cancelled")
	ErrNotCancellable     = errors.New("booking cannot be cancelled in its current state")
	ErrTooCloseToTour     = errors.New("cancellation window has closed")
	ErrBankDetailsMissing = errors.New("refund bank details are incomplete")
)
