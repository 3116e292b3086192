package bookings

import "errors"

var (
	ErrNotFound          = errors.New("booking not found")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrNotEditable       = errors.New("booking can no longer be edited")
	ErrOwnTour           = errors.New("vendors cannot book their own tour")
	ErrSlotTourMismatch  = errors.New("availability slot does not belong to the tour")
	ErrTourNotBookable   = errors.New("tour is not bookable")
	ErrForbidden         = errors.New("not allowed to act on this booking")
)
