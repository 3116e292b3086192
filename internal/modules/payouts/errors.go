package payouts

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("payout not found")
	ErrForbidden      = errors.New("actor may not operate on this payout")
	ErrNotCompleted   = errors.New("entity is not completed yet")
	ErrAlreadyExists  = errors.New("a live payout for this entity already exists")
	ErrNothingToPay   = errors.New("no pending revenue for this entity")
	ErrNotProcessable = errors.New("payout cannot be processed in its current state")
)

// MissingBankInfoError reports which payout destination fields the recipient
// still has to fill in before an admin can process the payment.
type MissingBankInfoError struct {
	UserID string
	Fields map[string]string
}

func (e *MissingBankInfoError) Error() string {
	return fmt.Sprintf("user %s has incomplete bank info (%d fields missing)", e.UserID, len(e.Fields))
}
