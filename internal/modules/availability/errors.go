package availability

import (
	"errors"
	"fmt"
)

var (
	ErrSlotNotFound = errors.New("availability slot not found")
	ErrSlotClosed   = errors.New("availability slot is closed")
	ErrPastDate     = errors.New("availability slot date is not in the future")
)

// CapacityError carries how far over capacity the request was.
type CapacityError struct {
	SlotID    string
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("slot %s capacity exceeded: requested %d, available %d",
		e.SlotID, e.Requested, e.Available)
}
