package availability

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/dbx"
)

// ReserveInTx checks and claims headcount on a slot inside a caller-supplied
// transaction. The row is locked for the whole check-and-increment so two
// concurrent reservations can never jointly exceed capacity.
//
// Rules: slot must exist, be open, and dated strictly after today.
func ReserveInTx(ctx context.Context, tx *gorm.DB, slotID string, participants int) (TourAvailability, error) {
	if participants < 1 {
		participants = 1
	}

	var slot TourAvailability
	if err := dbx.LockForUpdate(tx.WithContext(ctx)).
		First(&slot, "id = ?", slotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TourAvailability{}, ErrSlotNotFound
		}
		return TourAvailability{}, err
	}

	if !slot.IsAvailable {
		return TourAvailability{}, ErrSlotClosed
	}
	if !dateAfterToday(slot.Date) {
		return TourAvailability{}, ErrPastDate
	}
	if slot.BookedParticipants+participants > slot.MaxParticipants {
		return TourAvailability{}, &CapacityError{
			SlotID:    slot.ID,
			Requested: participants,
			Available: slot.Remaining(),
		}
	}

	res := tx.WithContext(ctx).
		Model(&TourAvailability{}).
		Where("id = ? AND booked_participants + ? <= max_participants", slot.ID, participants).
		UpdateColumn("booked_participants", gorm.Expr("booked_participants + ?", participants))
	if res.Error != nil {
		return TourAvailability{}, res.Error
	}
	if res.RowsAffected != 1 {
		return TourAvailability{}, &CapacityError{SlotID: slot.ID, Requested: participants, Available: 0}
	}

	slot.BookedParticipants += participants
	return slot, nil
}

// ReleaseInTx hands reserved headcount back (cancellation, booking edit).
// The counter is floored at zero.
func ReleaseInTx(ctx context.Context, tx *gorm.DB, slotID string, participants int) error {
	if participants < 1 {
		return nil
	}

	var slot TourAvailability
	if err := dbx.LockForUpdate(tx.WithContext(ctx)).
		First(&slot, "id = ?", slotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSlotNotFound
		}
		return err
	}

	if participants > slot.BookedParticipants {
		participants = slot.BookedParticipants
	}
	if participants == 0 {
		return nil
	}

	return tx.WithContext(ctx).
		Model(&TourAvailability{}).
		Where("id = ?", slot.ID).
		UpdateColumn("booked_participants", gorm.Expr("booked_participants - ?", participants)).Error
}

// AdjustInTx applies a headcount delta on a slot the booking already holds
// (booking edit without a slot change). Positive deltas go through the same
// capacity check as a fresh reservation.
func AdjustInTx(ctx context.Context, tx *gorm.DB, slotID string, delta int) error {
	switch {
	case delta > 0:
		_, err := ReserveInTx(ctx, tx, slotID, delta)
		return err
	case delta < 0:
		return ReleaseInTx(ctx, tx, slotID, -delta)
	default:
		return nil
	}
}

// Reserve is the standalone wrapper: own transaction plus deadlock retry.
func Reserve(ctx context.Context, db *gorm.DB, slotID string, participants int) (TourAvailability, error) {
	var out TourAvailability
	err := dbx.WithTxRetry(ctx, db, 3, func(tx *gorm.DB) error {
		slot, err := ReserveInTx(ctx, tx, slotID, participants)
		if err != nil {
			return err
		}
		out = slot
		return nil
	})
	return out, err
}

// Release is the standalone wrapper for ReleaseInTx.
func Release(ctx context.Context, db *gorm.DB, slotID string, participants int) error {
	return dbx.WithTxRetry(ctx, db, 3, func(tx *gorm.DB) error {
		return ReleaseInTx(ctx, tx, slotID, participants)
	})
}

// Get loads a slot without locking it.
func Get(ctx context.Context, db *gorm.DB, slotID string) (TourAvailability, error) {
	var slot TourAvailability
	if err := db.WithContext(ctx).First(&slot, "id = ?", slotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TourAvailability{}, ErrSlotNotFound
		}
		return TourAvailability{}, err
	}
	return slot, nil
}

// dateAfterToday: bookings are only taken for strictly future dates.
func dateAfterToday(d time.Time) bool {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return day.After(today)
}
