package bookings

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/availability"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/catalog"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/dbx"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/principal"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/refcode"
)

type Service struct {
	db      *gorm.DB
	catalog *catalog.Repo
	logger  *slog.Logger
}

func NewService(db *gorm.DB, cat *catalog.Repo) *Service {
	return &Service{db: db, catalog: cat, logger: slog.Default()}
}

func (s *Service) SetLogger(l *slog.Logger) { s.logger = l }

type CreateInput struct {
	Actor          principal.Principal
	TourID         string
	AvailabilityID string
	AdultCount     int
	ChildCount     int
}

// Create reserves slot capacity and opens a booking in pending_payment, as
// one transaction. Capacity check and counter increment happen under the
// slot's row lock, so concurrent requests cannot jointly overbook.
func (s *Service) Create(ctx context.Context, in CreateInput) (Booking, error) {
	if in.AdultCount < 1 || in.ChildCount < 0 {
		return Booking{}, errors.New("at least one adult participant is required")
	}

	tour, err := s.catalog.GetTour(ctx, in.TourID)
	if err != nil {
		return Booking{}, err
	}
	if !tour.IsActive {
		return Booking{}, ErrTourNotBookable
	}
	if tour.VendorID == in.Actor.UserID {
		return Booking{}, ErrOwnTour
	}

	var out Booking
	err = dbx.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		slot, err := availability.ReserveInTx(ctx, tx, in.AvailabilityID, in.AdultCount+in.ChildCount)
		if err != nil {
			return err
		}
		if slot.TourID != tour.ID {
			return ErrSlotTourMismatch
		}

		now := time.Now()
		b := Booking{
			ID:             uuid.NewString(),
			Number:         refcode.NewBookingNumber(now),
			TourID:         tour.ID,
			AvailabilityID: slot.ID,
			CustomerID:     in.Actor.UserID,
			AdultCount:     in.AdultCount,
			ChildCount:     in.ChildCount,
			TotalAmount:    slot.TotalFor(in.AdultCount, in.ChildCount),
			Currency:       slot.Currency,
			Status:         StatusPendingPayment,
			PaymentStatus:  PaymentUnpaid,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		// booking numbers are minute+random; regenerate on the rare collision
		for attempt := 0; ; attempt++ {
			err := tx.WithContext(ctx).Create(&b).Error
			if err == nil {
				break
			}
			if dbx.IsDuplicateKey(err) && attempt < 2 {
				b.Number = refcode.NewBookingNumber(time.Now())
				continue
			}
			return err
		}

		out = b
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	s.logger.InfoContext(ctx, "booking created",
		"booking_id", out.ID, "number", out.Number, "tour_id", out.TourID,
		"participants", out.Participants(), "total", out.TotalAmount.String())
	return out, nil
}

type UpdateInput struct {
	Actor          principal.Principal
	BookingID      string
	AvailabilityID string // empty = keep current slot
	AdultCount     int
	ChildCount     int
}

// Update moves a booking to a new slot and/or headcount and recomputes the
// total. The new reservation is taken before the old one is released, inside
// one transaction, so a failed re-reservation leaves the original untouched.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Booking, error) {
	if in.AdultCount < 1 || in.ChildCount < 0 {
		return Booking{}, errors.New("at least one adult participant is required")
	}

	var out Booking
	err := dbx.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var b Booking
		if err := dbx.LockForUpdate(tx.WithContext(ctx)).
			First(&b, "id = ?", in.BookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !in.Actor.CanActFor(b.CustomerID) {
			return ErrForbidden
		}
		if !b.Editable() {
			return ErrNotEditable
		}

		targetSlotID := in.AvailabilityID
		if targetSlotID == "" {
			targetSlotID = b.AvailabilityID
		}
		newCount := in.AdultCount + in.ChildCount

		var slot availability.TourAvailability
		if targetSlotID != b.AvailabilityID {
			// reserve first; only release the old slot once the new hold is safe
			reserved, err := availability.ReserveInTx(ctx, tx, targetSlotID, newCount)
			if err != nil {
				return err
			}
			if reserved.TourID != b.TourID {
				return ErrSlotTourMismatch
			}
			if err := availability.ReleaseInTx(ctx, tx, b.AvailabilityID, b.Participants()); err != nil {
				return err
			}
			slot = reserved
		} else {
			if err := availability.AdjustInTx(ctx, tx, targetSlotID, newCount-b.Participants()); err != nil {
				return err
			}
			got, err := availability.Get(ctx, tx, targetSlotID)
			if err != nil {
				return err
			}
			slot = got
		}

		now := time.Now()
		total := slot.TotalFor(in.AdultCount, in.ChildCount)
		if err := tx.WithContext(ctx).Model(&Booking{}).
			Where("id = ?", b.ID).
			Updates(map[string]any{
				"availability_id": slot.ID,
				"adult_count":     in.AdultCount,
				"child_count":     in.ChildCount,
				"total_amount":    total,
				"updated_at":      now,
			}).Error; err != nil {
			return err
		}

		b.AvailabilityID = slot.ID
		b.AdultCount = in.AdultCount
		b.ChildCount = in.ChildCount
		b.TotalAmount = total
		b.UpdatedAt = now
		out = b
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	s.logger.InfoContext(ctx, "booking updated",
		"booking_id", out.ID, "availability_id", out.AvailabilityID,
		"participants", out.Participants(), "total", out.TotalAmount.String())
	return out, nil
}

// ConfirmInTx transitions pending_payment -> confirmed and marks the booking
// paid. Runs inside the reconciliation transaction; idempotent against a row
// that was confirmed by a concurrent ingestion (optimistic status guard).
func ConfirmInTx(ctx context.Context, tx *gorm.DB, bookingID string) (Booking, error) {
	var b Booking
	if err := dbx.LockForUpdate(tx.WithContext(ctx)).
		First(&b, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}

	if b.Status == StatusConfirmed {
		return b, nil
	}
	if !b.Status.CanTransitionTo(StatusConfirmed) {
		return Booking{}, ErrInvalidTransition
	}

	now := time.Now()
	res := tx.WithContext(ctx).Model(&Booking{}).
		Where("id = ? AND status = ?", b.ID, b.Status).
		Updates(map[string]any{
			"status":         StatusConfirmed,
			"payment_status": PaymentPaid,
			"confirmed_at":   now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return Booking{}, res.Error
	}
	if res.RowsAffected != 1 {
		return Booking{}, ErrInvalidTransition
	}

	b.Status = StatusConfirmed
	b.PaymentStatus = PaymentPaid
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return b, nil
}

// Complete marks a confirmed booking as completed after the tour ran. Only an
// admin or the vendor owning the tour may do this, and only once the slot
// date has passed.
func (s *Service) Complete(ctx context.Context, bookingID string, actor principal.Principal) (Booking, error) {
	var out Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Booking
		if err := dbx.LockForUpdate(tx.WithContext(ctx)).
			First(&b, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !actor.IsAdmin() {
			vendorID, err := s.catalog.TourVendorID(ctx, b.TourID)
			if err != nil {
				return err
			}
			if vendorID != actor.UserID {
				return ErrForbidden
			}
		}

		if !b.Status.CanTransitionTo(StatusCompleted) {
			return ErrInvalidTransition
		}

		slot, err := availability.Get(ctx, tx, b.AvailabilityID)
		if err != nil {
			return err
		}
		if !tourDayOver(slot.Date) {
			return errors.New("tour date has not passed yet")
		}

		now := time.Now()
		res := tx.WithContext(ctx).Model(&Booking{}).
			Where("id = ? AND status = ?", b.ID, b.Status).
			Updates(map[string]any{
				"status":       StatusCompleted,
				"completed_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrInvalidTransition
		}

		b.Status = StatusCompleted
		b.CompletedAt = &now
		b.UpdatedAt = now
		out = b
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	s.logger.InfoContext(ctx, "booking completed", "booking_id", out.ID, "number", out.Number)
	return out, nil
}

// CancelInTx flips a booking to cancelled with an optimistic status guard.
// The refunds service owns the full cancellation flow (policy, slot release,
// refund record); this only performs the state change.
func CancelInTx(ctx context.Context, tx *gorm.DB, b *Booking, reason string, paymentStatus PaymentStatus) error {
	if !b.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}

	now := time.Now()
	updates := map[string]any{
		"status":         StatusCancelled,
		"payment_status": paymentStatus,
		"cancelled_at":   now,
		"updated_at":     now,
	}
	if reason != "" {
		updates["cancel_reason"] = reason
	}

	res := tx.WithContext(ctx).Model(&Booking{}).
		Where("id = ? AND status = ?", b.ID, b.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrInvalidTransition
	}

	b.Status = StatusCancelled
	b.PaymentStatus = paymentStatus
	b.CancelledAt = &now
	b.UpdatedAt = now
	if reason != "" {
		r := reason
		b.CancelReason = &r
	}
	return nil
}

// tourDayOver: completion is only valid once the tour's calendar day has
// passed. A same-day booking is not completable before the tour ran.
func tourDayOver(d time.Time) bool {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return day.Before(today)
}
