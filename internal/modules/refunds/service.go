package refunds

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/availability"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/bookings"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/ledger"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/dbx"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/principal"
)

// PlatformAccountID is the ledger party for the platform side of refund and
// payout obligations.
const PlatformAccountID = "platform"

type Service struct {
	db     *gorm.DB
	policy Policy
	logger *slog.Logger
}

func NewService(db *gorm.DB, policy Policy) *Service {
	return &Service{db: db, policy: policy, logger: slog.Default()}
}

func (s *Service) SetLogger(l *slog.Logger) { s.logger = l }

// Quote computes the refund offer for a booking without changing anything.
func (s *Service) Quote(ctx context.Context, bookingID string, actor principal.Principal) (Quote, error) {
	var b bookings.Booking
	if err := s.db.WithContext(ctx).First(&b, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Quote{}, bookings.ErrNotFound
		}
		return Quote{}, err
	}
	if !actor.CanActFor(b.CustomerID) {
		return Quote{}, bookings.ErrForbidden
	}

	slot, err := availability.Get(ctx, s.db, b.AvailabilityID)
	if err != nil {
		return Quote{}, err
	}

	return s.policy.QuoteFor(b.ID, b.TotalAmount, b.Currency, slot.Date, time.Now()), nil
}

type CancelInput struct {
	Actor     principal.Principal
	BookingID string
	Reason    string
	Bank      BankDetails
}

// Cancel performs the whole cancellation as one transaction: booking ->
// cancelled, headcount released back to the slot, and (for paid bookings)
// exactly one Refund plus the refund-type Cost the admin later settles.
// A second cancel attempt hits ErrAlreadyCancelled and changes nothing.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (*Refund, error) {
	var out *Refund

	err := dbx.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var b bookings.Booking
		if err := dbx.LockForUpdate(tx.WithContext(ctx)).
			First(&b, "id = ?", in.BookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bookings.ErrNotFound
			}
			return err
		}

		if !in.Actor.CanActFor(b.CustomerID) {
			return bookings.ErrForbidden
		}

		switch b.Status {
		case bookings.StatusCancelled:
			return ErrAlreadyCancelled
		case bookings.StatusCompleted:
			return ErrNotCancellable
		}

		slot, err := availability.Get(ctx, tx, b.AvailabilityID)
		if err != nil {
			return err
		}

		// Nothing was paid on a pending_payment booking: cancel and release,
		// no refund record.
		if b.Status == bookings.StatusPendingPayment {
			if err := bookings.CancelInTx(ctx, tx, &b, in.Reason, bookings.PaymentUnpaid); err != nil {
				return err
			}
			return availability.ReleaseInTx(ctx, tx, b.AvailabilityID, b.Participants())
		}

		// Confirmed booking: policy engine path.
		now := time.Now()
		quote := s.policy.QuoteFor(b.ID, b.TotalAmount, b.Currency, slot.Date, now)
		if quote.DaysBeforeTour < s.policy.MinLeadDays() {
			return ErrTooCloseToTour
		}
		if !in.Bank.Complete() {
			return ErrBankDetailsMissing
		}

		if err := bookings.CancelInTx(ctx, tx, &b, in.Reason, bookings.PaymentPaid); err != nil {
			return err
		}
		if err := availability.ReleaseInTx(ctx, tx, b.AvailabilityID, b.Participants()); err != nil {
			return err
		}

		r := Refund{
			ID:                uuid.NewString(),
			BookingID:         b.ID,
			CustomerID:        b.CustomerID,
			OriginalAmount:    quote.OriginalAmount,
			RefundAmount:      quote.RefundAmount,
			RefundPercentage:  quote.RefundPercentage,
			DaysBeforeTour:    quote.DaysBeforeTour,
			Currency:          quote.Currency,
			BankName:          in.Bank.BankName,
			BankAccountNumber: in.Bank.BankAccountNumber,
			BankAccountName:   in.Bank.BankAccountName,
			Status:            StatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if in.Reason != "" {
			reason := in.Reason
			r.Reason = &reason
		}
		if err := tx.WithContext(ctx).Create(&r).Error; err != nil {
			if dbx.IsDuplicateKey(err) {
				return ErrAlreadyCancelled
			}
			return err
		}

		// Payout obligation: platform owes the customer the refund amount.
		if quote.RefundAmount.IsPositive() {
			note := "refund for booking " + b.Number
			cost := ledger.Cost{
				ID:          uuid.NewString(),
				PayerID:     PlatformAccountID,
				RecipientID: b.CustomerID,
				EntityID:    b.ID,
				EntityType:  ledger.EntityBooking,
				Type:        ledger.CostRefund,
				Amount:      quote.RefundAmount,
				Currency:    quote.Currency,
				Status:      ledger.CostPending,
				Note:        &note,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.WithContext(ctx).Create(&cost).Error; err != nil {
				return err
			}
		}

		out = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out != nil {
		s.logger.InfoContext(ctx, "booking cancelled with refund",
			"booking_id", in.BookingID, "refund_id", out.ID,
			"percent", out.RefundPercentage.String(), "amount", out.RefundAmount.String())
	} else {
		s.logger.InfoContext(ctx, "booking cancelled before payment", "booking_id", in.BookingID)
	}
	return out, nil
}

// ByBookingInTx loads the refund tied to a booking, locked for update.
func ByBookingInTx(ctx context.Context, tx *gorm.DB, bookingID string) (Refund, error) {
	var r Refund
	err := dbx.LockForUpdate(tx.WithContext(ctx)).
		First(&r, "booking_id = ?", bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Refund{}, ErrNotFound
	}
	return r, err
}

// TransitionInTx advances a refund along its forward-only lifecycle.
func TransitionInTx(ctx context.Context, tx *gorm.DB, r *Refund, to Status) error {
	if !r.Status.CanTransitionTo(to) {
		return errors.New("invalid refund status transition")
	}

	now := time.Now()
	updates := map[string]any{"status": to, "updated_at": now}
	if to == StatusCompleted {
		updates["processed_at"] = now
	}

	res := tx.WithContext(ctx).Model(&Refund{}).
		Where("id = ? AND status = ?", r.ID, r.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return errors.New("concurrent refund status change")
	}

	r.Status = to
	r.UpdatedAt = now
	if to == StatusCompleted {
		r.ProcessedAt = &now
	}
	return nil
}
