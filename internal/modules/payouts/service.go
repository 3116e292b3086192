package payouts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/bookings"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/catalog"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/email"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/ledger"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/orders"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/refunds"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/dbx"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/principal"
)

// Service drives the payout side of the ledger: vendors request their net
// share after completion, admins approve and settle. Settlement is the only
// place paired out/in transactions are written for costs.
type Service struct {
	db      *gorm.DB
	catalog *catalog.Repo
	logger  *slog.Logger

	notifier *email.Notifier // optional, post-commit only
}

func NewService(db *gorm.DB, cat *catalog.Repo) *Service {
	return &Service{db: db, catalog: cat, logger: slog.Default()}
}

func (s *Service) SetLogger(l *slog.Logger) { s.logger = l }
func (s *Service) SetNotifier(n *email.Notifier) { s.notifier = n }

// liveCostStatuses are the states that block a second payout request for the
// same entity.
var liveCostStatuses = []ledger.CostStatus{
	ledger.CostPending, ledger.CostApproved, ledger.CostPaid, ledger.CostOverdue,
}

// RequestVendorPayment opens a vendor-payment cost for a finished booking or
// delivered order. The amount is never taken from the caller; it is the net
// share of the pending revenue written at reconciliation time.
func (s *Service) RequestVendorPayment(ctx context.Context, actor principal.Principal, ref ledger.EntityRef) (ledger.Cost, error) {
	vendorID, currency, entityLabel, err := s.completedEntity(ctx, ref)
	if err != nil {
		return ledger.Cost{}, err
	}
	if !actor.CanActFor(vendorID) {
		return ledger.Cost{}, ErrForbidden
	}

	var out ledger.Cost
	err = dbx.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.WithContext(ctx).Model(&ledger.Cost{}).
			Where("entity_type = ? AND entity_id = ? AND type = ? AND status IN ?",
				ref.Type, ref.ID, ledger.CostVendorPayment, liveCostStatuses).
			Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			return ErrAlreadyExists
		}

		rev, err := ledger.PendingRevenueForEntity(ctx, tx, ref)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNothingToPay
			}
			return err
		}

		now := time.Now()
		note := "vendor payment for " + entityLabel
		out = ledger.Cost{
			ID:          uuid.NewString(),
			PayerID:     refunds.PlatformAccountID,
			RecipientID: vendorID,
			EntityID:    ref.ID,
			EntityType:  ref.Type,
			Type:        ledger.CostVendorPayment,
			Amount:      rev.NetAmount,
			Currency:    currency,
			Status:      ledger.CostPending,
			Note:        &note,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.WithContext(ctx).Create(&out).Error
	})
	if err != nil {
		return ledger.Cost{}, err
	}

	s.logger.InfoContext(ctx, "vendor payment requested",
		"cost_id", out.ID, "vendor_id", vendorID, "entity", ref.String(),
		"amount", out.Amount.String())
	return out, nil
}

// Get loads one cost, visible to admins and the recipient.
func (s *Service) Get(ctx context.Context, actor principal.Principal, costID string) (ledger.Cost, error) {
	var c ledger.Cost
	if err := s.db.WithContext(ctx).First(&c, "id = ?", costID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Cost{}, ErrNotFound
		}
		return ledger.Cost{}, err
	}
	if !actor.CanActFor(c.RecipientID) {
		return ledger.Cost{}, ErrForbidden
	}
	return c, nil
}

// Approve moves a pending cost to approved. Admin only.
func (s *Service) Approve(ctx context.Context, actor principal.Principal, costID string) (ledger.Cost, error) {
	if !actor.IsAdmin() {
		return ledger.Cost{}, ErrForbidden
	}

	var out ledger.Cost
	err := dbx.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		c, err := lockCost(ctx, tx, costID)
		if err != nil {
			return err
		}
		if err := ledger.TransitionCostInTx(ctx, tx, &c, ledger.CostApproved); err != nil {
			return fmt.Errorf("%w: %v", ErrNotProcessable, err)
		}
		out = c
		return nil
	})
	if err != nil {
		return ledger.Cost{}, err
	}

	s.logger.InfoContext(ctx, "payout approved", "cost_id", out.ID)
	return out, nil
}

// ProcessPayment settles a cost: the admin confirms the bank transfer went
// out, the cost turns paid and the paired out/in transactions are written.
// Vendor payments additionally flip the source revenue to paid and record a
// zero-commission payout revenue; refund costs complete the linked refund and
// flip the booking's payment status.
func (s *Service) ProcessPayment(ctx context.Context, actor principal.Principal, costID string) (ledger.Cost, error) {
	if !actor.IsAdmin() {
		return ledger.Cost{}, ErrForbidden
	}

	var peek ledger.Cost
	if err := s.db.WithContext(ctx).First(&peek, "id = ?", costID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Cost{}, ErrNotFound
		}
		return ledger.Cost{}, err
	}

	// Vendor payments need a registered bank destination. Refund costs carry
	// their destination on the refund row, collected at cancellation.
	if peek.Type == ledger.CostVendorPayment {
		u, err := s.catalog.GetUser(ctx, peek.RecipientID)
		if err != nil {
			return ledger.Cost{}, err
		}
		if !u.HasBankInfo() {
			return ledger.Cost{}, &MissingBankInfoError{UserID: u.ID, Fields: u.MissingBankFields()}
		}
	}

	var out ledger.Cost
	err := dbx.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		c, err := lockCost(ctx, tx, costID)
		if err != nil {
			return err
		}
		if !c.Status.CanTransitionTo(ledger.CostPaid) {
			return ErrNotProcessable
		}
		if err := ledger.TransitionCostInTx(ctx, tx, &c, ledger.CostPaid); err != nil {
			return err
		}

		costRef := ledger.EntityRef{Type: ledger.EntityCost, ID: c.ID}
		desc := string(c.Type) + " settlement"
		if _, err := ledger.CreateTransactionInTx(ctx, tx, ledger.NewTransactionInput{
			UserID:      c.PayerID,
			Ref:         costRef,
			Direction:   ledger.DirectionOut,
			Amount:      c.Amount,
			Currency:    c.Currency,
			Status:      ledger.TxnCompleted,
			Description: desc,
		}); err != nil {
			return err
		}
		if _, err := ledger.CreateTransactionInTx(ctx, tx, ledger.NewTransactionInput{
			UserID:      c.RecipientID,
			Ref:         costRef,
			Direction:   ledger.DirectionIn,
			Amount:      c.Amount,
			Currency:    c.Currency,
			Status:      ledger.TxnCompleted,
			Description: desc,
		}); err != nil {
			return err
		}

		switch c.Type {
		case ledger.CostVendorPayment:
			if err := settleVendorRevenue(ctx, tx, c); err != nil {
				return err
			}
		case ledger.CostRefund:
			if err := settleRefund(ctx, tx, c); err != nil {
				return err
			}
		}

		out = c
		return nil
	})
	if err != nil {
		return ledger.Cost{}, err
	}

	s.logger.InfoContext(ctx, "payout processed",
		"cost_id", out.ID, "type", string(out.Type), "amount", out.Amount.String())
	s.notifyProcessed(ctx, out)
	return out, nil
}

// completedEntity checks the entity finished its lifecycle and returns its
// owning vendor, currency and a human-readable label.
func (s *Service) completedEntity(ctx context.Context, ref ledger.EntityRef) (vendorID, currency, label string, err error) {
	switch ref.Type {
	case ledger.EntityBooking:
		var b bookings.Booking
		if err := s.db.WithContext(ctx).First(&b, "id = ?", ref.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", "", "", bookings.ErrNotFound
			}
			return "", "", "", err
		}
		if b.Status != bookings.StatusCompleted {
			return "", "", "", ErrNotCompleted
		}
		vendorID, err := s.catalog.TourVendorID(ctx, b.TourID)
		if err != nil {
			return "", "", "", err
		}
		return vendorID, b.Currency, "booking "+b.Number, nil

	case ledger.EntityOrder:
		var o orders.Order
		if err := s.db.WithContext(ctx).First(&o, "id = ?", ref.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", "", "", orders.ErrNotFound
			}
			return "", "", "", err
		}
		if o.Status != orders.StatusDelivered {
			return "", "", "", ErrNotCompleted
		}
		return o.VendorID, o.Currency, "order "+o.Number, nil
	}
	return "", "", "", fmt.Errorf("unsupported payout entity type %q", ref.Type)
}

func lockCost(ctx context.Context, tx *gorm.DB, costID string) (ledger.Cost, error) {
	var c ledger.Cost
	err := dbx.LockForUpdate(tx.WithContext(ctx)).First(&c, "id = ?", costID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Cost{}, ErrNotFound
	}
	return c, err
}

// settleVendorRevenue flips the reconciliation-time revenue to paid and
// records the payout itself as a zero-commission revenue against the cost.
func settleVendorRevenue(ctx context.Context, tx *gorm.DB, c ledger.Cost) error {
	rev, err := ledger.PendingRevenueForEntity(ctx, tx, c.Ref())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNothingToPay
		}
		return err
	}

	now := time.Now()
	res := tx.WithContext(ctx).Model(&ledger.Revenue{}).
		Where("id = ? AND status = ?", rev.ID, ledger.PayoutPending).
		Updates(map[string]any{"status": ledger.PayoutPaid, "paid_at": now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return errors.New("concurrent revenue status change")
	}

	payout := ledger.BuildRevenue(ledger.NewRevenueInput{
		VendorID:       c.RecipientID,
		Ref:            ledger.EntityRef{Type: ledger.EntityCost, ID: c.ID},
		GrossAmount:    c.Amount,
		CommissionRate: decimal.Zero,
		Currency:       c.Currency,
		Status:         ledger.PayoutPaid,
	})
	payout.PaidAt = &now
	return tx.WithContext(ctx).Create(&payout).Error
}

// settleRefund completes the refund linked to the cost's booking and marks
// the booking's money as returned.
func settleRefund(ctx context.Context, tx *gorm.DB, c ledger.Cost) error {
	if c.EntityType != ledger.EntityBooking {
		return fmt.Errorf("refund cost %s references %s, want booking", c.ID, c.EntityType)
	}

	r, err := refunds.ByBookingInTx(ctx, tx, c.EntityID)
	if err != nil {
		return err
	}
	if err := refunds.TransitionInTx(ctx, tx, &r, refunds.StatusCompleted); err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&bookings.Booking{}).
		Where("id = ?", c.EntityID).
		Updates(map[string]any{"payment_status": bookings.PaymentRefunded, "updated_at": time.Now()}).Error
}

// notifyProcessed sends the settlement mail after commit; failures are logged.
func (s *Service) notifyProcessed(ctx context.Context, c ledger.Cost) {
	if s.notifier == nil {
		return
	}
	u, err := s.catalog.GetUser(ctx, c.RecipientID)
	if err != nil {
		s.logger.WarnContext(ctx, "payout mail skipped, recipient lookup failed",
			"cost_id", c.ID, "err", err)
		return
	}

	amount := c.Amount.String() + " " + c.Currency
	ref := string(c.EntityType) + " " + c.EntityID
	if c.Note != nil {
		ref = *c.Note
	}

	switch c.Type {
	case ledger.CostRefund:
		err = s.notifier.SendRefundProcessed(ctx, u.Email, u.FullName, ref, amount)
	default:
		err = s.notifier.SendPayoutProcessed(ctx, u.Email, u.FullName, ref, amount)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "payout mail failed", "cost_id", c.ID, "err", err)
	}
}
