package payments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/bookings"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/catalog"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/email"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/ledger"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/orders"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/dbx"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/refcode"
	"github.com/dajtvoxdev/tourimate-sub003/internal/storage"
)

type Outcome string

const (
	OutcomeMatched        Outcome = "matched"
	OutcomeUnmatched      Outcome = "unmatched"
	OutcomeDuplicate      Outcome = "duplicate_ignored"
	OutcomeAmountMismatch Outcome = "amount_mismatch"
	OutcomeIgnored        Outcome = "ignored" // outgoing transfers
)

var ErrNotificationNotFound = errors.New("notification not found")

// Reconciler matches inbound SePay notifications to pending bookings/orders
// and drives confirmation plus ledger writes in one transaction per event.
type Reconciler struct {
	db             *gorm.DB
	commissionRate decimal.Decimal
	logger         *slog.Logger

	// post-commit, best-effort collaborators; nil disables them
	archive  storage.Storage
	notifier *email.Notifier
}

func NewReconciler(db *gorm.DB, commissionRate decimal.Decimal) *Reconciler {
	return &Reconciler{db: db, commissionRate: commissionRate, logger: slog.Default()}
}

func (r *Reconciler) SetLogger(l *slog.Logger) { r.logger = l }
func (r *Reconciler) SetArchive(s storage.Storage) { r.archive = s }
func (r *Reconciler) SetNotifier(n *email.Notifier) { r.notifier = n }

type IngestInput struct {
	SepayTxnID      int64
	Gateway         string
	TransactionDate time.Time
	AccountNumber   string
	ReferenceCode   string
	Content         string
	TransferType    string // in|out
	Amount          decimal.Decimal
	Currency        string
	Raw             []byte
}

type IngestResult struct {
	Outcome        Outcome
	NotificationID string
	Booking        *bookings.Booking
	Order          *orders.Order
}

// Ingest records and (when possible) applies one gateway notification.
// The dedup insert and every state mutation share one transaction, so a
// concurrent redelivery of the same sepay_txn_id either loses the insert
// race (DuplicateIgnored) or never sees partial state. Unmatched and
// mismatched notifications are committed as pending for admin review, never
// dropped.
func (r *Reconciler) Ingest(ctx context.Context, in IngestInput) (IngestResult, error) {
	var res IngestResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		currency := in.Currency
		if currency == "" {
			currency = "VND"
		}

		n := Notification{
			ID:              uuid.NewString(),
			SepayTxnID:      in.SepayTxnID,
			Gateway:         in.Gateway,
			TransactionDate: in.TransactionDate,
			AccountNumber:   in.AccountNumber,
			ReferenceCode:   in.ReferenceCode,
			Content:         in.Content,
			TransferType:    in.TransferType,
			Amount:          in.Amount,
			Currency:        currency,
			PayloadJSON:     datatypes.JSON(in.Raw),
			Status:          StatusPending,
			ReceivedAt:      now,
		}

		if err := tx.WithContext(ctx).Create(&n).Error; err != nil {
			if dbx.IsDuplicateKey(err) {
				// redelivery: the first delivery owns the outcome
				r.logger.InfoContext(ctx, "sepay notification deduplicated",
					"sepay_txn_id", in.SepayTxnID)
				res = IngestResult{Outcome: OutcomeDuplicate}
				return nil
			}
			return err
		}
		res.NotificationID = n.ID

		if in.TransferType != "in" {
			res.Outcome = OutcomeIgnored
			return markProcessed(ctx, tx, &n, "outgoing transfer, nothing to match", nil)
		}

		outcome, err := r.applyInTx(ctx, tx, &n, "", &res)
		if err != nil {
			return err
		}
		res.Outcome = outcome
		return nil
	})
	if err != nil {
		return IngestResult{}, err
	}

	if res.Outcome == OutcomeMatched {
		r.afterMatch(ctx, in, res)
	}
	return res, nil
}

// applyInTx runs the match steps against an already-persisted notification:
// extract reference, find the pending entity, verify the amount, then confirm
// + write ledger rows + mark processed. overrideRef lets the admin replay
// with an explicit reference when extraction failed.
func (r *Reconciler) applyInTx(ctx context.Context, tx *gorm.DB, n *Notification, overrideRef string, res *IngestResult) (Outcome, error) {
	code := overrideRef
	if code == "" {
		var ok bool
		code, ok = refcode.Extract(n.Content)
		if !ok {
			return OutcomeUnmatched, markPendingNote(ctx, tx, n, "no reference code in transfer content")
		}
	}

	switch {
	case refcode.IsBooking(code):
		return r.applyBooking(ctx, tx, n, code, res)
	case refcode.IsOrder(code):
		return r.applyOrder(ctx, tx, n, code, res)
	default:
		return OutcomeUnmatched, markPendingNote(ctx, tx, n, "unrecognized reference code "+code)
	}
}

func (r *Reconciler) applyBooking(ctx context.Context, tx *gorm.DB, n *Notification, code string, res *IngestResult) (Outcome, error) {
	b, err := bookings.PendingByNumberInTx(ctx, tx, code)
	if err != nil {
		if errors.Is(err, bookings.ErrNotFound) {
			return OutcomeUnmatched, markPendingNote(ctx, tx, n, "no pending booking for "+code)
		}
		return "", err
	}

	if !n.Amount.Equal(b.TotalAmount) {
		note := fmt.Sprintf("amount mismatch for %s: expected %s, got %s",
			code, b.TotalAmount.String(), n.Amount.String())
		return OutcomeAmountMismatch, markPendingNote(ctx, tx, n, note)
	}

	confirmed, err := bookings.ConfirmInTx(ctx, tx, b.ID)
	if err != nil {
		return "", err
	}

	txnID := n.SepayTxnID
	if _, err := ledger.EnsureTransactionInTx(ctx, tx, ledger.NewTransactionInput{
		UserID:       confirmed.CustomerID,
		Ref:          ledger.EntityRef{Type: ledger.EntityBooking, ID: confirmed.ID},
		Direction:    ledger.DirectionIn,
		Amount:       n.Amount,
		Currency:     confirmed.Currency,
		Status:       ledger.TxnCompleted,
		Gateway:      n.Gateway,
		GatewayTxnID: &txnID,
		Description:  "bank transfer for booking " + confirmed.Number,
	}); err != nil {
		return "", err
	}

	var tour catalog.Tour
	if err := tx.WithContext(ctx).First(&tour, "id = ?", confirmed.TourID).Error; err != nil {
		return "", err
	}
	if _, err := ledger.CreateRevenueInTx(ctx, tx, ledger.NewRevenueInput{
		VendorID:       tour.VendorID,
		Ref:            ledger.EntityRef{Type: ledger.EntityBooking, ID: confirmed.ID},
		GrossAmount:    confirmed.TotalAmount,
		CommissionRate: r.commissionRate,
		Currency:       confirmed.Currency,
		Status:         ledger.PayoutPending,
	}); err != nil {
		return "", err
	}

	res.Booking = &confirmed
	ref := ledger.EntityRef{Type: ledger.EntityBooking, ID: confirmed.ID}
	return OutcomeMatched, markProcessed(ctx, tx, n, "matched booking "+confirmed.Number, &ref)
}

func (r *Reconciler) applyOrder(ctx context.Context, tx *gorm.DB, n *Notification, code string, res *IngestResult) (Outcome, error) {
	o, err := orders.PendingByNumberInTx(ctx, tx, code)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return OutcomeUnmatched, markPendingNote(ctx, tx, n, "no pending order for "+code)
		}
		return "", err
	}

	if !n.Amount.Equal(o.TotalAmount) {
		note := fmt.Sprintf("amount mismatch for %s: expected %s, got %s",
			code, o.TotalAmount.String(), n.Amount.String())
		return OutcomeAmountMismatch, markPendingNote(ctx, tx, n, note)
	}

	paid, err := orders.MarkPaidInTx(ctx, tx, o.ID)
	if err != nil {
		return "", err
	}

	txnID := n.SepayTxnID
	if _, err := ledger.EnsureTransactionInTx(ctx, tx, ledger.NewTransactionInput{
		UserID:       paid.CustomerID,
		Ref:          ledger.EntityRef{Type: ledger.EntityOrder, ID: paid.ID},
		Direction:    ledger.DirectionIn,
		Amount:       n.Amount,
		Currency:     paid.Currency,
		Status:       ledger.TxnCompleted,
		Gateway:      n.Gateway,
		GatewayTxnID: &txnID,
		Description:  "bank transfer for order " + paid.Number,
	}); err != nil {
		return "", err
	}

	res.Order = &paid
	ref := ledger.EntityRef{Type: ledger.EntityOrder, ID: paid.ID}
	return OutcomeMatched, markProcessed(ctx, tx, n, "matched order "+paid.Number, &ref)
}

// Approve replays the match steps for a notification that is still pending,
// optionally with an explicit reference the operator resolved by hand.
func (r *Reconciler) Approve(ctx context.Context, notificationID, overrideRef string) (IngestResult, error) {
	var res IngestResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n Notification
		if err := dbx.LockForUpdate(tx.WithContext(ctx)).
			First(&n, "id = ?", notificationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotificationNotFound
			}
			return err
		}
		res.NotificationID = n.ID

		if n.Status == StatusProcessed {
			res.Outcome = OutcomeDuplicate
			return nil
		}
		if n.TransferType != "in" {
			res.Outcome = OutcomeIgnored
			return nil
		}

		outcome, err := r.applyInTx(ctx, tx, &n, overrideRef, &res)
		if err != nil {
			return err
		}
		res.Outcome = outcome
		return nil
	})
	if err != nil {
		return IngestResult{}, err
	}

	r.logger.InfoContext(ctx, "sepay notification approved",
		"notification_id", notificationID, "outcome", string(res.Outcome))
	return res, nil
}

// Reject closes a pending notification as failed with the operator's note.
func (r *Reconciler) Reject(ctx context.Context, notificationID, note string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n Notification
		if err := dbx.LockForUpdate(tx.WithContext(ctx)).
			First(&n, "id = ?", notificationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotificationNotFound
			}
			return err
		}
		if n.Status != StatusPending {
			return fmt.Errorf("notification %s is already %s", n.ID, n.Status)
		}

		now := time.Now()
		msg := truncate(note, 250)
		return tx.WithContext(ctx).Model(&Notification{}).
			Where("id = ?", n.ID).
			Updates(map[string]any{
				"status":       StatusFailed,
				"process_note": msg,
				"processed_at": now,
			}).Error
	})
}

// ListUnmatched returns notifications awaiting manual reconciliation.
func (r *Reconciler) ListUnmatched(ctx context.Context, limit int) ([]Notification, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var out []Notification
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("received_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *Reconciler) GetNotification(ctx context.Context, id string) (Notification, error) {
	var n Notification
	err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// afterMatch runs the best-effort collaborators once the core transaction
// committed: archive the raw payload and mail the customer. Failures are
// logged and never affect the financial state.
func (r *Reconciler) afterMatch(ctx context.Context, in IngestInput, res IngestResult) {
	if r.archive != nil && len(in.Raw) > 0 {
		name := fmt.Sprintf("sepay_%d.json", in.SepayTxnID)
		if _, err := r.archive.Put(ctx, bytes.NewReader(in.Raw), storage.PutInput{
			Filename:    name,
			ContentType: "application/json",
			Size:        int64(len(in.Raw)),
		}); err != nil {
			r.logger.WarnContext(ctx, "payload archive failed",
				"sepay_txn_id", in.SepayTxnID, "err", err)
		}
	}

	if r.notifier != nil && res.Booking != nil {
		var u catalog.User
		if err := r.db.WithContext(ctx).First(&u, "id = ?", res.Booking.CustomerID).Error; err == nil {
			if err := r.notifier.SendBookingConfirmation(ctx, u.Email, u.FullName,
				res.Booking.Number, res.Booking.TotalAmount.String()+" "+res.Booking.Currency); err != nil {
				r.logger.WarnContext(ctx, "booking confirmation mail failed",
					"booking_id", res.Booking.ID, "err", err)
			}
		}
	}
}

func markProcessed(ctx context.Context, tx *gorm.DB, n *Notification, note string, ref *ledger.EntityRef) error {
	now := time.Now()
	updates := map[string]any{
		"status":       StatusProcessed,
		"process_note": truncate(note, 250),
		"processed_at": now,
	}
	if ref != nil {
		updates["matched_entity_type"] = string(ref.Type)
		updates["matched_entity_id"] = ref.ID
	}
	if err := tx.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", n.ID).
		Updates(updates).Error; err != nil {
		return err
	}
	n.Status = StatusProcessed
	n.ProcessedAt = &now
	return nil
}

// markPendingNote keeps the row pending (manual review) but records why
// automatic matching did not succeed.
func markPendingNote(ctx context.Context, tx *gorm.DB, n *Notification, note string) error {
	return tx.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", n.ID).
		Update("process_note", truncate(note, 250)).Error
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
