package orders

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/dbx"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) GetByID(ctx context.Context, id string) (Order, error) {
	var o Order
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// PendingByNumberInTx finds the unpaid order a payment notification should
// match against.
func PendingByNumberInTx(ctx context.Context, tx *gorm.DB, number string) (Order, error) {
	var o Order
	err := tx.WithContext(ctx).
		First(&o, "number = ? AND status = ?", number, StatusPending).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// MarkPaidInTx transitions pending -> processing once payment is matched.
// Idempotent against a row already moved on by a concurrent ingestion.
func MarkPaidInTx(ctx context.Context, tx *gorm.DB, orderID string) (Order, error) {
	var o Order
	if err := dbx.LockForUpdate(tx.WithContext(ctx)).
		First(&o, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}

	if o.Status != StatusPending {
		if o.PaymentStatus == PaymentPaid {
			return o, nil
		}
		return Order{}, ErrInvalidTransition
	}

	now := time.Now()
	res := tx.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", o.ID, StatusPending).
		Updates(map[string]any{
			"status":         StatusProcessing,
			"payment_status": PaymentPaid,
			"paid_at":        now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return Order{}, res.Error
	}
	if res.RowsAffected != 1 {
		return Order{}, ErrInvalidTransition
	}

	o.Status = StatusProcessing
	o.PaymentStatus = PaymentPaid
	o.PaidAt = &now
	o.UpdatedAt = now
	return o, nil
}
