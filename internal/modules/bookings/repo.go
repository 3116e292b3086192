package bookings

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) DB() *gorm.DB { return r.db }

func (r *Repo) GetByID(ctx context.Context, id string) (Booking, error) {
	var b Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	return b, nil
}

// PendingByNumberInTx finds the unpaid booking a payment notification should
// match against.
func PendingByNumberInTx(ctx context.Context, tx *gorm.DB, number string) (Booking, error) {
	var b Booking
	err := tx.WithContext(ctx).
		First(&b, "number = ? AND status = ?", number, StatusPendingPayment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Booking{}, ErrNotFound
	}
	return b, err
}

type ListByCustomerParams struct {
	CustomerID string
	Page       int
	PageSize   int
	Status     string // optional filter
}

type ListByCustomerResult struct {
	Items []Booking
	Total int64
}

func (r *Repo) ListByCustomer(ctx context.Context, in ListByCustomerParams) (ListByCustomerResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.PageSize
	if size < 1 || size > 100 {
		size = 20
	}

	q := r.db.WithContext(ctx).Model(&Booking{}).Where("customer_id = ?", in.CustomerID)
	if in.Status != "" {
		q = q.Where("status = ?", in.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return ListByCustomerResult{}, err
	}

	var items []Booking
	if err := q.
		Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&items).Error; err != nil {
		return ListByCustomerResult{}, err
	}

	return ListByCustomerResult{Items: items, Total: total}, nil
}
