package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/dbx"
)

var ErrUnknownEntity = errors.New("entity reference does not resolve")

// entityTables: explicit per-tag lookup so referential integrity of the
// polymorphic (entity_type, entity_id) pair stays checkable.
var entityTables = map[EntityType]string{
	EntityBooking: "bookings",
	EntityOrder:   "orders",
	EntityCost:    "costs",
}

type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *gorm.DB { return s.db }

// ResolveRef verifies that ref points at an existing row of the right table.
func ResolveRef(ctx context.Context, tx *gorm.DB, ref EntityRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	table, ok := entityTables[ref.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, ref)
	}
	var cnt int64
	if err := tx.WithContext(ctx).Table(table).Where("id = ?", ref.ID).Count(&cnt).Error; err != nil {
		return err
	}
	if cnt == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, ref)
	}
	return nil
}

type NewTransactionInput struct {
	UserID       string
	Ref          EntityRef
	Direction    Direction
	Amount       decimal.Decimal
	Currency     string
	Status       TransactionStatus
	Gateway      string
	GatewayTxnID *int64
	Description  string
}

// CreateTransactionInTx inserts one money-movement row after resolving the
// entity reference. Duplicate gateway txn ids surface as dbx.IsDuplicateKey.
func CreateTransactionInTx(ctx context.Context, tx *gorm.DB, in NewTransactionInput) (Transaction, error) {
	if err := ResolveRef(ctx, tx, in.Ref); err != nil {
		return Transaction{}, err
	}

	now := time.Now()
	t := Transaction{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		EntityID:     in.Ref.ID,
		EntityType:   in.Ref.Type,
		Direction:    in.Direction,
		Amount:       in.Amount,
		Currency:     in.Currency,
		Status:       in.Status,
		GatewayTxnID: in.GatewayTxnID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Gateway != "" {
		g := in.Gateway
		t.Gateway = &g
	}
	if in.Description != "" {
		d := in.Description
		t.Description = &d
	}

	if err := tx.WithContext(ctx).Create(&t).Error; err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// EnsureTransactionInTx is the idempotent variant: if a transaction for the
// same gateway txn id already exists, the existing row is returned untouched.
func EnsureTransactionInTx(ctx context.Context, tx *gorm.DB, in NewTransactionInput) (Transaction, error) {
	if in.GatewayTxnID != nil {
		var existing Transaction
		err := tx.WithContext(ctx).
			First(&existing, "gateway_txn_id = ?", *in.GatewayTxnID).Error
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Transaction{}, err
		}
	}

	t, err := CreateTransactionInTx(ctx, tx, in)
	if err != nil && dbx.IsDuplicateKey(err) && in.GatewayTxnID != nil {
		// lost a race with a concurrent ingestion of the same gateway id
		var existing Transaction
		if e2 := tx.WithContext(ctx).
			First(&existing, "gateway_txn_id = ?", *in.GatewayTxnID).Error; e2 == nil {
			return existing, nil
		}
		return Transaction{}, err
	}
	return t, err
}

type NewRevenueInput struct {
	VendorID       string
	Ref            EntityRef
	GrossAmount    decimal.Decimal
	CommissionRate decimal.Decimal // percent, 0..100
	Currency       string
	Status         PayoutStatus
}

// BuildRevenue computes the commission split. Commission is rounded to 2dp
// and net is derived by subtraction so gross = commission + net holds exactly.
func BuildRevenue(in NewRevenueInput) Revenue {
	commission := in.GrossAmount.
		Mul(in.CommissionRate).
		Div(decimal.NewFromInt(100)).
		Round(2)
	net := in.GrossAmount.Sub(commission)

	now := time.Now()
	return Revenue{
		ID:               uuid.NewString(),
		VendorID:         in.VendorID,
		EntityID:         in.Ref.ID,
		EntityType:       in.Ref.Type,
		GrossAmount:      in.GrossAmount,
		CommissionRate:   in.CommissionRate,
		CommissionAmount: commission,
		NetAmount:        net,
		Currency:         in.Currency,
		Status:           in.Status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// CreateRevenueInTx resolves the reference and inserts the split row.
func CreateRevenueInTx(ctx context.Context, tx *gorm.DB, in NewRevenueInput) (Revenue, error) {
	if err := ResolveRef(ctx, tx, in.Ref); err != nil {
		return Revenue{}, err
	}
	r := BuildRevenue(in)
	if err := tx.WithContext(ctx).Create(&r).Error; err != nil {
		return Revenue{}, err
	}
	return r, nil
}

// PendingRevenueForEntity finds the unpaid split created at reconciliation
// time for one booking/order.
func PendingRevenueForEntity(ctx context.Context, tx *gorm.DB, ref EntityRef) (Revenue, error) {
	var r Revenue
	err := tx.WithContext(ctx).
		First(&r, "entity_type = ? AND entity_id = ? AND status = ?", ref.Type, ref.ID, PayoutPending).Error
	return r, err
}

func (s *Store) GetCost(ctx context.Context, id string) (Cost, error) {
	var c Cost
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return c, err
}

// TransitionCostInTx moves a locked cost along its lifecycle, enforcing the
// transition table with an optimistic status guard on the update.
func TransitionCostInTx(ctx context.Context, tx *gorm.DB, c *Cost, to CostStatus) error {
	if !c.Status.CanTransitionTo(to) {
		return fmt.Errorf("cost %s: cannot transition %s -> %s", c.ID, c.Status, to)
	}

	now := time.Now()
	updates := map[string]any{"status": to, "updated_at": now}
	if to == CostPaid {
		updates["paid_at"] = now
	}

	res := tx.WithContext(ctx).
		Model(&Cost{}).
		Where("id = ? AND status = ?", c.ID, c.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("cost %s: concurrent status change", c.ID)
	}

	c.Status = to
	c.UpdatedAt = now
	if to == CostPaid {
		c.PaidAt = &now
	}
	return nil
}
