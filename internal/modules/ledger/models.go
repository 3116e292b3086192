package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntityType tags which table an EntityRef points at. Transactions, revenues
// and costs reference business entities through this tag pair instead of a
// foreign key; the Store resolves each tag through an explicit registry.
type EntityType string

const (
	EntityBooking EntityType = "booking"
	EntityOrder   EntityType = "order"
	EntityCost    EntityType = "cost"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityBooking, EntityOrder, EntityCost:
		return true
	}
	return false
}

// EntityRef is a tagged reference to one business entity.
type EntityRef struct {
	Type EntityType
	ID   string
}

func (r EntityRef) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("unknown entity type %q", r.Type)
	}
	if r.ID == "" {
		return errors.New("entity id is empty")
	}
	return nil
}

func (r EntityRef) String() string { return string(r.Type) + ":" + r.ID }

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
)

// Transaction is one directional money movement tied to a user and a tagged
// business entity. gateway_txn_id carries the external gateway's id for
// payments and is unique, so a gateway transaction produces at most one
// completed row no matter how often its notification is redelivered.
type Transaction struct {
	ID     string `gorm:"type:char(36);primaryKey"`
	UserID string `gorm:"type:char(36);not null;index:ix_transactions_user_id"`

	EntityID   string     `gorm:"type:char(36);not null;index:ix_transactions_entity,priority:2"`
	EntityType EntityType `gorm:"type:varchar(16);not null;index:ix_transactions_entity,priority:1"`

	Direction Direction         `gorm:"type:varchar(8);not null"`
	Amount    decimal.Decimal   `gorm:"type:decimal(15,2);not null"`
	Currency  string            `gorm:"type:char(3);not null"`
	Status    TransactionStatus `gorm:"type:varchar(16);not null"`

	Gateway      *string `gorm:"type:varchar(64)"`
	GatewayTxnID *int64  `gorm:"uniqueIndex:ux_transactions_gateway_txn"`
	Description  *string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Transaction) TableName() string { return "transactions" }

func (t Transaction) Ref() EntityRef { return EntityRef{Type: t.EntityType, ID: t.EntityID} }

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
	PayoutHeld    PayoutStatus = "held"
)

// Revenue is the commission split of one gross payment for one vendor.
// Invariant: GrossAmount = CommissionAmount + NetAmount, exactly.
type Revenue struct {
	ID       string `gorm:"type:char(36);primaryKey"`
	VendorID string `gorm:"type:char(36);not null;index:ix_revenues_vendor_id"`

	EntityID   string     `gorm:"type:char(36);not null;index:ix_revenues_entity,priority:2"`
	EntityType EntityType `gorm:"type:varchar(16);not null;index:ix_revenues_entity,priority:1"`

	GrossAmount      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	CommissionRate   decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	NetAmount        decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Currency         string          `gorm:"type:char(3);not null"`

	Status PayoutStatus `gorm:"type:varchar(16);not null"`
	PaidAt *time.Time   `gorm:"type:datetime(3)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Revenue) TableName() string { return "revenues" }

func (r Revenue) Ref() EntityRef { return EntityRef{Type: r.EntityType, ID: r.EntityID} }

// SplitConsistent checks the commission-split invariant.
func (r Revenue) SplitConsistent() bool {
	return r.GrossAmount.Equal(r.CommissionAmount.Add(r.NetAmount))
}

type CostType string

const (
	CostVendorPayment CostType = "vendor_payment"
	CostRefund        CostType = "refund"
	CostFee           CostType = "fee"
	CostPenalty       CostType = "penalty"
)

type CostStatus string

const (
	CostPending   CostStatus = "pending"
	CostApproved  CostStatus = "approved"
	CostPaid      CostStatus = "paid"
	CostCancelled CostStatus = "cancelled"
	CostOverdue   CostStatus = "overdue"
)

// costTransitions: forward-only lifecycle; terminal states have no exits.
var costTransitions = map[CostStatus][]CostStatus{
	CostPending:  {CostApproved, CostPaid, CostCancelled, CostOverdue},
	CostApproved: {CostPaid, CostCancelled, CostOverdue},
	CostOverdue:  {CostPaid, CostCancelled},
}

func (s CostStatus) CanTransitionTo(to CostStatus) bool {
	for _, t := range costTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Cost is a payable obligation between two parties, typed by purpose.
// Termination (admin confirmation) emits the paired transactions.
type Cost struct {
	ID          string `gorm:"type:char(36);primaryKey"`
	PayerID     string `gorm:"type:char(36);not null;index:ix_costs_payer_id"`
	RecipientID string `gorm:"type:char(36);not null;index:ix_costs_recipient_id"`

	EntityID   string     `gorm:"type:char(36);not null;index:ix_costs_entity,priority:2"`
	EntityType EntityType `gorm:"type:varchar(16);not null;index:ix_costs_entity,priority:1"`

	Type     CostType        `gorm:"type:varchar(32);not null"`
	Amount   decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Currency string          `gorm:"type:char(3);not null"`
	Status   CostStatus      `gorm:"type:varchar(16);not null"`

	Note    *string    `gorm:"type:varchar(255)"`
	DueDate *time.Time `gorm:"type:datetime(3)"`
	PaidAt  *time.Time `gorm:"type:datetime(3)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Cost) TableName() string { return "costs" }

func (c Cost) Ref() EntityRef { return EntityRef{Type: c.EntityType, ID: c.EntityID} }
