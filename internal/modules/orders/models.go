package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Order is a physical-product purchase. This core only moves it through
// payment reconciliation and vendor payout; item lines and fulfilment are
// the product service's concern.
type Order struct {
	ID         string `gorm:"type:char(36);primaryKey"`
	Number     string `gorm:"type:varchar(32);not null;uniqueIndex:ux_orders_number"`
	VendorID   string `gorm:"type:char(36);not null;index:ix_orders_vendor_id"`
	CustomerID string `gorm:"type:char(36);not null;index:ix_orders_customer_id"`

	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Currency    string          `gorm:"type:char(3);not null"`

	Status        Status        `gorm:"type:varchar(24);not null"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(16);not null"`

	PaidAt      *time.Time `gorm:"type:datetime(3)"`
	DeliveredAt *time.Time `gorm:"type:datetime(3)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Order) TableName() string { return "orders" }
