package bookings

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// transitions is the full lifecycle table; completed and cancelled are
// terminal. Anything not listed here is rejected.
var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusCompleted, StatusCancelled},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Booking is one customer's reservation against one availability slot.
// TotalAmount is always recomputed from slot pricing and headcounts; it is
// never accepted from the client.
type Booking struct {
	ID             string `gorm:"type:char(36);primaryKey"`
	Number         string `gorm:"type:varchar(32);not null;uniqueIndex:ux_bookings_number"`
	TourID         string `gorm:"type:char(36);not null;index:ix_bookings_tour_id"`
	AvailabilityID string `gorm:"type:char(36);not null;index:ix_bookings_availability_id"`
	CustomerID     string `gorm:"type:char(36);not null;index:ix_bookings_customer_id"`

	AdultCount int `gorm:"not null"`
	ChildCount int `gorm:"not null;default:0"`

	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Currency    string          `gorm:"type:char(3);not null"`

	Status        Status        `gorm:"type:varchar(24);not null"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(16);not null"`

	CancelReason *string    `gorm:"type:varchar(255)"`
	CancelledAt  *time.Time `gorm:"type:datetime(3)"`
	ConfirmedAt  *time.Time `gorm:"type:datetime(3)"`
	CompletedAt  *time.Time `gorm:"type:datetime(3)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Booking) TableName() string { return "bookings" }

func (b Booking) Participants() int { return b.AdultCount + b.ChildCount }

// Editable: slot/headcount changes are allowed until the booking reaches a
// terminal state.
func (b Booking) Editable() bool { return !b.Status.Terminal() }
