package refunds

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Forward-only lifecycle; completed/failed/cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Refund records a cancellation payout. The unique index on booking_id
// enforces at most one refund per booking; the quoted original amount,
// percentage and day count are immutable once written.
type Refund struct {
	ID         string `gorm:"type:char(36);primaryKey"`
	BookingID  string `gorm:"type:char(36);not null;uniqueIndex:ux_refunds_booking_id"`
	CustomerID string `gorm:"type:char(36);not null;index:ix_refunds_customer_id"`

	OriginalAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	RefundAmount     decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	RefundPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	DaysBeforeTour   int             `gorm:"not null"`
	Currency         string          `gorm:"type:char(3);not null"`

	BankName          string `gorm:"type:varchar(128);not null"`
	BankAccountNumber string `gorm:"type:varchar(64);not null"`
	BankAccountName   string `gorm:"type:varchar(255);not null"`

	Reason *string `gorm:"type:varchar(255)"`
	Status Status  `gorm:"type:varchar(16);not null"`

	ProcessedAt *time.Time `gorm:"type:datetime(3)"`
	CreatedAt   time.Time  `gorm:"type:datetime(3);not null"`
	UpdatedAt   time.Time  `gorm:"type:datetime(3);not null"`
}

func (Refund) TableName() string { return "refunds" }

// BankDetails is the customer's payout destination collected at cancellation.
type BankDetails struct {
	BankName          string
	BankAccountNumber string
	BankAccountName   string
}

func (b BankDetails) Complete() bool {
	return b.BankName != "" && b.BankAccountNumber != "" && b.BankAccountName != ""
}
