package payments

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusProcessed ProcessingStatus = "processed"
	StatusFailed    ProcessingStatus = "failed"
)

// Notification is the raw bank transfer as reported by SePay. The unique
// index on sepay_txn_id is the dedup key that makes ingestion idempotent
// under at-least-once delivery. Rows that could not be matched automatically
// stay pending for admin review; the original payload is kept verbatim.
type Notification struct {
	ID         string `gorm:"type:char(36);primaryKey"`
	SepayTxnID int64  `gorm:"not null;uniqueIndex:ux_sepay_notifications_txn"`
	Gateway    string `gorm:"type:varchar(64);not null"`

	TransactionDate time.Time       `gorm:"type:datetime(3);not null"`
	AccountNumber   string          `gorm:"type:varchar(32)"`
	ReferenceCode   string          `gorm:"type:varchar(64)"`
	Content         string          `gorm:"type:varchar(500);not null"`
	TransferType    string          `gorm:"type:varchar(8);not null"` // in|out
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Currency        string          `gorm:"type:char(3);not null;default:'VND'"`

	PayloadJSON datatypes.JSON `gorm:"type:json"`

	Status      ProcessingStatus `gorm:"type:varchar(16);not null"`
	ProcessNote *string          `gorm:"type:varchar(255)"`

	MatchedEntityType *string `gorm:"type:varchar(16)"`
	MatchedEntityID   *string `gorm:"type:char(36)"`

	ReceivedAt  time.Time  `gorm:"type:datetime(3);not null"`
	ProcessedAt *time.Time `gorm:"type:datetime(3)"`
}

func (Notification) TableName() string { return "sepay_notifications" }
