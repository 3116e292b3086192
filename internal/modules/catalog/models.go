package catalog

import "time"

// Catalog rows are owned by the tour-management and identity services; this
// core only reads them (ownership checks, payout routing, bank details).

type Tour struct {
	ID       string `gorm:"type:char(36);primaryKey"`
	VendorID string `gorm:"type:char(36);not null;index:ix_tours_vendor_id"`
	Title    string `gorm:"type:varchar(255);not null"`
	Location string `gorm:"type:varchar(255)"`
	IsActive bool   `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Tour) TableName() string { return "tours" }

type User struct {
	ID       string `gorm:"type:char(36);primaryKey"`
	Role     string `gorm:"type:varchar(32);not null"`
	FullName string `gorm:"type:varchar(255);not null"`
	Email    string `gorm:"type:varchar(255);not null"`

	// Payout destination; empty until the user fills it in.
	BankName          string `gorm:"type:varchar(128)"`
	BankAccountNumber string `gorm:"type:varchar(64)"`
	BankAccountName   string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (User) TableName() string { return "users" }

// HasBankInfo reports whether every payout destination field is populated.
func (u User) HasBankInfo() bool {
	return u.BankName != "" && u.BankAccountNumber != "" && u.BankAccountName != ""
}

// MissingBankFields lists the unpopulated payout destination fields.
func (u User) MissingBankFields() map[string]string {
	out := map[string]string{}
	if u.BankName == "" {
		out["bank_name"] = "required"
	}
	if u.BankAccountNumber == "" {
		out["bank_account_number"] = "required"
	}
	if u.BankAccountName == "" {
		out["bank_account_name"] = "required"
	}
	return out
}
