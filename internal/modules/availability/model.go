package availability

import (
	"time"

	"github.com/shopspring/decimal"
)

// TourAvailability is one bookable date instance of a tour with its own
// capacity and pricing. Rows are created by the vendor tour-management flow;
// booked_participants is mutated only through the guard, never by clients.
type TourAvailability struct {
	ID     string    `gorm:"type:char(36);primaryKey"`
	TourID string    `gorm:"type:char(36);not null;index:ix_tour_availabilities_tour_id"`
	Date   time.Time `gorm:"type:date;not null"`

	MaxParticipants    int `gorm:"not null"`
	BookedParticipants int `gorm:"not null;default:0"`

	AdultPrice decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	ChildPrice decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Surcharge  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	Currency   string          `gorm:"type:char(3);not null;default:'VND'"`

	IsAvailable bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (TourAvailability) TableName() string { return "tour_availabilities" }

// Remaining is the headcount still free on this slot.
func (a TourAvailability) Remaining() int {
	return a.MaxParticipants - a.BookedParticipants
}

// TotalFor prices a party against this slot: adults and children at their
// per-head rates plus the per-booking surcharge.
func (a TourAvailability) TotalFor(adults, children int) decimal.Decimal {
	total := a.AdultPrice.Mul(decimal.NewFromInt(int64(adults)))
	total = total.Add(a.ChildPrice.Mul(decimal.NewFromInt(int64(children))))
	return total.Add(a.Surcharge)
}
