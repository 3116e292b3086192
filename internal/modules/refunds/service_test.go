package refunds

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/availability"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/bookings"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/ledger"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/principal"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/refcode"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&availability.TourAvailability{}, &bookings.Booking{},
		&Refund{}, &ledger.Cost{},
	))
	return db
}

var testBank = BankDetails{
	BankName:          "Vietcombank",
	BankAccountNumber: "0123456789",
	BankAccountName:   "NGUYEN VAN A",
}

func newService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	policy, err := ParsePolicy("30:100,14:70,7:50,3:30", 3)
	require.NoError(t, err)
	return NewService(db, policy)
}

// seedBooking inserts a booking plus its slot, with the headcount already
// counted on the slot.
func seedBooking(t *testing.T, db *gorm.DB, status bookings.Status, payment bookings.PaymentStatus, daysAhead int) bookings.Booking {
	t.Helper()

	now := time.Now()
	slot := availability.TourAvailability{
		ID:                 uuid.NewString(),
		TourID:             uuid.NewString(),
		Date:               now.AddDate(0, 0, daysAhead),
		MaxParticipants:    10,
		BookedParticipants: 2,
		AdultPrice:         decimal.NewFromInt(500000),
		ChildPrice:         decimal.NewFromInt(250000),
		Surcharge:          decimal.Zero,
		Currency:           "VND",
		IsAvailable:        true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, db.Create(&slot).Error)

	b := bookings.Booking{
		ID:             uuid.NewString(),
		Number:         refcode.NewBookingNumber(now),
		TourID:         slot.TourID,
		AvailabilityID: slot.ID,
		CustomerID:     uuid.NewString(),
		AdultCount:     2,
		TotalAmount:    decimal.NewFromInt(1000000),
		Currency:       "VND",
		Status:         status,
		PaymentStatus:  payment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, db.Create(&b).Error)
	return b
}

func actorFor(b bookings.Booking) principal.Principal {
	return principal.Principal{UserID: b.CustomerID, Role: principal.RoleCustomer}
}

func TestCancelConfirmedCreatesRefundAndCost(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()

	b := seedBooking(t, db, bookings.StatusConfirmed, bookings.PaymentPaid, 40)

	r, err := svc.Cancel(ctx, CancelInput{
		Actor:     actorFor(b),
		BookingID: b.ID,
		Reason:    "schedule conflict",
		Bank:      testBank,
	})
	require.NoError(t, err)
	require.NotNil(t, r)

	// 40 days out -> 100%
	assert.True(t, r.RefundPercentage.Equal(decimal.NewFromInt(100)))
	assert.True(t, r.RefundAmount.Equal(decimal.NewFromInt(1000000)), "got %s", r.RefundAmount)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, 40, r.DaysBeforeTour)

	var stored bookings.Booking
	require.NoError(t, db.First(&stored, "id = ?", b.ID).Error)
	assert.Equal(t, bookings.StatusCancelled, stored.Status)
	assert.Equal(t, bookings.PaymentPaid, stored.PaymentStatus)
	require.NotNil(t, stored.CancelledAt)

	slot, err := availability.Get(ctx, db, b.AvailabilityID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.BookedParticipants)

	var cost ledger.Cost
	require.NoError(t, db.First(&cost, "entity_id = ? AND type = ?", b.ID, ledger.CostRefund).Error)
	assert.Equal(t, PlatformAccountID, cost.PayerID)
	assert.Equal(t, b.CustomerID, cost.RecipientID)
	assert.Equal(t, ledger.CostPending, cost.Status)
	assert.True(t, cost.Amount.Equal(r.RefundAmount))
}

func TestCancelPartialBand(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	b := seedBooking(t, db, bookings.StatusConfirmed, bookings.PaymentPaid, 10)

	r, err := svc.Cancel(context.Background(), CancelInput{
		Actor:     actorFor(b),
		BookingID: b.ID,
		Bank:      testBank,
	})
	require.NoError(t, err)
	require.NotNil(t, r)

	// 10 days out -> 50%
	assert.True(t, r.RefundPercentage.Equal(decimal.NewFromInt(50)))
	assert.True(t, r.RefundAmount.Equal(decimal.NewFromInt(500000)), "got %s", r.RefundAmount)
}

func TestCancelPendingPaymentSkipsRefund(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()

	b := seedBooking(t, db, bookings.StatusPendingPayment, bookings.PaymentUnpaid, 40)

	r, err := svc.Cancel(ctx, CancelInput{
		Actor:     actorFor(b),
		BookingID: b.ID,
		Reason:    "never paid",
	})
	require.NoError(t, err)
	assert.Nil(t, r)

	var stored bookings.Booking
	require.NoError(t, db.First(&stored, "id = ?", b.ID).Error)
	assert.Equal(t, bookings.StatusCancelled, stored.Status)
	assert.Equal(t, bookings.PaymentUnpaid, stored.PaymentStatus)

	slot, _ := availability.Get(ctx, db, b.AvailabilityID)
	assert.Equal(t, 0, slot.BookedParticipants)

	var refundCount, costCount int64
	db.Model(&Refund{}).Count(&refundCount)
	db.Model(&ledger.Cost{}).Count(&costCount)
	assert.Zero(t, refundCount)
	assert.Zero(t, costCount)
}

func TestDoubleCancelConflicts(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()

	b := seedBooking(t, db, bookings.StatusConfirmed, bookings.PaymentPaid, 40)
	in := CancelInput{Actor: actorFor(b), BookingID: b.ID, Bank: testBank}

	_, err := svc.Cancel(ctx, in)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, in)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	// the slot was released exactly once
	slot, _ := availability.Get(ctx, db, b.AvailabilityID)
	assert.Equal(t, 0, slot.BookedParticipants)

	var refundCount int64
	db.Model(&Refund{}).Count(&refundCount)
	assert.EqualValues(t, 1, refundCount)
}

func TestCancelCompletedRejected(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	b := seedBooking(t, db, bookings.StatusCompleted, bookings.PaymentPaid, -5)
	_, err := svc.Cancel(context.Background(), CancelInput{
		Actor: actorFor(b), BookingID: b.ID, Bank: testBank,
	})
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancelTooCloseToTour(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	b := seedBooking(t, db, bookings.StatusConfirmed, bookings.PaymentPaid, 2)
	_, err := svc.Cancel(context.Background(), CancelInput{
		Actor: actorFor(b), BookingID: b.ID, Bank: testBank,
	})
	assert.ErrorIs(t, err, ErrTooCloseToTour)

	// nothing changed
	var stored bookings.Booking
	require.NoError(t, db.First(&stored, "id = ?", b.ID).Error)
	assert.Equal(t, bookings.StatusConfirmed, stored.Status)
}

func TestCancelRequiresBankDetails(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	b := seedBooking(t, db, bookings.StatusConfirmed, bookings.PaymentPaid, 40)
	_, err := svc.Cancel(context.Background(), CancelInput{
		Actor:     actorFor(b),
		BookingID: b.ID,
		Bank:      BankDetails{BankName: "Vietcombank"},
	})
	assert.ErrorIs(t, err, ErrBankDetailsMissing)
}

func TestCancelForbiddenForStranger(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	b := seedBooking(t, db, bookings.StatusConfirmed, bookings.PaymentPaid, 40)
	stranger := principal.Principal{UserID: uuid.NewString(), Role: principal.RoleCustomer}

	_, err := svc.Cancel(context.Background(), CancelInput{
		Actor: stranger, BookingID: b.ID, Bank: testBank,
	})
	assert.ErrorIs(t, err, bookings.ErrForbidden)
}

func TestQuoteDoesNotMutate(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()

	b := seedBooking(t, db, bookings.StatusConfirmed, bookings.PaymentPaid, 20)

	q, err := svc.Quote(ctx, b.ID, actorFor(b))
	require.NoError(t, err)
	// 20 days out -> 70%
	assert.True(t, q.RefundPercentage.Equal(decimal.NewFromInt(70)))
	assert.True(t, q.RefundAmount.Equal(decimal.NewFromInt(700000)), "got %s", q.RefundAmount)

	var stored bookings.Booking
	require.NoError(t, db.First(&stored, "id = ?", b.ID).Error)
	assert.Equal(t, bookings.StatusConfirmed, stored.Status)

	var refundCount int64
	db.Model(&Refund{}).Count(&refundCount)
	assert.Zero(t, refundCount)
}

func TestQuoteAdminCanActForCustomer(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	b := seedBooking(t, db, bookings.StatusConfirmed, bookings.PaymentPaid, 20)
	admin := principal.Principal{UserID: uuid.NewString(), Role: principal.RoleAdmin}

	_, err := svc.Quote(context.Background(), b.ID, admin)
	assert.NoError(t, err)
}
