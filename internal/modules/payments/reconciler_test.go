package payments

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

	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/bookings"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/catalog"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/ledger"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/orders"
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
		&catalog.Tour{}, &catalog.User{},
		&bookings.Booking{}, &orders.Order{},
		&Notification{},
		&ledger.Transaction{}, &ledger.Revenue{},
	))
	return db
}

type fixture struct {
	db      *gorm.DB
	rec     *Reconciler
	tour    catalog.Tour
	booking bookings.Booking
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)

	tour := catalog.Tour{
		ID:       uuid.NewString(),
		VendorID: uuid.NewString(),
		Title:    "Mekong delta tour",
		IsActive: true,
	}
	require.NoError(t, db.Create(&tour).Error)

	now := time.Now()
	b := bookings.Booking{
		ID:             uuid.NewString(),
		Number:         refcode.NewBookingNumber(now),
		TourID:         tour.ID,
		AvailabilityID: uuid.NewString(),
		CustomerID:     uuid.NewString(),
		AdultCount:     2,
		TotalAmount:    decimal.NewFromInt(1500000),
		Currency:       "VND",
		Status:         bookings.StatusPendingPayment,
		PaymentStatus:  bookings.PaymentUnpaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, db.Create(&b).Error)

	return &fixture{
		db:      db,
		rec:     NewReconciler(db, decimal.NewFromInt(10)),
		tour:    tour,
		booking: b,
	}
}

func (f *fixture) ingestInput(txnID int64, content string, amount int64) IngestInput {
	return IngestInput{
		SepayTxnID:      txnID,
		Gateway:         "MBBank",
		TransactionDate: time.Now(),
		AccountNumber:   "0123456789",
		Content:         content,
		TransferType:    "in",
		Amount:          decimal.NewFromInt(amount),
		Currency:        "VND",
		Raw:             []byte(`{"id":` + "1" + `}`),
	}
}

func TestIngestMatchesBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.rec.Ingest(ctx, f.ingestInput(1001, "thanh toan "+f.booking.Number, 1500000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, res.Outcome)
	require.NotNil(t, res.Booking)

	var b bookings.Booking
	require.NoError(t, f.db.First(&b, "id = ?", f.booking.ID).Error)
	assert.Equal(t, bookings.StatusConfirmed, b.Status)
	assert.Equal(t, bookings.PaymentPaid, b.PaymentStatus)
	require.NotNil(t, b.ConfirmedAt)

	var txn ledger.Transaction
	require.NoError(t, f.db.First(&txn, "entity_id = ?", f.booking.ID).Error)
	assert.Equal(t, ledger.DirectionIn, txn.Direction)
	assert.Equal(t, ledger.TxnCompleted, txn.Status)
	require.NotNil(t, txn.GatewayTxnID)
	assert.EqualValues(t, 1001, *txn.GatewayTxnID)

	var rev ledger.Revenue
	require.NoError(t, f.db.First(&rev, "entity_id = ?", f.booking.ID).Error)
	assert.Equal(t, f.tour.VendorID, rev.VendorID)
	assert.Equal(t, ledger.PayoutPending, rev.Status)
	assert.True(t, rev.SplitConsistent())
	assert.True(t, rev.NetAmount.Equal(decimal.NewFromInt(1350000)), "got %s", rev.NetAmount)

	var n Notification
	require.NoError(t, f.db.First(&n, "sepay_txn_id = ?", int64(1001)).Error)
	assert.Equal(t, StatusProcessed, n.Status)
	require.NotNil(t, n.MatchedEntityType)
	assert.Equal(t, "booking", *n.MatchedEntityType)
	require.NotNil(t, n.MatchedEntityID)
	assert.Equal(t, f.booking.ID, *n.MatchedEntityID)
}

func TestIngestDuplicateIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.ingestInput(2002, "thanh toan "+f.booking.Number, 1500000)

	first, err := f.rec.Ingest(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, first.Outcome)

	second, err := f.rec.Ingest(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)

	var txnCount, revCount, notifCount int64
	f.db.Model(&ledger.Transaction{}).Count(&txnCount)
	f.db.Model(&ledger.Revenue{}).Count(&revCount)
	f.db.Model(&Notification{}).Count(&notifCount)
	assert.EqualValues(t, 1, txnCount)
	assert.EqualValues(t, 1, revCount)
	assert.EqualValues(t, 1, notifCount)
}

func TestIngestAmountMismatchStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.rec.Ingest(ctx, f.ingestInput(3003, "thanh toan "+f.booking.Number, 100000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAmountMismatch, res.Outcome)

	// the underpaid booking is untouched
	var b bookings.Booking
	require.NoError(t, f.db.First(&b, "id = ?", f.booking.ID).Error)
	assert.Equal(t, bookings.StatusPendingPayment, b.Status)

	var n Notification
	require.NoError(t, f.db.First(&n, "sepay_txn_id = ?", int64(3003)).Error)
	assert.Equal(t, StatusPending, n.Status)
	require.NotNil(t, n.ProcessNote)
	assert.Contains(t, *n.ProcessNote, "amount mismatch")
}

func TestIngestWithoutReferenceStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.rec.Ingest(ctx, f.ingestInput(4004, "chuyen tien", 1500000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, res.Outcome)

	unmatched, err := f.rec.ListUnmatched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)
	assert.EqualValues(t, 4004, unmatched[0].SepayTxnID)
}

func TestIngestOutgoingTransferIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.ingestInput(5005, "hoan tien "+f.booking.Number, 500000)
	in.TransferType = "out"

	res, err := f.rec.Ingest(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	// persisted and closed, never matched
	var n Notification
	require.NoError(t, f.db.First(&n, "sepay_txn_id = ?", int64(5005)).Error)
	assert.Equal(t, StatusProcessed, n.Status)
	assert.Nil(t, n.MatchedEntityID)

	var b bookings.Booking
	require.NoError(t, f.db.First(&b, "id = ?", f.booking.ID).Error)
	assert.Equal(t, bookings.StatusPendingPayment, b.Status)
}

func TestApproveReplaysWithOverrideReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.rec.Ingest(ctx, f.ingestInput(6006, "noi dung khong ro", 1500000))
	require.NoError(t, err)
	require.Equal(t, OutcomeUnmatched, res.Outcome)

	replay, err := f.rec.Approve(ctx, res.NotificationID, f.booking.Number)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, replay.Outcome)

	var b bookings.Booking
	require.NoError(t, f.db.First(&b, "id = ?", f.booking.ID).Error)
	assert.Equal(t, bookings.StatusConfirmed, b.Status)

	// a second approve is a no-op
	again, err := f.rec.Approve(ctx, res.NotificationID, f.booking.Number)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, again.Outcome)
}

func TestRejectClosesNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.rec.Ingest(ctx, f.ingestInput(7007, "noi dung khong ro", 1500000))
	require.NoError(t, err)
	require.Equal(t, OutcomeUnmatched, res.Outcome)

	require.NoError(t, f.rec.Reject(ctx, res.NotificationID, "could not identify sender"))

	var n Notification
	require.NoError(t, f.db.First(&n, "id = ?", res.NotificationID).Error)
	assert.Equal(t, StatusFailed, n.Status)
	require.NotNil(t, n.ProcessNote)
	assert.Equal(t, "could not identify sender", *n.ProcessNote)

	// rejected rows cannot be rejected twice
	assert.Error(t, f.rec.Reject(ctx, res.NotificationID, "again"))
}

func TestIngestMatchesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now()
	o := orders.Order{
		ID:            uuid.NewString(),
		Number:        refcode.NewOrderNumber(now),
		VendorID:      uuid.NewString(),
		CustomerID:    uuid.NewString(),
		TotalAmount:   decimal.NewFromInt(350000),
		Currency:      "VND",
		Status:        orders.StatusPending,
		PaymentStatus: orders.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.db.Create(&o).Error)

	res, err := f.rec.Ingest(ctx, f.ingestInput(8008, "thanh toan "+o.Number, 350000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, res.Outcome)
	require.NotNil(t, res.Order)

	var stored orders.Order
	require.NoError(t, f.db.First(&stored, "id = ?", o.ID).Error)
	assert.Equal(t, orders.StatusProcessing, stored.Status)
	assert.Equal(t, orders.PaymentPaid, stored.PaymentStatus)
	require.NotNil(t, stored.PaidAt)

	// orders settle without a commission split at payment time
	var revCount int64
	f.db.Model(&ledger.Revenue{}).Count(&revCount)
	assert.Zero(t, revCount)
}
