package ledger

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
)

// bookingRow is a minimal stand-in for the bookings table; ResolveRef only
// touches the id column.
type bookingRow struct {
	ID string `gorm:"type:char(36);primaryKey"`
}

func (bookingRow) TableName() string { return "bookings" }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&bookingRow{}, &Transaction{}, &Revenue{}, &Cost{}))
	return db
}

func seedBookingRow(t *testing.T, db *gorm.DB) EntityRef {
	t.Helper()
	row := bookingRow{ID: uuid.NewString()}
	require.NoError(t, db.Create(&row).Error)
	return EntityRef{Type: EntityBooking, ID: row.ID}
}

func TestBuildRevenueSplitInvariant(t *testing.T) {
	cases := []struct {
		gross string
		rate  string
	}{
		{"1000000.00", "10"},
		{"1000000.55", "10"},
		{"999999.99", "12.5"},
		{"1.01", "33.33"},
		{"500000.00", "0"},
	}

	for _, tc := range cases {
		r := BuildRevenue(NewRevenueInput{
			VendorID:       "v1",
			Ref:            EntityRef{Type: EntityBooking, ID: "b1"},
			GrossAmount:    decimal.RequireFromString(tc.gross),
			CommissionRate: decimal.RequireFromString(tc.rate),
			Currency:       "VND",
			Status:         PayoutPending,
		})
		assert.True(t, r.SplitConsistent(),
			"gross %s rate %s: %s != %s + %s", tc.gross, tc.rate,
			r.GrossAmount, r.CommissionAmount, r.NetAmount)
	}
}

func TestBuildRevenueCommissionRounding(t *testing.T) {
	r := BuildRevenue(NewRevenueInput{
		GrossAmount:    decimal.RequireFromString("1000000.55"),
		CommissionRate: decimal.NewFromInt(10),
	})
	// 100000.055 rounds to 100000.06; net absorbs the difference
	assert.Equal(t, "100000.06", r.CommissionAmount.String())
	assert.Equal(t, "900000.49", r.NetAmount.String())
}

func TestEnsureTransactionIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ref := seedBookingRow(t, db)

	txnID := int64(424242)
	in := NewTransactionInput{
		UserID:       "u1",
		Ref:          ref,
		Direction:    DirectionIn,
		Amount:       decimal.NewFromInt(1500000),
		Currency:     "VND",
		Status:       TxnCompleted,
		Gateway:      "MBBank",
		GatewayTxnID: &txnID,
		Description:  "bank transfer",
	}

	var first, second Transaction
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = EnsureTransactionInTx(ctx, tx, in)
		return err
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = EnsureTransactionInTx(ctx, tx, in)
		return err
	}))

	assert.Equal(t, first.ID, second.ID)

	var cnt int64
	require.NoError(t, db.Model(&Transaction{}).Count(&cnt).Error)
	assert.EqualValues(t, 1, cnt)
}

func TestCreateTransactionRejectsDanglingRef(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := CreateTransactionInTx(ctx, tx, NewTransactionInput{
			UserID:    "u1",
			Ref:       EntityRef{Type: EntityBooking, ID: uuid.NewString()},
			Direction: DirectionIn,
			Amount:    decimal.NewFromInt(100),
			Currency:  "VND",
			Status:    TxnCompleted,
		})
		return err
	})
	assert.ErrorIs(t, err, ErrUnknownEntity)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := CreateTransactionInTx(ctx, tx, NewTransactionInput{
			Ref: EntityRef{Type: "warehouse", ID: "x"},
		})
		return err
	})
	assert.Error(t, err)
}

func TestCostTransitionLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ref := seedBookingRow(t, db)

	now := time.Now()
	c := Cost{
		ID:          uuid.NewString(),
		PayerID:     "platform",
		RecipientID: "v1",
		EntityID:    ref.ID,
		EntityType:  ref.Type,
		Type:        CostVendorPayment,
		Amount:      decimal.NewFromInt(900000),
		Currency:    "VND",
		Status:      CostPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, db.Create(&c).Error)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return TransitionCostInTx(ctx, tx, &c, CostApproved)
	}))
	assert.Equal(t, CostApproved, c.Status)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return TransitionCostInTx(ctx, tx, &c, CostPaid)
	}))
	assert.Equal(t, CostPaid, c.Status)
	require.NotNil(t, c.PaidAt)

	// paid is terminal
	err := db.Transaction(func(tx *gorm.DB) error {
		return TransitionCostInTx(ctx, tx, &c, CostCancelled)
	})
	assert.Error(t, err)
}

func TestCostTransitionStatusGuard(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ref := seedBookingRow(t, db)

	now := time.Now()
	c := Cost{
		ID:          uuid.NewString(),
		PayerID:     "platform",
		RecipientID: "v1",
		EntityID:    ref.ID,
		EntityType:  ref.Type,
		Type:        CostRefund,
		Amount:      decimal.NewFromInt(100),
		Currency:    "VND",
		Status:      CostPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, db.Create(&c).Error)

	// simulate a concurrent transition: the row moved on under our feet
	require.NoError(t, db.Model(&Cost{}).Where("id = ?", c.ID).
		Update("status", CostCancelled).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		return TransitionCostInTx(ctx, tx, &c, CostApproved)
	})
	assert.Error(t, err)
}

func TestPendingRevenueForEntity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ref := seedBookingRow(t, db)

	var created Revenue
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = CreateRevenueInTx(ctx, tx, NewRevenueInput{
			VendorID:       "v1",
			Ref:            ref,
			GrossAmount:    decimal.NewFromInt(1000000),
			CommissionRate: decimal.NewFromInt(10),
			Currency:       "VND",
			Status:         PayoutPending,
		})
		return err
	}))

	got, err := PendingRevenueForEntity(ctx, db, ref)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "900000", got.NetAmount.String())

	_, err = PendingRevenueForEntity(ctx, db, EntityRef{Type: EntityBooking, ID: uuid.NewString()})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
