package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
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
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payments"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/refcode"
)

func newWebhookRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&catalog.Tour{}, &catalog.User{},
		&bookings.Booking{}, &orders.Order{},
		&payments.Notification{},
		&ledger.Transaction{}, &ledger.Revenue{},
	))

	rec := payments.NewReconciler(db, decimal.NewFromInt(10))
	h := NewSepayWebhookHandler(slog.Default(), "secret", rec)

	r := gin.New()
	r.POST("/api/webhooks/sepay", h.Handle)
	return r, db
}

func postWebhook(r *gin.Engine, apiKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/sepay", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Apikey "+apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSepayWebhookRejectsBadKey(t *testing.T) {
	r, _ := newWebhookRouter(t)

	w := postWebhook(r, "", `{"id":1,"transferType":"in","transferAmount":1000}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(r, "wrong", `{"id":1,"transferType":"in","transferAmount":1000}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSepayWebhookRejectsMalformedPayload(t *testing.T) {
	r, _ := newWebhookRouter(t)

	for _, body := range []string{
		`not json`,
		`{"transferType":"in","transferAmount":1000}`,         // missing id
		`{"id":1,"transferAmount":1000}`,                      // missing transfer type
		`{"id":1,"transferType":"in","transferAmount":-5}`,    // negative amount
		`{"id":1,"transferType":"in","transferAmount":"abc"}`, // non-numeric amount
	} {
		w := postWebhook(r, "secret", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

func TestSepayWebhookMatchedTransfer(t *testing.T) {
	r, db := newWebhookRouter(t)

	tour := catalog.Tour{ID: uuid.NewString(), VendorID: uuid.NewString(), Title: "t", IsActive: true}
	require.NoError(t, db.Create(&tour).Error)

	now := time.Now()
	b := bookings.Booking{
		ID:             uuid.NewString(),
		Number:         refcode.NewBookingNumber(now),
		TourID:         tour.ID,
		AvailabilityID: uuid.NewString(),
		CustomerID:     uuid.NewString(),
		AdultCount:     1,
		TotalAmount:    decimal.NewFromInt(1500000),
		Currency:       "VND",
		Status:         bookings.StatusPendingPayment,
		PaymentStatus:  bookings.PaymentUnpaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, db.Create(&b).Error)

	body := `{
		"id": 9000,
		"gateway": "MBBank",
		"transactionDate": "2026-08-30 10:15:00",
		"transferType": "in",
		"transferAmount": 1500000,
		"content": "thanh toan ` + b.Number + `"
	}`
	w := postWebhook(r, "secret", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"matched"`)
}

func TestSepayWebhookUnmatchedReturns400(t *testing.T) {
	r, db := newWebhookRouter(t)

	body := `{
		"id": 9001,
		"gateway": "MBBank",
		"transactionDate": "2026-08-30 10:15:00",
		"accountNumber": "0123456789",
		"content": "chuyen tien",
		"transferType": "in",
		"transferAmount": 1500000,
		"referenceCode": "FT26083012345"
	}`
	w := postWebhook(r, "secret", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"unmatched"`)

	// rejected, but still persisted for admin review
	var cnt int64
	require.NoError(t, db.Model(&payments.Notification{}).
		Where("sepay_txn_id = ?", int64(9001)).Count(&cnt).Error)
	assert.EqualValues(t, 1, cnt)

	// the 400 triggers a redelivery; the duplicate is acknowledged with 201
	// so the gateway stops retrying
	w = postWebhook(r, "secret", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"duplicate_ignored"`)
}

func TestSepayWebhookAmountMismatchReturns400(t *testing.T) {
	r, db := newWebhookRouter(t)

	tour := catalog.Tour{ID: uuid.NewString(), VendorID: uuid.NewString(), Title: "t", IsActive: true}
	require.NoError(t, db.Create(&tour).Error)

	now := time.Now()
	b := bookings.Booking{
		ID:             uuid.NewString(),
		Number:         refcode.NewBookingNumber(now),
		TourID:         tour.ID,
		AvailabilityID: uuid.NewString(),
		CustomerID:     uuid.NewString(),
		AdultCount:     1,
		TotalAmount:    decimal.NewFromInt(1500000),
		Currency:       "VND",
		Status:         bookings.StatusPendingPayment,
		PaymentStatus:  bookings.PaymentUnpaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, db.Create(&b).Error)

	body := `{
		"id": 9002,
		"gateway": "MBBank",
		"transactionDate": "2026-08-30 10:15:00",
		"transferType": "in",
		"transferAmount": 100000,
		"content": "thanh toan ` + b.Number + `"
	}`
	w := postWebhook(r, "secret", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"amount_mismatch"`)

	var stored bookings.Booking
	require.NoError(t, db.First(&stored, "id = ?", b.ID).Error)
	assert.Equal(t, bookings.StatusPendingPayment, stored.Status)
}
