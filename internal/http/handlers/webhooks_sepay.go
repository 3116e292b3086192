package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payments"
)

type SepayWebhookHandler struct {
	Logger     *slog.Logger
	APIKey     string
	Reconciler *payments.Reconciler
}

func NewSepayWebhookHandler(logger *slog.Logger, apiKey string, rec *payments.Reconciler) *SepayWebhookHandler {
	return &SepayWebhookHandler{Logger: logger, APIKey: apiKey, Reconciler: rec}
}

// sepayPayload mirrors SePay's webhook body. transferAmount arrives as a JSON
// number; json.Number keeps it lossless for decimal parsing.
type sepayPayload struct {
	ID              int64       `json:"id"`
	Gateway         string      `json:"gateway"`
	TransactionDate string      `json:"transactionDate"`
	AccountNumber   string      `json:"accountNumber"`
	Content         string      `json:"content"`
	TransferType    string      `json:"transferType"`
	TransferAmount  json.Number `json:"transferAmount"`
	ReferenceCode   string      `json:"referenceCode"`
	Description     string      `json:"description"`
}

// POST /api/webhooks/sepay
// 201: applied (matched, duplicate, outgoing), 400: malformed or not matched
// (the row is still persisted for admin review), 500: retry.
func (h *SepayWebhookHandler) Handle(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid api key"})
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid body"})
		return
	}

	var p sepayPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == 0 || p.TransferType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid payload"})
		return
	}

	amount, err := decimal.NewFromString(p.TransferAmount.String())
	if err != nil || amount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid amount"})
		return
	}

	txDate, err := time.ParseInLocation("2006-01-02 15:04:05", p.TransactionDate, time.Local)
	if err != nil {
		txDate = time.Now()
	}

	res, err := h.Reconciler.Ingest(c.Request.Context(), payments.IngestInput{
		SepayTxnID:      p.ID,
		Gateway:         p.Gateway,
		TransactionDate: txDate,
		AccountNumber:   p.AccountNumber,
		ReferenceCode:   p.ReferenceCode,
		Content:         p.Content,
		TransferType:    p.TransferType,
		Amount:          amount,
		Raw:             raw,
	})
	if err != nil {
		// 500 tells the gateway to redeliver
		h.Logger.ErrorContext(c.Request.Context(), "sepay ingest failed",
			"sepay_txn_id", p.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}

	// non-2xx drives the gateway's redelivery; unmatched and mismatched
	// transfers are rejected here even though the notification row is kept
	status := http.StatusCreated
	success := true
	switch res.Outcome {
	case payments.OutcomeUnmatched, payments.OutcomeAmountMismatch:
		status = http.StatusBadRequest
		success = false
	}

	c.JSON(status, gin.H{
		"success": success,
		"outcome": string(res.Outcome),
	})
}

func (h *SepayWebhookHandler) authorized(c *gin.Context) bool {
	if h.APIKey == "" {
		return true
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Apikey ") {
		return false
	}
	return strings.TrimPrefix(header, "Apikey ") == h.APIKey
}
