package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dajtvoxdev/tourimate-sub003/internal/http/middleware"
	"github.com/dajtvoxdev/tourimate-sub003/internal/http/validation"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payments"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/apperr"
)

// AdminPaymentsHandler is the manual reconciliation surface: list the
// notifications automatic matching could not place, replay them with an
// operator-resolved reference, or close them as failed.
type AdminPaymentsHandler struct {
	Logger     *slog.Logger
	Reconciler *payments.Reconciler
}

func NewAdminPaymentsHandler(logger *slog.Logger, rec *payments.Reconciler) *AdminPaymentsHandler {
	return &AdminPaymentsHandler{Logger: logger, Reconciler: rec}
}

// GET /api/admin/payments/unmatched
func (h *AdminPaymentsHandler) ListUnmatched(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.Reconciler.ListUnmatched(c.Request.Context(), limit)
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	out := make([]gin.H, 0, len(items))
	for _, n := range items {
		out = append(out, notificationJSON(n))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

type approvePaymentReq struct {
	ReferenceCode string `json:"reference_code" binding:"omitempty,max=32"`
}

// POST /api/admin/payments/:id/approve
func (h *AdminPaymentsHandler) Approve(c *gin.Context) {
	var req approvePaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Approval request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	res, err := h.Reconciler.Approve(c.Request.Context(), c.Param("id"), req.ReferenceCode)
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notification_id": res.NotificationID,
		"outcome":         string(res.Outcome),
	})
}

type rejectPaymentReq struct {
	Note string `json:"note" binding:"required,max=250"`
}

// POST /api/admin/payments/:id/reject
func (h *AdminPaymentsHandler) Reject(c *gin.Context) {
	var req rejectPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Rejection request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	if err := h.Reconciler.Reject(c.Request.Context(), c.Param("id"), req.Note); err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"notification_id": c.Param("id"), "status": "failed"})
}

func notificationJSON(n payments.Notification) gin.H {
	out := gin.H{
		"id":               n.ID,
		"sepay_txn_id":     n.SepayTxnID,
		"gateway":          n.Gateway,
		"transaction_date": n.TransactionDate,
		"account_number":   n.AccountNumber,
		"reference_code":   n.ReferenceCode,
		"content":          n.Content,
		"transfer_type":    n.TransferType,
		"amount":           n.Amount.String(),
		"currency":         n.Currency,
		"status":           string(n.Status),
		"received_at":      n.ReceivedAt,
	}
	if n.ProcessNote != nil {
		out["process_note"] = *n.ProcessNote
	}
	return out
}
