package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dajtvoxdev/tourimate-sub003/internal/http/middleware"
	"github.com/dajtvoxdev/tourimate-sub003/internal/http/validation"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/ledger"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payouts"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/apperr"
)

type PayoutHandler struct {
	Logger *slog.Logger
	Svc    *payouts.Service
}

func NewPayoutHandler(logger *slog.Logger, svc *payouts.Service) *PayoutHandler {
	return &PayoutHandler{Logger: logger, Svc: svc}
}

type createPayoutReq struct {
	EntityType string `json:"entity_type" binding:"required,oneof=booking order"`
	EntityID   string `json:"entity_id" binding:"required,uuid"`
}

// POST /api/payouts
func (h *PayoutHandler) Create(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	var req createPayoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Payout request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	cost, err := h.Svc.RequestVendorPayment(c.Request.Context(), actor, ledger.EntityRef{
		Type: ledger.EntityType(req.EntityType),
		ID:   req.EntityID,
	})
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	c.JSON(http.StatusCreated, costJSON(cost))
}

// GET /api/payouts/:id
func (h *PayoutHandler) Get(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	cost, err := h.Svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}
	c.JSON(http.StatusOK, costJSON(cost))
}

// POST /api/admin/payouts/:id/approve
func (h *PayoutHandler) Approve(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	cost, err := h.Svc.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}
	c.JSON(http.StatusOK, costJSON(cost))
}

// POST /api/admin/payouts/:id/process
func (h *PayoutHandler) Process(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	cost, err := h.Svc.ProcessPayment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}
	c.JSON(http.StatusOK, costJSON(cost))
}

func costJSON(c ledger.Cost) gin.H {
	return gin.H{
		"id":           c.ID,
		"payer_id":     c.PayerID,
		"recipient_id": c.RecipientID,
		"entity_type":  string(c.EntityType),
		"entity_id":    c.EntityID,
		"type":         string(c.Type),
		"amount":       c.Amount.String(),
		"currency":     c.Currency,
		"status":       string(c.Status),
		"paid_at":      timePtr(c.PaidAt),
		"created_at":   c.CreatedAt,
	}
}
