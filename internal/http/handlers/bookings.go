package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dajtvoxdev/tourimate-sub003/internal/http/middleware"
	"github.com/dajtvoxdev/tourimate-sub003/internal/http/validation"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/bookings"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/catalog"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/refunds"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/apperr"
)

type BookingHandler struct {
	Logger  *slog.Logger
	Svc     *bookings.Service
	Repo    *bookings.Repo
	Refunds *refunds.Service
	Catalog *catalog.Repo
}

func NewBookingHandler(logger *slog.Logger, svc *bookings.Service, repo *bookings.Repo, ref *refunds.Service, cat *catalog.Repo) *BookingHandler {
	return &BookingHandler{Logger: logger, Svc: svc, Repo: repo, Refunds: ref, Catalog: cat}
}

type createBookingReq struct {
	TourID         string `json:"tour_id" binding:"required,uuid"`
	AvailabilityID string `json:"availability_id" binding:"required,uuid"`
	AdultCount     int    `json:"adult_count" binding:"required,gte=1"`
	ChildCount     int    `json:"child_count" binding:"gte=0"`
}

// POST /api/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Booking request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	b, err := h.Svc.Create(c.Request.Context(), bookings.CreateInput{
		Actor:          actor,
		TourID:         req.TourID,
		AvailabilityID: req.AvailabilityID,
		AdultCount:     req.AdultCount,
		ChildCount:     req.ChildCount,
	})
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	c.JSON(http.StatusCreated, bookingJSON(b))
}

// GET /api/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	b, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	if !actor.CanActFor(b.CustomerID) {
		vendorID, err := h.Catalog.TourVendorID(c.Request.Context(), b.TourID)
		if err != nil || vendorID != actor.UserID {
			middleware.Fail(c, toAppErr(bookings.ErrForbidden))
			return
		}
	}

	c.JSON(http.StatusOK, bookingJSON(b))
}

// GET /api/bookings
func (h *BookingHandler) List(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	var q struct {
		Page     int    `form:"page"`
		PageSize int    `form:"page_size"`
		Status   string `form:"status"`
	}
	_ = c.ShouldBindQuery(&q)

	res, err := h.Repo.ListByCustomer(c.Request.Context(), bookings.ListByCustomerParams{
		CustomerID: actor.UserID,
		Page:       q.Page,
		PageSize:   q.PageSize,
		Status:     q.Status,
	})
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	items := make([]gin.H, 0, len(res.Items))
	for _, b := range res.Items {
		items = append(items, bookingJSON(b))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": res.Total})
}

type updateBookingReq struct {
	AvailabilityID string `json:"availability_id" binding:"omitempty,uuid"`
	AdultCount     int    `json:"adult_count" binding:"required,gte=1"`
	ChildCount     int    `json:"child_count" binding:"gte=0"`
}

// PATCH /api/bookings/:id
func (h *BookingHandler) Update(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	var req updateBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Booking update is invalid.", validation.FromBindError(err, &req)))
		return
	}

	b, err := h.Svc.Update(c.Request.Context(), bookings.UpdateInput{
		Actor:          actor,
		BookingID:      c.Param("id"),
		AvailabilityID: req.AvailabilityID,
		AdultCount:     req.AdultCount,
		ChildCount:     req.ChildCount,
	})
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	c.JSON(http.StatusOK, bookingJSON(b))
}

// POST /api/bookings/:id/complete
func (h *BookingHandler) Complete(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	b, err := h.Svc.Complete(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	c.JSON(http.StatusOK, bookingJSON(b))
}

// GET /api/bookings/:id/refund-quote
func (h *BookingHandler) RefundQuote(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	q, err := h.Refunds.Quote(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id":        q.BookingID,
		"original_amount":   q.OriginalAmount.String(),
		"days_before_tour":  q.DaysBeforeTour,
		"refund_percentage": q.RefundPercentage.String(),
		"refund_amount":     q.RefundAmount.String(),
		"currency":          q.Currency,
	})
}

type cancelBookingReq struct {
	Reason            string `json:"reason" binding:"max=255"`
	BankName          string `json:"bank_name" binding:"max=128"`
	BankAccountNumber string `json:"bank_account_number" binding:"max=64"`
	BankAccountName   string `json:"bank_account_name" binding:"max=255"`
}

// POST /api/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	actor, _ := middleware.CurrentPrincipal(c)

	var req cancelBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Cancellation request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	r, err := h.Refunds.Cancel(c.Request.Context(), refunds.CancelInput{
		Actor:     actor,
		BookingID: c.Param("id"),
		Reason:    req.Reason,
		Bank: refunds.BankDetails{
			BankName:          req.BankName,
			BankAccountNumber: req.BankAccountNumber,
			BankAccountName:   req.BankAccountName,
		},
	})
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	resp := gin.H{"booking_id": c.Param("id"), "status": string(bookings.StatusCancelled)}
	if r != nil {
		resp["refund"] = refundJSON(*r)
	}
	c.JSON(http.StatusOK, resp)
}

func bookingJSON(b bookings.Booking) gin.H {
	return gin.H{
		"id":              b.ID,
		"number":          b.Number,
		"tour_id":         b.TourID,
		"availability_id": b.AvailabilityID,
		"customer_id":     b.CustomerID,
		"adult_count":     b.AdultCount,
		"child_count":     b.ChildCount,
		"total_amount":    b.TotalAmount.String(),
		"currency":        b.Currency,
		"status":          string(b.Status),
		"payment_status":  string(b.PaymentStatus),
		"confirmed_at":    timePtr(b.ConfirmedAt),
		"completed_at":    timePtr(b.CompletedAt),
		"cancelled_at":    timePtr(b.CancelledAt),
		"created_at":      b.CreatedAt,
	}
}

func refundJSON(r refunds.Refund) gin.H {
	return gin.H{
		"id":                r.ID,
		"booking_id":        r.BookingID,
		"original_amount":   r.OriginalAmount.String(),
		"refund_amount":     r.RefundAmount.String(),
		"refund_percentage": r.RefundPercentage.String(),
		"days_before_tour":  r.DaysBeforeTour,
		"currency":          r.Currency,
		"status":            string(r.Status),
		"created_at":        r.CreatedAt,
	}
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
