package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/config"
	"github.com/dajtvoxdev/tourimate-sub003/internal/http/handlers"
	"github.com/dajtvoxdev/tourimate-sub003/internal/http/middleware"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/bookings"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/catalog"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payments"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payouts"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/refunds"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/principal"
)

// Deps carries the wired services the router mounts. main assembles them.
type Deps struct {
	Bookings     *bookings.Service
	BookingsRepo *bookings.Repo
	Refunds      *refunds.Service
	Payouts      *payouts.Service
	Reconciler   *payments.Reconciler
	Catalog      *catalog.Repo
}

func NewRouter(logger *slog.Logger, cfg config.Config, db *gorm.DB, d Deps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ErrorHandler(logger))
	r.Use(middleware.Auth(cfg.JWTSecret))

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	webhookH := handlers.NewSepayWebhookHandler(logger, cfg.SepayAPIKey, d.Reconciler)
	bookingH := handlers.NewBookingHandler(logger, d.Bookings, d.BookingsRepo, d.Refunds, d.Catalog)
	payoutH := handlers.NewPayoutHandler(logger, d.Payouts)
	adminPayH := handlers.NewAdminPaymentsHandler(logger, d.Reconciler)

	api := r.Group("/api")

	// gateway-authenticated, no user session
	api.POST("/webhooks/sepay", webhookH.Handle)

	authed := api.Group("", middleware.RequireAuth())
	{
		authed.POST("/bookings", bookingH.Create)
		authed.GET("/bookings", bookingH.List)
		authed.GET("/bookings/:id", bookingH.Get)
		authed.PATCH("/bookings/:id", bookingH.Update)
		authed.POST("/bookings/:id/complete", bookingH.Complete)
		authed.GET("/bookings/:id/refund-quote", bookingH.RefundQuote)
		authed.POST("/bookings/:id/cancel", bookingH.Cancel)

		authed.POST("/payouts", payoutH.Create)
		authed.GET("/payouts/:id", payoutH.Get)
	}

	admin := api.Group("/admin", middleware.RequireRole(principal.RoleAdmin))
	{
		admin.POST("/payouts/:id/approve", payoutH.Approve)
		admin.POST("/payouts/:id/process", payoutH.Process)

		admin.GET("/payments/unmatched", adminPayH.ListUnmatched)
		admin.POST("/payments/:id/approve", adminPayH.Approve)
		admin.POST("/payments/:id/reject", adminPayH.Reject)
	}

	return r
}
