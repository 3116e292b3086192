package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"log/slog"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/config"
	apphttp "github.com/dajtvoxdev/tourimate-sub003/internal/http"
	"github.com/dajtvoxdev/tourimate-sub003/internal/mailer"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/bookings"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/catalog"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/email"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payments"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payouts"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/refunds"
	"github.com/dajtvoxdev/tourimate-sub003/internal/storage"
)

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	minLeadDays := 3
	if cfg.RefundMinLeadDays != "" {
		v, err := strconv.Atoi(cfg.RefundMinLeadDays)
		if err != nil {
			log.Fatalf("invalid REFUND_MIN_LEAD_DAYS %q: %v", cfg.RefundMinLeadDays, err)
		}
		minLeadDays = v
	}
	policy, err := refunds.ParsePolicy(cfg.RefundPolicy, minLeadDays)
	if err != nil {
		log.Fatalf("refund policy: %v", err)
	}

	catalogRepo := catalog.NewRepo(db)
	bookingsRepo := bookings.NewRepo(db)

	bookingSvc := bookings.NewService(db, catalogRepo)
	bookingSvc.SetLogger(logger)

	refundSvc := refunds.NewService(db, policy)
	refundSvc.SetLogger(logger)

	payoutSvc := payouts.NewService(db, catalogRepo)
	payoutSvc.SetLogger(logger)

	reconciler := payments.NewReconciler(db, cfg.CommissionRate)
	reconciler.SetLogger(logger)

	if cfg.SMTP.Host != "" {
		notifier := email.NewNotifier(mailer.NewSMTPMailer(cfg.SMTP), cfg.SMTP)
		reconciler.SetNotifier(notifier)
		payoutSvc.SetNotifier(notifier)
	}

	archive, err := storage.FromEnv(context.Background())
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	reconciler.SetArchive(archive.Storage)
	logger.Info("payload archive ready", "driver", archive.Driver)

	r := apphttp.NewRouter(logger, cfg, db, apphttp.Deps{
		Bookings:     bookingSvc,
		BookingsRepo: bookingsRepo,
		Refunds:      refundSvc,
		Payouts:      payoutSvc,
		Reconciler:   reconciler,
		Catalog:      catalogRepo,
	})

	logger.Info("listening", "addr", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
