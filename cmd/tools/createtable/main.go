package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/availability"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/bookings"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/catalog"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/ledger"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/orders"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/payments"
	"github.com/dajtvoxdev/tourimate-sub003/internal/modules/refunds"
)

// Dev helper: creates every table this service owns. Catalog tables (tours,
// users) are included so a fresh local database can run end to end; in shared
// environments those are managed elsewhere.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	models := []any{
		&catalog.Tour{},
		&catalog.User{},
		&availability.TourAvailability{},
		&bookings.Booking{},
		&orders.Order{},
		&payments.Notification{},
		&refunds.Refund{},
		&ledger.Transaction{},
		&ledger.Revenue{},
		&ledger.Cost{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	log.Printf("✓ %d tables migrated", len(models))
}
