package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

type SMTPConfig struct {
	Host          string
	Port          string
	User          string
	Pass          string
	TLSMode       string // "", "starttls", "tls"
	SkipVerifyTLS bool
	FromName      string
	FromAddress   string
}

type Config struct {
	DBDSN     string
	HTTPAddr  string
	JWTSecret string

	// SepayAPIKey authenticates inbound gateway notifications
	// (Authorization: Apikey <key>).
	SepayAPIKey string

	// CommissionRate is the platform commission in percent (e.g. "10").
	CommissionRate decimal.Decimal

	// RefundPolicy / RefundMinLeadDays are parsed by the refunds package;
	// kept raw here so config stays dependency-light.
	RefundPolicy      string
	RefundMinLeadDays string

	SMTP SMTPConfig
}

func FromEnv() (Config, error) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return Config{}, fmt.Errorf("DB_DSN environment variable is required")
	}

	rateRaw := envOr("PLATFORM_COMMISSION_RATE", "10")
	rate, err := decimal.NewFromString(rateRaw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid PLATFORM_COMMISSION_RATE %q: %w", rateRaw, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return Config{}, fmt.Errorf("PLATFORM_COMMISSION_RATE must be within 0..100, got %s", rate)
	}

	return Config{
		DBDSN:             dsn,
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		JWTSecret:         envOr("JWT_SECRET", ""),
		SepayAPIKey:       envOr("SEPAY_API_KEY", ""),
		CommissionRate:    rate,
		RefundPolicy:      os.Getenv("REFUND_POLICY"),
		RefundMinLeadDays: os.Getenv("REFUND_MIN_LEAD_DAYS"),
		SMTP: SMTPConfig{
			Host:          envOr("SMTP_HOST", ""),
			Port:          envOr("SMTP_PORT", "1025"),
			User:          os.Getenv("SMTP_USER"),
			Pass:          os.Getenv("SMTP_PASS"),
			TLSMode:       os.Getenv("SMTP_TLS_MODE"),
			SkipVerifyTLS: os.Getenv("SMTP_TLS_SKIP_VERIFY") == "1",
			FromName:      envOr("MAIL_FROM_NAME", "TouriMate"),
			FromAddress:   envOr("MAIL_FROM_ADDRESS", "no-reply@tourimate.local"),
		},
	}, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
