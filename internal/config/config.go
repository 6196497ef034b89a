package config

import (
	"os"
)

type Config struct {
	Port       string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret             string
	RefreshJWTSecret      string
	AccessTokenTTLMinutes string
	RefreshTokenTTLDays   string

	AdminEmail    string
	AdminPassword string

	// Free tier limits
	FreeDailyIntervalLimit string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string

	// PayPal
	PayPalReceiverEmail string
	PayPalVerifyIPN     string // "1" enables the verification postback
	PayPalIPNEndpoint   string

	// Google Calendar OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Per-user rate limit on mutating timer endpoints (requests per minute)
	TimerRateLimitPerMinute string
}

func Load() *Config {
	return &Config{
		Port:       getenv("PORT", "8080"),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: getenv("DB_PASSWORD", "postgres"),
		DBName:     getenv("DB_NAME", "eyerest_db"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),

		JWTSecret:             getenv("JWT_SECRET", "supersecret_change_me"),
		RefreshJWTSecret:      getenv("REFRESH_JWT_SECRET", getenv("JWT_SECRET", "supersecret_change_me")),
		AccessTokenTTLMinutes: getenv("ACCESS_TOKEN_TTL_MINUTES", "15"),
		RefreshTokenTTLDays:   getenv("REFRESH_TOKEN_TTL_DAYS", "30"),

		AdminEmail:    getenv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: getenv("ADMIN_PASSWORD", "admin123"),

		FreeDailyIntervalLimit: getenv("FREE_DAILY_INTERVAL_LIMIT", "6"),

		StripeSecretKey:     getenv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getenv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceID:       getenv("STRIPE_PRICE_ID", ""),

		PayPalReceiverEmail: getenv("PAYPAL_RECEIVER_EMAIL", ""),
		PayPalVerifyIPN:     getenv("PAYPAL_VERIFY_IPN", "0"),
		PayPalIPNEndpoint:   getenv("PAYPAL_IPN_ENDPOINT", "https://ipnpb.paypal.com/cgi-bin/webscr"),

		GoogleClientID:     getenv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getenv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getenv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/v1/calendars/google/callback"),

		TimerRateLimitPerMinute: getenv("TIMER_RATE_LIMIT_PER_MINUTE", "60"),
	}
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
