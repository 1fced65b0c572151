package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
// Secrets (provider keys, password hash, JWT secret) have NO defaults:
// when absent, the dependent feature is disabled at startup instead of
// shipping a baked-in credential.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Caching
	RestaurantCacheTTL time.Duration
	// SessionTTL bounds how long a billing session stays addressable after
	// creation. Must exceed PaymentWindow.
	SessionTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	LogoBucket         string

	// Payment provider selection: "abacatepay", "stripe" or "fake".
	PaymentProvider   string
	AbacatePayAPIKey  string
	AbacatePayBaseURL string
	StripeSecretKey   string
	StripeBaseURL     string

	// PaymentWindow is the fixed pending-payment window communicated to the
	// client (countdown) and used as the expiry of PIX/fallback sessions.
	PaymentWindow time.Duration
	// FakePaymentDelay is how long the fake provider keeps a session
	// pending before marking it paid. Deterministic, for dev/staging only.
	FakePaymentDelay time.Duration

	// SiteBaseURL is the public origin of the frontend, used to build the
	// return/success/cancel callback URLs of a PaymentOrder.
	SiteBaseURL string

	// Admin auth
	JWTSecret         string
	JWTAccessTTL      time.Duration
	AdminUser         string
	AdminPasswordHash string // bcrypt hash
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		RestaurantCacheTTL: getEnvDuration("RESTAURANT_CACHE_TTL", 5*time.Minute),
		SessionTTL:         getEnvDuration("SESSION_TTL", 45*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		LogoBucket:         getEnv("SUPABASE_LOGO_BUCKET", "restaurantlogos"),

		PaymentProvider:   getEnv("PAYMENT_PROVIDER", "abacatepay"),
		AbacatePayAPIKey:  getEnv("ABACATEPAY_API_KEY", ""),
		AbacatePayBaseURL: getEnv("ABACATEPAY_BASE_URL", "https://api.abacatepay.com/v1"),
		StripeSecretKey:   getEnv("STRIPE_SECRET_KEY", ""),
		StripeBaseURL:     getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),

		PaymentWindow:    getEnvDuration("PAYMENT_WINDOW", 15*time.Minute),
		FakePaymentDelay: getEnvDuration("FAKE_PAYMENT_DELAY", 5*time.Second),

		SiteBaseURL: getEnv("SITE_BASE_URL", "http://localhost:5173"),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTAccessTTL:      getEnvDuration("JWT_ACCESS_TTL", 1*time.Hour),
		AdminUser:         getEnv("ADMIN_USER", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
