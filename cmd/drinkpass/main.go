package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/config"
	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/handler"
	"github.com/drinkpass/drinkpass-api/internal/infra/cache"
	"github.com/drinkpass/drinkpass-api/internal/infra/observability"
	"github.com/drinkpass/drinkpass-api/internal/infra/provider"
	"github.com/drinkpass/drinkpass-api/internal/infra/resilience"
	"github.com/drinkpass/drinkpass-api/internal/infra/supabase"
	"github.com/drinkpass/drinkpass-api/internal/port"
	"github.com/drinkpass/drinkpass-api/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("payment_provider", cfg.PaymentProvider),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("payment_window", cfg.PaymentWindow),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "drinkpass-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Caches ---
	sessionCache := cache.New[*domain.BillingSession](cfg.SessionTTL)
	restaurantCache := cache.New[[]domain.Restaurant](cfg.RestaurantCacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	providerCB := resilience.NewCircuitBreaker("payment-provider")
	supabaseCB := resilience.NewCircuitBreaker("supabase")
	uploadBulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var paymentProvider port.PaymentProvider
	switch cfg.PaymentProvider {
	case "stripe":
		if cfg.StripeSecretKey == "" {
			logger.Fatal("STRIPE_SECRET_KEY is required for the stripe provider")
		}
		paymentProvider = provider.NewStripe(httpClient, cfg.StripeBaseURL, cfg.StripeSecretKey, providerCB, resilienceCfg, logger)
	case "fake":
		logger.Warn("using the fake payment provider; sessions pay themselves",
			zap.Duration("pay_delay", cfg.FakePaymentDelay),
		)
		paymentProvider = provider.NewFake(cfg.FakePaymentDelay, cfg.PaymentWindow, logger)
	case "abacatepay":
		if cfg.AbacatePayAPIKey == "" {
			logger.Fatal("ABACATEPAY_API_KEY is required for the abacatepay provider")
		}
		paymentProvider = provider.NewAbacatePay(httpClient, cfg.AbacatePayBaseURL, cfg.AbacatePayAPIKey, providerCB, resilienceCfg, logger)
	default:
		logger.Fatal("unknown payment provider", zap.String("payment_provider", cfg.PaymentProvider))
	}
	logger.Info("payment provider selected", zap.String("provider", paymentProvider.Name()))

	// --- Supabase (restaurant store + logo storage) ---
	var restaurantSvc *service.RestaurantService
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		supabaseClient := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			supabaseCB,
			resilienceCfg,
			logger,
		)
		logoStorage := supabase.NewStorage(supabaseClient, cfg.LogoBucket)
		restaurantSvc = service.NewRestaurantService(supabaseClient, logoStorage, restaurantCache, uploadBulkhead, metrics, logger)
		logger.Info("restaurant service enabled with Supabase store",
			zap.String("supabase_url", cfg.SupabaseURL),
			zap.String("logo_bucket", cfg.LogoBucket),
		)
	} else {
		logger.Warn("restaurant service: Supabase not configured, restaurant routes unavailable")
	}

	// --- Services ---
	paymentSvc := service.NewPaymentService(paymentProvider, sessionCache, metrics, logger, cfg.PaymentWindow)
	checkoutSvc := service.NewCheckoutService(paymentProvider, paymentSvc, metrics, logger, cfg.SiteBaseURL)

	var authSvc *service.AuthService
	if cfg.JWTSecret != "" && cfg.AdminPasswordHash != "" {
		authSvc = service.NewAuthService(cfg.AdminUser, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
		logger.Info("admin auth enabled", zap.String("admin_user", cfg.AdminUser))
	} else {
		logger.Warn("admin auth: JWT_SECRET or ADMIN_PASSWORD_HASH not set, admin routes unavailable")
	}

	// --- Router ---
	router := handler.NewRouter(checkoutSvc, paymentSvc, restaurantSvc, authSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
