package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/infra/observability"
	"github.com/drinkpass/drinkpass-api/internal/service"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract of the DrinkPass frontend.
func NewRouter(checkoutSvc *service.CheckoutService, paymentSvc *service.PaymentService, restaurantSvc *service.RestaurantService, authSvc *service.AuthService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(restaurantSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Plans
		// GET /v1/plans
		// =============================================
		r.Get("/plans", plansHandler(logger))

		// =============================================
		// Checkout & Payment
		// =============================================
		r.Post("/checkout", checkoutHandler(checkoutSvc, logger))
		r.Route("/checkout/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", getSessionHandler(paymentSvc, logger))
			r.Post("/confirm", confirmPaymentHandler(paymentSvc, logger))
			r.Get("/qrcode", qrcodeHandler(paymentSvc, logger))
			r.Get("/receipt", receiptHandler(paymentSvc, logger))
		})

		// =============================================
		// Restaurants (public catalog)
		// =============================================
		if restaurantSvc != nil {
			r.Get("/restaurants", listRestaurantsHandler(restaurantSvc, logger))
			r.Get("/restaurants/{restaurantId}", getRestaurantHandler(restaurantSvc, logger))
		} else {
			r.Get("/restaurants", catalogUnavailableHandler)
			r.Get("/restaurants/{restaurantId}", catalogUnavailableHandler)
		}

		// =============================================
		// Metrics snapshot
		// GET /v1/metrics/checkout
		// =============================================
		r.Get("/metrics/checkout", checkoutMetricsHandler(metrics, logger))

		// =============================================
		// Authentication & Admin (back office)
		// =============================================
		if authSvc == nil {
			unavailable := func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "admin features unavailable: credentials not configured")
			}
			r.Post("/auth/login", unavailable)
			r.Handle("/admin/*", http.HandlerFunc(unavailable))
			return
		}

		r.Post("/auth/login", authLoginHandler(authSvc, logger))

		r.Route("/admin", func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))
			if restaurantSvc == nil {
				r.Post("/restaurants", catalogUnavailableHandler)
				r.Put("/restaurants/{restaurantId}", catalogUnavailableHandler)
				return
			}
			r.Post("/restaurants", createRestaurantHandler(restaurantSvc, logger))
			r.Put("/restaurants/{restaurantId}", updateRestaurantHandler(restaurantSvc, logger))
		})
	})

	return r
}

// catalogUnavailableHandler answers restaurant routes when no store is
// configured. The deployment still serves checkout; the catalog degrades
// to an explicit 503 instead of a dead page.
func catalogUnavailableHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusServiceUnavailable, "restaurant catalog unavailable: store not configured")
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(restaurantSvc *service.RestaurantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "drinkpass-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if restaurantSvc != nil {
			start := time.Now()
			_, err := restaurantSvc.List(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func checkoutMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/metrics/checkout")
		defer span.End()

		writeJSON(w, http.StatusOK, metrics.GetCheckoutSnapshot())
	}
}
