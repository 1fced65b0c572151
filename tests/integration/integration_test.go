package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/handler"
	"github.com/drinkpass/drinkpass-api/internal/infra/cache"
	"github.com/drinkpass/drinkpass-api/internal/infra/observability"
	"github.com/drinkpass/drinkpass-api/internal/infra/provider"
	"github.com/drinkpass/drinkpass-api/internal/infra/resilience"
	"github.com/drinkpass/drinkpass-api/internal/infra/supabase"
	"github.com/drinkpass/drinkpass-api/internal/service"
)

var resilienceCfg = resilience.Config{
	MaxRetries:     1,
	InitialBackoff: 5 * time.Millisecond,
	MaxConcurrency: 4,
}

// TestIntegration_CheckoutFlow drives the whole payment flow against a mock
// billing provider: checkout, poll, pay, receipt.
func TestIntegration_CheckoutFlow(t *testing.T) {
	var mu sync.Mutex
	billingStatus := "PENDING"

	// --- Mock billing API ---
	billingServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		status := billingStatus
		mu.Unlock()

		resp := map[string]any{
			"id":        "bill_integration_1",
			"url":       "https://pay.example/bill_integration_1",
			"pixCode":   "pix-copy-paste-payload",
			"status":    status,
			"amount":    8990,
			"expiresAt": time.Now().Add(15 * time.Minute).Format(time.RFC3339),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer billingServer.Close()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	httpClient := &http.Client{Timeout: 2 * time.Second}

	billing := provider.NewAbacatePay(httpClient, billingServer.URL, "test-key", resilience.NewCircuitBreaker("billing-test"), resilienceCfg, logger)

	sessions := cache.New[*domain.BillingSession](time.Hour)
	paymentSvc := service.NewPaymentService(billing, sessions, metrics, logger, 15*time.Minute)
	checkoutSvc := service.NewCheckoutService(billing, paymentSvc, metrics, logger, "https://drinkpass.example")

	router := handler.NewRouter(checkoutSvc, paymentSvc, nil, nil, metrics, logger)

	// --- 1. Checkout ---
	payload := map[string]any{
		"plan_id": "monthly",
		"customer": map[string]string{
			"name":     "Maria Souza",
			"email":    "maria@example.com",
			"phone":    "(31) 98765-4321",
			"document": "123.456.789-01",
		},
	}
	body, _ := json.Marshal(payload)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/checkout", bytes.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var session domain.BillingSession
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("checkout: decode: %v", err)
	}
	if session.Status != domain.StatusPending {
		t.Fatalf("checkout: expected pending, got %q", session.Status)
	}
	if !session.ProviderBacked {
		t.Fatal("checkout: expected a provider-backed session")
	}

	sessionPath := fmt.Sprintf("/v1/checkout/sessions/%s", session.ID)

	// --- 2. Poll while unpaid ---
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, sessionPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("poll: expected 200, got %d", rec.Code)
	}

	var polled domain.BillingSession
	json.NewDecoder(rec.Body).Decode(&polled)
	if polled.Status != domain.StatusPending {
		t.Fatalf("poll: expected pending, got %q", polled.Status)
	}

	// --- 3. Receipt before payment is a conflict ---
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, sessionPath+"/receipt", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("early receipt: expected 409, got %d", rec.Code)
	}

	// --- 4. QR code is served for the PIX payload ---
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, sessionPath+"/qrcode", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("qrcode: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("qrcode: expected image/png, got %q", ct)
	}

	// --- 5. Provider reports paid; manual confirmation picks it up ---
	mu.Lock()
	billingStatus = "PAID"
	mu.Unlock()

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, sessionPath+"/confirm", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", rec.Code)
	}

	var confirmed domain.BillingSession
	json.NewDecoder(rec.Body).Decode(&confirmed)
	if confirmed.Status != domain.StatusPaid {
		t.Fatalf("confirm: expected paid, got %q", confirmed.Status)
	}

	// --- 6. Receipt after payment ---
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, sessionPath+"/receipt", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("receipt: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var receipt domain.Receipt
	json.NewDecoder(rec.Body).Decode(&receipt)
	if receipt.Plan.ID != domain.PlanMonthly {
		t.Errorf("receipt: expected monthly plan, got %q", receipt.Plan.ID)
	}
	if receipt.Amount != 8990 {
		t.Errorf("receipt: expected 8990 centavos, got %d", receipt.Amount)
	}
	if receipt.Method != "pix" {
		t.Errorf("receipt: expected pix, got %q", receipt.Method)
	}
}

// TestIntegration_ProviderDownFallback verifies the checkout still succeeds
// when the billing provider is unreachable.
func TestIntegration_ProviderDownFallback(t *testing.T) {
	brokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"internal error"}`, http.StatusInternalServerError)
	}))
	defer brokenServer.Close()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	httpClient := &http.Client{Timeout: 2 * time.Second}

	billing := provider.NewAbacatePay(httpClient, brokenServer.URL, "test-key", resilience.NewCircuitBreaker("billing-broken"), resilienceCfg, logger)

	sessions := cache.New[*domain.BillingSession](time.Hour)
	paymentSvc := service.NewPaymentService(billing, sessions, metrics, logger, 15*time.Minute)
	checkoutSvc := service.NewCheckoutService(billing, paymentSvc, metrics, logger, "https://drinkpass.example")

	router := handler.NewRouter(checkoutSvc, paymentSvc, nil, nil, metrics, logger)

	payload := map[string]any{
		"plan_id": "annual",
		"customer": map[string]string{
			"name":     "Maria Souza",
			"email":    "maria@example.com",
			"phone":    "(31) 98765-4321",
			"document": "123.456.789-01",
		},
	}
	body, _ := json.Marshal(payload)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/checkout", bytes.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite provider outage, got %d: %s", rec.Code, rec.Body.String())
	}

	var session domain.BillingSession
	json.NewDecoder(rec.Body).Decode(&session)
	if session.ProviderBacked {
		t.Error("expected a fallback session")
	}
	if session.PaymentCode == "" {
		t.Error("expected fallback session to carry a PIX payload")
	}
	if session.Amount != 4990 {
		t.Errorf("expected 4990 centavos, got %d", session.Amount)
	}
}

// TestIntegration_RestaurantCatalog exercises the Supabase-backed catalog
// against a mock PostgREST server.
func TestIntegration_RestaurantCatalog(t *testing.T) {
	restServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		q := r.URL.Query().Get("id")
		if q == "eq.999" {
			w.Write([]byte("[]"))
			return
		}

		rows := []map[string]any{
			{
				"id": 1, "name": "Bar do Zé", "location": "Centro",
				"cuisine": "Boteco", "address": "Rua A, 1", "phone": "(31) 3333-0000",
				"description": "Chopp gelado", "promotion": "Dose dupla",
				"availability": map[string]any{"friday": map[string]string{"evening": "18:00-23:00"}},
				"features":     []string{"música ao vivo"},
			},
		}
		json.NewEncoder(w).Encode(rows)
	}))
	defer restServer.Close()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	httpClient := &http.Client{Timeout: 2 * time.Second}

	client := supabase.NewClient(httpClient, restServer.URL, "anon", "service", resilience.NewCircuitBreaker("supabase-test"), resilienceCfg, logger)
	storage := supabase.NewStorage(client, "restaurantlogos")

	listCache := cache.New[[]domain.Restaurant](5 * time.Minute)
	restaurantSvc := service.NewRestaurantService(client, storage, listCache, resilience.NewBulkhead(2), metrics, logger)

	router := handler.NewRouter(nil, nil, restaurantSvc, nil, metrics, logger)

	// --- List ---
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/restaurants", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var listBody struct {
		Restaurants []domain.Restaurant `json:"restaurants"`
		Count       int                 `json:"count"`
	}
	json.NewDecoder(rec.Body).Decode(&listBody)
	if listBody.Count != 1 || listBody.Restaurants[0].Name != "Bar do Zé" {
		t.Fatalf("list: unexpected body: %+v", listBody)
	}

	// --- Get known id ---
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/restaurants/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	// --- Get unknown id ---
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/restaurants/999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown: expected 404, got %d", rec.Code)
	}

	var nf map[string]string
	json.NewDecoder(rec.Body).Decode(&nf)
	if nf["back"] != "/restaurants" {
		t.Errorf("get unknown: expected back link, got %+v", nf)
	}
}
