package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/handler"
	"github.com/drinkpass/drinkpass-api/internal/infra/cache"
	"github.com/drinkpass/drinkpass-api/internal/infra/observability"
	"github.com/drinkpass/drinkpass-api/internal/infra/resilience"
	"github.com/drinkpass/drinkpass-api/internal/service"
)

// stubProvider is a canned-response payment provider.
type stubProvider struct {
	session *domain.BillingSession
	err     error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) CreateSession(ctx context.Context, order *domain.PaymentOrder) (*domain.BillingSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.session
	out.Amount = order.Total()
	return &out, nil
}

func (s *stubProvider) GetStatus(ctx context.Context, sessionID string) (*domain.BillingSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

// stubRestaurantStore serves a fixed catalog.
type stubRestaurantStore struct {
	restaurants []domain.Restaurant
}

func (s *stubRestaurantStore) ListRestaurants(ctx context.Context) ([]domain.Restaurant, error) {
	return s.restaurants, nil
}

func (s *stubRestaurantStore) GetRestaurant(ctx context.Context, id int64) (*domain.Restaurant, error) {
	for _, r := range s.restaurants {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "restaurant", ID: "?"}
}

func (s *stubRestaurantStore) InsertRestaurant(ctx context.Context, r *domain.Restaurant) (*domain.Restaurant, error) {
	created := *r
	created.ID = 1
	return &created, nil
}

func (s *stubRestaurantStore) UpdateRestaurant(ctx context.Context, id int64, r *domain.Restaurant) (*domain.Restaurant, error) {
	updated := *r
	updated.ID = id
	return &updated, nil
}

type stubLogoStore struct{}

func (s *stubLogoStore) UploadObject(ctx context.Context, path, contentType string, data []byte) error {
	return nil
}

func (s *stubLogoStore) CreateSignedURL(ctx context.Context, path string, expiresInSeconds int) (string, error) {
	return "https://cdn.example/signed/" + path, nil
}

func (s *stubLogoStore) PublicURL(path string) string {
	return "https://cdn.example/public/" + path
}

func newTestRouter(provider *stubProvider, store *stubRestaurantStore) http.Handler {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	sessions := cache.New[*domain.BillingSession](time.Hour)
	payments := service.NewPaymentService(provider, sessions, metrics, logger, 15*time.Minute)
	checkout := service.NewCheckoutService(provider, payments, metrics, logger, "https://drinkpass.example")

	listCache := cache.New[[]domain.Restaurant](5 * time.Minute)
	restaurants := service.NewRestaurantService(store, &stubLogoStore{}, listCache, resilience.NewBulkhead(2), metrics, logger)

	return handler.NewRouter(checkout, payments, restaurants, nil, metrics, logger)
}

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestGetPlans(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Plans []domain.Plan `json:"plans"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Plans) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(body.Plans))
	}
	if body.Plans[0].ID != domain.PlanMonthly || body.Plans[0].Price != 89.90 {
		t.Errorf("unexpected first plan: %+v", body.Plans[0])
	}
}

func TestCheckout_Created(t *testing.T) {
	provider := &stubProvider{
		session: &domain.BillingSession{
			ID:             "bill_1",
			Status:         domain.StatusPending,
			Currency:       "BRL",
			PaymentCode:    "pix-payload",
			ProviderBacked: true,
		},
	}
	router := newTestRouter(provider, &stubRestaurantStore{})

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

	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var session domain.BillingSession
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.PlanID != "monthly" {
		t.Errorf("expected plan id monthly, got %q", session.PlanID)
	}
	if session.Amount != 8990 {
		t.Errorf("expected 8990 centavos, got %d", session.Amount)
	}
}

func TestCheckout_InvalidCustomer(t *testing.T) {
	router := newTestRouter(&stubProvider{}, &stubRestaurantStore{})

	payload := map[string]any{
		"plan_id": "monthly",
		"customer": map[string]string{
			"name":     "Maria Souza",
			"email":    "not-an-email",
			"phone":    "(31) 98765-4321",
			"document": "123.456.789-01",
		},
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	router := newTestRouter(&stubProvider{}, &stubRestaurantStore{})

	req := httptest.NewRequest(http.MethodGet, "/v1/checkout/sessions/missing", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListRestaurants(t *testing.T) {
	store := &stubRestaurantStore{restaurants: []domain.Restaurant{
		{ID: 1, Name: "Bar do Zé", Location: "Centro"},
		{ID: 2, Name: "Cantina da Nona", Location: "Savassi"},
	}}
	router := newTestRouter(&stubProvider{}, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/restaurants", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Restaurants []domain.Restaurant `json:"restaurants"`
		Count       int                 `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("expected count 2, got %d", body.Count)
	}
}

func TestGetRestaurant_NotFoundHasBackLink(t *testing.T) {
	router := newTestRouter(&stubProvider{}, &stubRestaurantStore{})

	req := httptest.NewRequest(http.MethodGet, "/v1/restaurants/999", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["back"] != "/restaurants" {
		t.Errorf("expected back link to /restaurants, got %q", body["back"])
	}
}

// failingRestaurantStore errors on every call.
type failingRestaurantStore struct{}

func (failingRestaurantStore) ListRestaurants(ctx context.Context) ([]domain.Restaurant, error) {
	return nil, &domain.ErrStore{Op: "list restaurants", Err: errors.New("connection refused")}
}

func (failingRestaurantStore) GetRestaurant(ctx context.Context, id int64) (*domain.Restaurant, error) {
	return nil, &domain.ErrStore{Op: "get restaurant", Err: errors.New("connection refused")}
}

func (failingRestaurantStore) InsertRestaurant(ctx context.Context, r *domain.Restaurant) (*domain.Restaurant, error) {
	return nil, &domain.ErrStore{Op: "insert restaurant", Err: errors.New("connection refused")}
}

func (failingRestaurantStore) UpdateRestaurant(ctx context.Context, id int64, r *domain.Restaurant) (*domain.Restaurant, error) {
	return nil, &domain.ErrStore{Op: "update restaurant", Err: errors.New("connection refused")}
}

func TestRestaurantRoutes_UnavailableWithoutStore(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	for _, path := range []string{"/v1/restaurants", "/v1/restaurants/1"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503 when no store is configured, got %d", path, rec.Code)
		}
	}
}

func TestListRestaurants_StoreErrorSurfacesCause(t *testing.T) {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	listCache := cache.New[[]domain.Restaurant](5 * time.Minute)
	restaurants := service.NewRestaurantService(failingRestaurantStore{}, &stubLogoStore{}, listCache, resilience.NewBulkhead(2), metrics, logger)

	router := handler.NewRouter(nil, nil, restaurants, nil, metrics, logger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/restaurants", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body["error"], "backend store unavailable") {
		t.Errorf("expected wrapper sentence, got %q", body["error"])
	}
	if !strings.Contains(body["error"], "connection refused") {
		t.Errorf("expected underlying store error text, got %q", body["error"])
	}
}

func TestAdminRoutes_UnavailableWithoutAuth(t *testing.T) {
	router := newTestRouter(&stubProvider{}, &stubRestaurantStore{})

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/restaurants", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when auth is not configured, got %d", rec.Code)
	}
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	authSvc := service.NewAuthService("admin", "$2a$04$invalidhash", "signing-key", time.Hour, logger)

	listCache := cache.New[[]domain.Restaurant](5 * time.Minute)
	restaurants := service.NewRestaurantService(&stubRestaurantStore{}, &stubLogoStore{}, listCache, resilience.NewBulkhead(2), metrics, logger)

	router := handler.NewRouter(nil, nil, restaurants, authSvc, metrics, logger)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/restaurants", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}
