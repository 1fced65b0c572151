package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/infra/resilience"
)

// Stripe is the card checkout provider adapter, built on Checkout Sessions.
type Stripe struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewStripe creates a Stripe adapter.
func NewStripe(httpClient *http.Client, baseURL, secretKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Stripe {
	return &Stripe{
		httpClient: httpClient,
		baseURL:    baseURL,
		secretKey:  secretKey,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Name implements port.PaymentProvider.
func (p *Stripe) Name() string { return "stripe" }

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
}

// CreateSession creates a hosted checkout session.
func (p *Stripe) CreateSession(ctx context.Context, order *domain.PaymentOrder) (*domain.BillingSession, error) {
	ctx, span := tracer.Start(ctx, "Stripe.CreateSession")
	defer span.End()

	params := url.Values{}
	params.Set("payment_method_types[]", "card")
	params.Set("mode", "payment")
	params.Set("success_url", order.SuccessURL)
	params.Set("cancel_url", order.CancelURL)
	params.Set("customer_email", order.Customer.Email)
	params.Set("client_reference_id", fmt.Sprintf("drinkpass-%d", p.now().UnixMilli()))

	params.Set("payment_intent_data[metadata][customer_name]", order.Customer.Name)
	params.Set("payment_intent_data[metadata][customer_phone]", order.Customer.Phone)
	params.Set("payment_intent_data[metadata][customer_document]", order.Customer.Document)

	currency := strings.ToLower(order.Currency)
	for i, it := range order.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		params.Set(prefix+"[price_data][currency]", currency)
		params.Set(prefix+"[price_data][product_data][name]", it.Name)
		params.Set(prefix+"[price_data][product_data][description]", it.Description)
		params.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(it.Amount, 10))
		params.Set(prefix+"[quantity]", strconv.Itoa(it.Quantity))
	}

	var out stripeSession
	if err := p.do(ctx, http.MethodPost, "/v1/checkout/sessions", params, &out); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("checkout.session_id", out.ID))
	return p.toSession(&out), nil
}

// GetStatus fetches the current checkout session state.
func (p *Stripe) GetStatus(ctx context.Context, sessionID string) (*domain.BillingSession, error) {
	ctx, span := tracer.Start(ctx, "Stripe.GetStatus")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.session_id", sessionID))

	var out stripeSession
	if err := p.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return p.toSession(&out), nil
}

func (p *Stripe) toSession(s *stripeSession) *domain.BillingSession {
	return &domain.BillingSession{
		ID:       s.ID,
		URL:      s.URL,
		Status:   mapStripeStatus(s.Status, s.PaymentStatus),
		Amount:   s.AmountTotal,
		Currency: strings.ToUpper(s.Currency),
		// Hosted checkout sessions stay open for 24 hours.
		ExpiresAt:      p.now().Add(24 * time.Hour),
		ProviderBacked: true,
	}
}

// mapStripeStatus maps Stripe's session state onto ours. An expired
// session still reports payment_status "unpaid", so the session status is
// consulted first. Unknown values stay pending.
func mapStripeStatus(status, paymentStatus string) string {
	if status == "expired" {
		return domain.StatusExpired
	}
	switch paymentStatus {
	case "paid", "no_payment_required":
		return domain.StatusPaid
	default: // "unpaid"
		return domain.StatusPending
	}
}

func (p *Stripe) do(ctx context.Context, method, path string, params url.Values, out any) error {
	_, err := p.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, p.cfg, func() error {
			var body io.Reader
			if params != nil {
				body = strings.NewReader(params.Encode())
			}

			req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+p.secretKey)
			if params != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}

			resp, err := p.httpClient.Do(req)
			if err != nil {
				p.logger.Error("stripe: request failed",
					zap.String("method", method),
					zap.String("path", path),
					zap.Error(err),
				)
				return err
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				p.logger.Warn("stripe: non-2xx response",
					zap.String("method", method),
					zap.String("path", path),
					zap.Int("status", resp.StatusCode),
					zap.String("body", string(respBody)),
				)
				return &domain.ErrProvider{
					Provider: p.Name(),
					Status:   resp.StatusCode,
					Message:  providerErrorMessage(respBody),
				}
			}

			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to decode stripe response: %w", err)
			}
			return nil
		})
	})
	return err
}
