// Package provider contains the payment provider adapters. Exactly one
// implementation of port.PaymentProvider is selected at startup; the rest
// of the application never branches on the concrete type.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/infra/resilience"
)

var tracer = otel.Tracer("provider")

// pixBillingWindow is how long a PIX billing stays payable. The expiry is
// fixed at creation time; the provider response is not trusted to echo one.
const pixBillingWindow = 15 * time.Minute

// AbacatePay is the PIX billing provider adapter.
type AbacatePay struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewAbacatePay creates an AbacatePay adapter.
func NewAbacatePay(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *AbacatePay {
	return &AbacatePay{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Name implements port.PaymentProvider.
func (p *AbacatePay) Name() string { return "abacatepay" }

type abacatePayProduct struct {
	ExternalID  string `json:"externalId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"` // centavos
}

type abacatePayCustomer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
}

type abacatePayBillingRequest struct {
	Frequency     string              `json:"frequency"`
	Methods       []string            `json:"methods"`
	Products      []abacatePayProduct `json:"products"`
	ReturnURL     string              `json:"returnUrl"`
	CompletionURL string              `json:"completionUrl"`
	Customer      abacatePayCustomer  `json:"customer"`
}

type abacatePayBillingResponse struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	PixCode string `json:"pixCode,omitempty"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
}

// CreateSession creates a one-time PIX billing.
func (p *AbacatePay) CreateSession(ctx context.Context, order *domain.PaymentOrder) (*domain.BillingSession, error) {
	ctx, span := tracer.Start(ctx, "AbacatePay.CreateSession")
	defer span.End()

	products := make([]abacatePayProduct, 0, len(order.Items))
	for _, it := range order.Items {
		products = append(products, abacatePayProduct{
			ExternalID:  it.ID,
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       it.Amount,
		})
	}

	reqBody := abacatePayBillingRequest{
		Frequency:     "ONE_TIME",
		Methods:       []string{"PIX"},
		Products:      products,
		ReturnURL:     order.ReturnURL,
		CompletionURL: order.SuccessURL,
		Customer: abacatePayCustomer{
			Name:     order.Customer.Name,
			Email:    order.Customer.Email,
			Phone:    order.Customer.Phone,
			Document: order.Customer.Document,
		},
	}

	var out abacatePayBillingResponse
	if err := p.do(ctx, http.MethodPost, "/billing/create", reqBody, &out); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("billing.id", out.ID))

	session := p.toSession(&out)
	session.ExpiresAt = p.now().Add(pixBillingWindow)
	return session, nil
}

// GetStatus fetches the current billing status.
func (p *AbacatePay) GetStatus(ctx context.Context, sessionID string) (*domain.BillingSession, error) {
	ctx, span := tracer.Start(ctx, "AbacatePay.GetStatus")
	defer span.End()
	span.SetAttributes(attribute.String("billing.id", sessionID))

	var out abacatePayBillingResponse
	if err := p.do(ctx, http.MethodGet, "/billing/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return p.toSession(&out), nil
}

func (p *AbacatePay) toSession(resp *abacatePayBillingResponse) *domain.BillingSession {
	return &domain.BillingSession{
		ID:             resp.ID,
		URL:            resp.URL,
		PaymentCode:    resp.PixCode,
		Status:         mapAbacatePayStatus(resp.Status),
		Amount:         resp.Amount,
		Currency:       "BRL",
		ProviderBacked: true,
	}
}

// mapAbacatePayStatus maps the provider's status vocabulary onto ours.
// Unknown values stay pending so a transient vocabulary change never
// flips a session into a terminal state by accident.
func mapAbacatePayStatus(s string) string {
	switch s {
	case "PAID", "COMPLETED":
		return domain.StatusPaid
	case "EXPIRED":
		return domain.StatusExpired
	case "CANCELLED", "FAILED":
		return domain.StatusFailed
	default:
		return domain.StatusPending
	}
}

func (p *AbacatePay) do(ctx context.Context, method, path string, payload, out any) error {
	_, err := p.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, p.cfg, func() error {
			var body io.Reader
			if payload != nil {
				jsonBody, err := json.Marshal(payload)
				if err != nil {
					return err
				}
				body = bytes.NewReader(jsonBody)
			}

			req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
			req.Header.Set("Accept", "application/json")
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := p.httpClient.Do(req)
			if err != nil {
				p.logger.Error("abacatepay: request failed",
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
				p.logger.Warn("abacatepay: non-2xx response",
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
				return fmt.Errorf("failed to decode abacatepay response: %w", err)
			}
			return nil
		})
	})
	return err
}

// providerErrorMessage extracts a human-readable message from an error body.
func providerErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
	}
	return string(body)
}
