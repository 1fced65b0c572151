package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/infra/observability"
	"github.com/drinkpass/drinkpass-api/internal/port"
)

var tracer = otel.Tracer("service")

// CheckoutService orchestrates the subscription purchase flow: it validates
// customer data, builds the payment order for the selected plan and opens a
// billing session with the configured provider. When the provider is down
// the checkout still succeeds with a locally-synthesized fallback session.
type CheckoutService struct {
	provider port.PaymentProvider
	sessions *PaymentService
	metrics  *observability.Metrics
	logger   *zap.Logger

	siteBaseURL string
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(provider port.PaymentProvider, sessions *PaymentService, metrics *observability.Metrics, logger *zap.Logger, siteBaseURL string) *CheckoutService {
	return &CheckoutService{
		provider:    provider,
		sessions:    sessions,
		metrics:     metrics,
		logger:      logger,
		siteBaseURL: strings.TrimRight(siteBaseURL, "/"),
	}
}

// ValidateCustomer checks the checkout form data. The first failing field
// wins; later fields are not inspected.
func (s *CheckoutService) ValidateCustomer(c *domain.CustomerData) error {
	if strings.TrimSpace(c.Name) == "" {
		return &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(c.Email) == "" || !strings.Contains(c.Email, "@") {
		return &domain.ErrValidation{Field: "email", Message: "a valid email is required"}
	}
	if len(Digits(c.Phone)) < 10 {
		return &domain.ErrValidation{Field: "phone", Message: "a valid phone number is required"}
	}
	if len(Digits(c.Document)) != 11 {
		return &domain.ErrValidation{Field: "document", Message: "a valid CPF is required"}
	}
	return nil
}

// StartCheckout validates the customer, builds the payment order for planID
// and opens a billing session. Validation failures abort before any provider
// call. Provider failures degrade to a fallback session instead of failing
// the checkout.
func (s *CheckoutService) StartCheckout(ctx context.Context, planID string, customer *domain.CustomerData) (*domain.BillingSession, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.StartCheckout")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	plan, ok := domain.PlanByID(planID)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "plan", ID: planID}
	}

	if err := s.ValidateCustomer(customer); err != nil {
		return nil, err
	}

	order := s.buildOrder(plan, customer)

	session, err := s.provider.CreateSession(ctx, order)
	if err != nil {
		s.logger.Warn("checkout: provider failed, issuing fallback session",
			zap.String("provider", s.provider.Name()),
			zap.String("plan_id", plan.ID),
			zap.Error(err),
		)
		s.metrics.IncrExternalError(s.provider.Name())
		s.metrics.IncrFallbackSession()
		session = s.fallbackSession(plan)
	}

	session.PlanID = plan.ID
	s.sessions.Register(session)
	s.metrics.IncrCheckout(plan.ID)

	s.logger.Info("checkout: session opened",
		zap.String("session_id", session.ID),
		zap.String("plan_id", plan.ID),
		zap.Int64("amount", session.Amount),
		zap.Bool("provider_backed", session.ProviderBacked),
	)
	return session, nil
}

// buildOrder assembles the normalized single-item payment order for a plan.
// Phone and document are reduced to digits before leaving the API.
func (s *CheckoutService) buildOrder(plan domain.Plan, customer *domain.CustomerData) *domain.PaymentOrder {
	return &domain.PaymentOrder{
		Customer: domain.CustomerData{
			Name:     strings.TrimSpace(customer.Name),
			Email:    strings.TrimSpace(customer.Email),
			Phone:    Digits(customer.Phone),
			Document: Digits(customer.Document),
		},
		Items: []domain.OrderItem{
			{
				ID:          "drinkpass-" + plan.ID,
				Name:        "DrinkPass - " + plan.Name,
				Description: plan.Description,
				Quantity:    1,
				Amount:      plan.PriceMinorUnits(),
			},
		},
		Currency:   "BRL",
		ReturnURL:  s.siteBaseURL + "/checkout",
		SuccessURL: s.siteBaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.siteBaseURL + "/checkout",
	}
}

// fallbackSession synthesizes a local pending session after a provider
// failure. It carries a static per-plan PIX payload and the standard
// payment window; status checks for it never hit the network.
func (s *CheckoutService) fallbackSession(plan domain.Plan) *domain.BillingSession {
	return &domain.BillingSession{
		ID:          fmt.Sprintf("pay_%s", uuid.NewString()),
		URL:         s.siteBaseURL + "/checkout/payment",
		PaymentCode: fallbackPixCode(plan.ID),
		Status:      domain.StatusPending,
		Amount:      plan.PriceMinorUnits(),
		Currency:    "BRL",
		ExpiresAt:   s.sessions.now().Add(s.sessions.window),

		ProviderBacked: false,
	}
}

// Static PIX payloads used when the billing provider is unreachable.
var fallbackPixCodes = map[string]string{
	domain.PlanMonthly:    "00020101021126330014br.gov.bcb.pix0111100229766475204089.9053039865802BR5917DRINKPASS LTDA6013BELO HORIZONT62070503***6304A55B",
	domain.PlanSemiannual: "00020101021126330014br.gov.bcb.pix0111100229766475204069.9053039865802BR5917DRINKPASS LTDA6013BELO HORIZONT62070503***6304B66C",
	domain.PlanAnnual:     "00020101021126330014br.gov.bcb.pix0111100229766475204049.9053039865802BR5917DRINKPASS LTDA6013BELO HORIZONT62070503***6304C77D",
}

func fallbackPixCode(planID string) string {
	if code, ok := fallbackPixCodes[planID]; ok {
		return code
	}
	return fallbackPixCodes[domain.PlanMonthly]
}
