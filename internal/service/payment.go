package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/infra/observability"
	"github.com/drinkpass/drinkpass-api/internal/port"
)

// PaymentService tracks open billing sessions and drives their status
// lifecycle. Status moves one way only: pending to paid, expired or failed.
// Concurrent checks for the same session are collapsed into a single
// provider call, so a session can never transition twice.
//
// mu guards every read and write of a cached session; public methods hand
// out copies so callers never observe a concurrent mutation.
type PaymentService struct {
	provider port.PaymentProvider
	sessions port.Cache[*domain.BillingSession]
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu     sync.Mutex
	group  singleflight.Group
	window time.Duration
	now    func() time.Time
}

// NewPaymentService creates a PaymentService. window is the pending-payment
// window applied to fallback sessions and countdowns.
func NewPaymentService(provider port.PaymentProvider, sessions port.Cache[*domain.BillingSession], metrics *observability.Metrics, logger *zap.Logger, window time.Duration) *PaymentService {
	return &PaymentService{
		provider: provider,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		window:   window,
		now:      time.Now,
	}
}

// Register stores a freshly-opened session. The caller keeps its own
// instance; the tracked copy is the only one the service ever mutates.
func (s *PaymentService) Register(session *domain.BillingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracked := *session
	s.sessions.Set(tracked.ID, &tracked)
}

// getLocked returns the tracked session, applying local expiry: a pending
// session past its deadline flips to expired without any provider call.
// Callers must hold s.mu.
func (s *PaymentService) getLocked(id string) (*domain.BillingSession, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "billing session", ID: id}
	}

	if session.Status == domain.StatusPending && !session.ExpiresAt.IsZero() && s.now().After(session.ExpiresAt) {
		s.transitionLocked(session, domain.StatusExpired)
	}
	return session, nil
}

// GetSession returns a snapshot of the tracked session.
func (s *PaymentService) GetSession(ctx context.Context, id string) (*domain.BillingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}

	snapshot := *session
	return &snapshot, nil
}

// CheckStatus refreshes the session status against the provider. Checks for
// the same session are deduplicated; only the first caller reaches the
// network and everyone gets the same result. On provider failure the
// last-known session is returned together with the error so callers can
// choose between surfacing it and degrading to the cached state.
func (s *PaymentService) CheckStatus(ctx context.Context, id string) (*domain.BillingSession, error) {
	v, err, _ := s.group.Do(id, func() (any, error) {
		return s.checkStatus(ctx, id)
	})

	session, _ := v.(*domain.BillingSession)
	return session, err
}

func (s *PaymentService) checkStatus(ctx context.Context, id string) (*domain.BillingSession, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.CheckStatus")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	s.mu.Lock()
	session, err := s.getLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snapshot := *session
	s.mu.Unlock()

	// Terminal states are sticky; nothing left to check.
	if domain.IsTerminalStatus(snapshot.Status) {
		return &snapshot, nil
	}

	// Fallback sessions have no provider record; they only expire by clock,
	// which getLocked already applied.
	if !snapshot.ProviderBacked {
		return &snapshot, nil
	}

	s.metrics.IncrStatusCheck()

	// The provider call runs outside the lock.
	remote, err := s.provider.GetStatus(ctx, id)
	if err != nil {
		s.metrics.IncrExternalError(s.provider.Name())
		s.logger.Warn("payment: status check failed",
			zap.String("session_id", id),
			zap.Error(err),
		)
		return &snapshot, mapProviderError(s.provider.Name(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-read: the session may have expired or transitioned while the
	// provider call was in flight.
	session, err = s.getLocked(id)
	if err != nil {
		return nil, err
	}

	if session.Status != remote.Status {
		if domain.CanTransition(session.Status, remote.Status) {
			s.transitionLocked(session, remote.Status)
		} else {
			s.logger.Warn("payment: ignoring invalid status transition",
				zap.String("session_id", id),
				zap.String("from", session.Status),
				zap.String("to", remote.Status),
			)
		}
	}

	// Late-arriving provider fields (PIX payload, hosted URL) fill in once.
	if session.PaymentCode == "" && remote.PaymentCode != "" {
		session.PaymentCode = remote.PaymentCode
		s.sessions.Set(session.ID, session)
	}
	if session.URL == "" && remote.URL != "" {
		session.URL = remote.URL
		s.sessions.Set(session.ID, session)
	}

	result := *session
	return &result, nil
}

// transitionLocked applies a one-way status change and records the outcome.
// Callers must hold s.mu.
func (s *PaymentService) transitionLocked(session *domain.BillingSession, to string) {
	if !domain.CanTransition(session.Status, to) {
		return
	}
	session.Status = to
	s.sessions.Set(session.ID, session)
	if domain.IsTerminalStatus(to) {
		s.metrics.IncrSessionOutcome(to)
	}
	s.logger.Info("payment: session status changed",
		zap.String("session_id", session.ID),
		zap.String("status", to),
	)
}

// QRCodePNG renders the session's PIX payload as a PNG image.
func (s *PaymentService) QRCodePNG(ctx context.Context, id string) ([]byte, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.PaymentCode == "" {
		return nil, &domain.ErrConflict{Message: "session has no payment code"}
	}

	png, err := qrcode.Encode(session.PaymentCode, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}
	return png, nil
}

// Receipt builds the confirmed-order summary for a paid session. Requesting
// a receipt for any other state is a conflict.
func (s *PaymentService) Receipt(ctx context.Context, id string) (*domain.Receipt, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.StatusPaid {
		return nil, &domain.ErrConflict{Message: "session is not paid"}
	}

	plan, ok := domain.PlanByID(session.PlanID)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "plan", ID: session.PlanID}
	}

	method := "card"
	if session.PaymentCode != "" {
		method = "pix"
	}

	return &domain.Receipt{
		Plan:          plan,
		TransactionID: session.ID,
		Amount:        session.Amount,
		Currency:      session.Currency,
		Method:        method,
		ExpiresOn:     plan.ExpirationFrom(s.now()),
	}, nil
}

// mapProviderError translates transport-level failures into the domain
// error taxonomy.
func mapProviderError(providerName string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: providerName}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "payment status check"}
	}
	var provErr *domain.ErrProvider
	if errors.As(err, &provErr) {
		return provErr
	}
	return &domain.ErrExternalService{Service: providerName, Err: err}
}
