package provider

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
)

// Fake is an in-memory payment provider for development and staging.
// Sessions are deterministic: every session becomes paid exactly payDelay
// after creation, or expired if the payment window elapses first.
type Fake struct {
	payDelay time.Duration
	window   time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*fakeSession
}

type fakeSession struct {
	session   domain.BillingSession
	createdAt time.Time
}

// NewFake creates a fake provider. payDelay controls how long a session
// stays pending; window is the overall payment window.
func NewFake(payDelay, window time.Duration, logger *zap.Logger) *Fake {
	return &Fake{
		payDelay: payDelay,
		window:   window,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*fakeSession),
	}
}

// Name implements port.PaymentProvider.
func (p *Fake) Name() string { return "fake" }

// CreateSession registers a pending in-memory session.
func (p *Fake) CreateSession(ctx context.Context, order *domain.PaymentOrder) (*domain.BillingSession, error) {
	now := p.now()
	id := "fake_" + uuid.NewString()

	s := domain.BillingSession{
		ID:          id,
		PaymentCode: fakePixCode(id, order.Total()),
		Status:      domain.StatusPending,
		Amount:      order.Total(),
		Currency:    order.Currency,
		ExpiresAt:   now.Add(p.window),

		ProviderBacked: true,
	}

	p.mu.Lock()
	p.sessions[id] = &fakeSession{session: s, createdAt: now}
	p.mu.Unlock()

	p.logger.Debug("fake provider: session created",
		zap.String("session_id", id),
		zap.Int64("amount", s.Amount),
	)
	return &s, nil
}

// GetStatus reports the deterministic state of an in-memory session.
func (p *Fake) GetStatus(ctx context.Context, sessionID string) (*domain.BillingSession, error) {
	p.mu.RLock()
	fs, ok := p.sessions[sessionID]
	p.mu.RUnlock()

	if !ok {
		return nil, &domain.ErrNotFound{Resource: "billing session", ID: sessionID}
	}

	s := fs.session
	elapsed := p.now().Sub(fs.createdAt)
	switch {
	case elapsed >= p.window && p.payDelay >= p.window:
		s.Status = domain.StatusExpired
	case elapsed >= p.payDelay:
		s.Status = domain.StatusPaid
	default:
		s.Status = domain.StatusPending
	}
	return &s, nil
}

// fakePixCode builds a syntactically plausible PIX copy-paste payload.
func fakePixCode(id string, amount int64) string {
	value := strconv.FormatFloat(float64(amount)/100, 'f', 2, 64)
	return fmt.Sprintf("00020126580014br.gov.bcb.pix0136%s520400005303986540%d%s5802BR5909DrinkPass6009Sao Paulo62070503***6304ABCD",
		id, len(value), value)
}
