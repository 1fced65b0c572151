package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/service"
)

// ============================================================
// Session status — GET /v1/checkout/sessions/{sessionId}
// ============================================================

// degradedSession is the poll response when the provider could not be
// reached: the last known session state plus a transient warning.
type degradedSession struct {
	*domain.BillingSession
	Warning string `json:"warning"`
}

// getSessionHandler refreshes and returns the session. Polling is
// best-effort: when the provider is unreachable the last-known state is
// served instead of an error, so the countdown keeps running client-side.
func getSessionHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/checkout/sessions/{sessionId}")
		defer span.End()

		sessionID := chi.URLParam(r, "sessionId")
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}
		span.SetAttributes(attribute.String("session.id", sessionID))

		session, err := svc.CheckStatus(ctx, sessionID)
		if err != nil {
			if session == nil {
				handleServiceError(w, err, logger)
				return
			}
			logger.Warn("session poll degraded to cached state",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			writeJSON(w, http.StatusOK, degradedSession{
				BillingSession: session,
				Warning:        "status check temporarily unavailable, showing last known state",
			})
			return
		}

		writeJSON(w, http.StatusOK, session)
	}
}

// ============================================================
// Manual confirmation — POST /v1/checkout/sessions/{sessionId}/confirm
// ============================================================

// confirmPaymentHandler is the user-triggered "I have paid" check. Unlike
// the poll endpoint it surfaces provider failures so the frontend can tell
// the user the confirmation did not go through.
func confirmPaymentHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/confirm")
		defer span.End()

		sessionID := chi.URLParam(r, "sessionId")
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}
		span.SetAttributes(attribute.String("session.id", sessionID))

		session, err := svc.CheckStatus(ctx, sessionID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, session)
	}
}

// ============================================================
// PIX QR code — GET /v1/checkout/sessions/{sessionId}/qrcode
// ============================================================

func qrcodeHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/checkout/sessions/{sessionId}/qrcode")
		defer span.End()

		sessionID := chi.URLParam(r, "sessionId")
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}
		span.SetAttributes(attribute.String("session.id", sessionID))

		png, err := svc.QRCodePNG(ctx, sessionID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	}
}

// ============================================================
// Receipt — GET /v1/checkout/sessions/{sessionId}/receipt
// ============================================================

func receiptHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/checkout/sessions/{sessionId}/receipt")
		defer span.End()

		sessionID := chi.URLParam(r, "sessionId")
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}
		span.SetAttributes(attribute.String("session.id", sessionID))

		receipt, err := svc.Receipt(ctx, sessionID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, receipt)
	}
}
