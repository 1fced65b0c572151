package handler

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/service"
)

// ============================================================
// Plans — GET /v1/plans
// ============================================================

func plansHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/plans")
		defer span.End()

		writeJSON(w, http.StatusOK, map[string]any{
			"plans": domain.Plans(),
		})
	}
}

// ============================================================
// Checkout — POST /v1/checkout
// ============================================================

type checkoutRequest struct {
	PlanID   string              `json:"plan_id"`
	Customer domain.CustomerData `json:"customer"`
}

func checkoutHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout")
		defer span.End()

		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.PlanID == "" {
			writeError(w, http.StatusBadRequest, "plan_id is required")
			return
		}
		span.SetAttributes(attribute.String("plan.id", req.PlanID))

		session, err := svc.StartCheckout(ctx, req.PlanID, &req.Customer)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, session)
	}
}
