package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/service"
)

// ============================================================
// Restaurants — GET /v1/restaurants
// ============================================================

func listRestaurantsHandler(svc *service.RestaurantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/restaurants")
		defer span.End()

		restaurants, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"restaurants": restaurants,
			"count":       len(restaurants),
		})
	}
}

// ============================================================
// Restaurant detail — GET /v1/restaurants/{restaurantId}
// ============================================================

func getRestaurantHandler(svc *service.RestaurantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/restaurants/{restaurantId}")
		defer span.End()

		id, err := strconv.ParseInt(chi.URLParam(r, "restaurantId"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "restaurant id must be numeric")
			return
		}
		span.SetAttributes(attribute.Int64("restaurant.id", id))

		restaurant, err := svc.Get(ctx, id)
		if err != nil {
			var notFound *domain.ErrNotFound
			if errors.As(err, &notFound) {
				// Unknown ids get a navigable payload so the frontend can
				// render its not-found view with a way back to the list.
				writeJSON(w, http.StatusNotFound, map[string]string{
					"error": err.Error(),
					"back":  "/restaurants",
				})
				return
			}
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, restaurant)
	}
}
