package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/service"
)

// Multipart parsing keeps at most 8MB in memory; the logo itself is
// validated against its own 5MB limit downstream.
const maxMultipartMemory = 8 << 20

// ============================================================
// Admin: create restaurant — POST /v1/admin/restaurants
// ============================================================

// Accepts either application/json (no logo) or multipart/form-data with a
// "restaurant" JSON field and an optional "logo" file field.
func createRestaurantHandler(svc *service.RestaurantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/restaurants")
		defer span.End()

		restaurant, logo, err := decodeRestaurantSubmission(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		created, err := svc.Create(ctx, restaurant, logo)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		span.SetAttributes(attribute.Int64("restaurant.id", created.ID))
		writeJSON(w, http.StatusCreated, created)
	}
}

// ============================================================
// Admin: update restaurant — PUT /v1/admin/restaurants/{restaurantId}
// ============================================================

func updateRestaurantHandler(svc *service.RestaurantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/restaurants/{restaurantId}")
		defer span.End()

		id, err := strconv.ParseInt(chi.URLParam(r, "restaurantId"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "restaurant id must be numeric")
			return
		}
		span.SetAttributes(attribute.Int64("restaurant.id", id))

		restaurant, logo, err := decodeRestaurantSubmission(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		updated, err := svc.Update(ctx, id, restaurant, logo)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, updated)
	}
}

// decodeRestaurantSubmission reads a restaurant payload plus optional logo
// from either a JSON or multipart request.
func decodeRestaurantSubmission(r *http.Request) (*domain.Restaurant, *domain.LogoUpload, error) {
	contentType := r.Header.Get("Content-Type")

	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var restaurant domain.Restaurant
		if err := json.NewDecoder(r.Body).Decode(&restaurant); err != nil {
			return nil, nil, &domain.ErrValidation{Field: "body", Message: "invalid request body"}
		}
		return &restaurant, nil, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, nil, &domain.ErrValidation{Field: "body", Message: "invalid multipart form"}
	}

	payload := r.FormValue("restaurant")
	if payload == "" {
		return nil, nil, &domain.ErrValidation{Field: "restaurant", Message: "restaurant field is required"}
	}

	var restaurant domain.Restaurant
	if err := json.Unmarshal([]byte(payload), &restaurant); err != nil {
		return nil, nil, &domain.ErrValidation{Field: "restaurant", Message: "invalid restaurant payload"}
	}

	file, header, err := r.FormFile("logo")
	if err == http.ErrMissingFile {
		return &restaurant, nil, nil
	}
	if err != nil {
		return nil, nil, &domain.ErrValidation{Field: "logo", Message: "invalid logo upload"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, &domain.ErrValidation{Field: "logo", Message: "failed to read logo"}
	}

	return &restaurant, &domain.LogoUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
