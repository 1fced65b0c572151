package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/infra/resilience"
)

// --- Restaurants API (implements port.RestaurantStore) ---

// supabaseRestaurant maps restaurant table columns to our domain.
type supabaseRestaurant struct {
	ID           int64                             `json:"id,omitempty"`
	Name         string                            `json:"name"`
	Location     string                            `json:"location"`
	Cuisine      string                            `json:"cuisine"`
	Address      string                            `json:"address"`
	Phone        string                            `json:"phone"`
	Description  string                            `json:"description"`
	Promotion    string                            `json:"promotion"`
	Availability map[string]domain.DayAvailability `json:"availability"`
	Features     []string                          `json:"features"`
	LogoURL      string                            `json:"logo_url,omitempty"`
}

func toDomainRestaurant(r supabaseRestaurant) domain.Restaurant {
	return domain.Restaurant{
		ID:           r.ID,
		Name:         r.Name,
		Location:     r.Location,
		Cuisine:      r.Cuisine,
		Address:      r.Address,
		Phone:        r.Phone,
		Description:  r.Description,
		Promotion:    r.Promotion,
		Availability: r.Availability,
		Features:     r.Features,
		LogoURL:      r.LogoURL,
	}
}

func fromDomainRestaurant(r *domain.Restaurant) supabaseRestaurant {
	return supabaseRestaurant{
		Name:         r.Name,
		Location:     r.Location,
		Cuisine:      r.Cuisine,
		Address:      r.Address,
		Phone:        r.Phone,
		Description:  r.Description,
		Promotion:    r.Promotion,
		Availability: r.Availability,
		Features:     r.Features,
		LogoURL:      r.LogoURL,
	}
}

// ListRestaurants fetches all hosted restaurants ordered by name.
func (c *Client) ListRestaurants(ctx context.Context) ([]domain.Restaurant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRestaurants")
	defer span.End()

	var restaurants []domain.Restaurant

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, "restaurants?order=name.asc")
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				restaurants = []domain.Restaurant{}
				return nil
			}

			var rows []supabaseRestaurant
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode restaurants: %w", err)
			}

			restaurants = make([]domain.Restaurant, 0, len(rows))
			for _, r := range rows {
				restaurants = append(restaurants, toDomainRestaurant(r))
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/restaurants", Err: err}
	}

	return restaurants, nil
}

// GetRestaurant fetches a single restaurant by id.
func (c *Client) GetRestaurant(ctx context.Context, id int64) (*domain.Restaurant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRestaurant")
	defer span.End()
	span.SetAttributes(attribute.Int64("restaurant.id", id))

	var restaurant *domain.Restaurant

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("restaurants?id=eq.%d&limit=1", id)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "restaurant", ID: strconv.FormatInt(id, 10)}
			}

			var rows []supabaseRestaurant
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode restaurant: %w", err)
			}

			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "restaurant", ID: strconv.FormatInt(id, 10)}
			}

			r := toDomainRestaurant(rows[0])
			restaurant = &r
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if ok := asNotFound(err, &notFound); ok {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/restaurants", Err: err}
	}

	return restaurant, nil
}

// InsertRestaurant creates a restaurant row and returns the stored record.
func (c *Client) InsertRestaurant(ctx context.Context, r *domain.Restaurant) (*domain.Restaurant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertRestaurant")
	defer span.End()

	var created *domain.Restaurant

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doPost(ctx, "restaurants", fromDomainRestaurant(r))
			if err != nil {
				return err
			}

			var rows []supabaseRestaurant
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode created restaurant: %w", err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("supabase returned empty representation")
			}

			row := toDomainRestaurant(rows[0])
			created = &row
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrStore{Op: "insert restaurant", Err: err}
	}

	return created, nil
}

// UpdateRestaurant patches a restaurant row by id and returns the stored record.
func (c *Client) UpdateRestaurant(ctx context.Context, id int64, r *domain.Restaurant) (*domain.Restaurant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateRestaurant")
	defer span.End()
	span.SetAttributes(attribute.Int64("restaurant.id", id))

	var updated *domain.Restaurant

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("restaurants?id=eq.%d", id)
			body, err := c.doPatch(ctx, path, fromDomainRestaurant(r))
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "restaurant", ID: strconv.FormatInt(id, 10)}
			}

			var rows []supabaseRestaurant
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode updated restaurant: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "restaurant", ID: strconv.FormatInt(id, 10)}
			}

			row := toDomainRestaurant(rows[0])
			updated = &row
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if ok := asNotFound(err, &notFound); ok {
			return nil, notFound
		}
		return nil, &domain.ErrStore{Op: "update restaurant", Err: err}
	}

	return updated, nil
}
