// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/drinkpass/drinkpass-api/internal/domain"
)

// PaymentProvider is the single capability set every payment backend must
// offer: create a billing session and read its status. One implementation
// is selected by configuration; callers never branch on the concrete type.
type PaymentProvider interface {
	// Name identifies the provider in logs and error payloads.
	Name() string

	// CreateSession serializes the order into the provider's request shape,
	// issues one network call and returns a pending session. Non-2xx maps
	// to *domain.ErrProvider. No retries beyond the shared resilience layer.
	CreateSession(ctx context.Context, order *domain.PaymentOrder) (*domain.BillingSession, error)

	// GetStatus issues one GET and maps the provider's status vocabulary
	// onto {pending, paid, expired, failed}.
	GetStatus(ctx context.Context, sessionID string) (*domain.BillingSession, error)
}

// RestaurantStore defines the read/write operations on the hosted
// restaurants table. Implemented by the Supabase adapter.
type RestaurantStore interface {
	ListRestaurants(ctx context.Context) ([]domain.Restaurant, error)
	GetRestaurant(ctx context.Context, id int64) (*domain.Restaurant, error)
	InsertRestaurant(ctx context.Context, r *domain.Restaurant) (*domain.Restaurant, error)
	UpdateRestaurant(ctx context.Context, id int64, r *domain.Restaurant) (*domain.Restaurant, error)
}

// LogoStore uploads logo objects and resolves fetchable URLs for them.
type LogoStore interface {
	// UploadObject stores data under path in the logo bucket. It never
	// overwrites an existing object.
	UploadObject(ctx context.Context, path, contentType string, data []byte) error

	// CreateSignedURL returns a time-limited authenticated URL for path.
	CreateSignedURL(ctx context.Context, path string, expiresInSeconds int) (string, error)

	// PublicURL returns the public URL for path. Local computation only.
	PublicURL(path string) string
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
