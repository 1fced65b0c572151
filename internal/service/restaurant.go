package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/infra/observability"
	"github.com/drinkpass/drinkpass-api/internal/infra/resilience"
	"github.com/drinkpass/drinkpass-api/internal/port"
)

const (
	maxLogoBytes = 5 * 1024 * 1024

	// Signed logo URLs stay valid for 5 years.
	logoSignedURLSeconds = 157680000

	restaurantListKey = "all"
)

var allowedLogoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// RestaurantService serves the partner restaurant catalog and handles
// admin-side registration, including logo uploads to object storage.
type RestaurantService struct {
	store   port.RestaurantStore
	logos   port.LogoStore
	cache   port.Cache[[]domain.Restaurant]
	uploads *resilience.Bulkhead
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewRestaurantService creates a RestaurantService. uploads bounds how many
// logo uploads run concurrently.
func NewRestaurantService(store port.RestaurantStore, logos port.LogoStore, cache port.Cache[[]domain.Restaurant], uploads *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *RestaurantService {
	return &RestaurantService{
		store:   store,
		logos:   logos,
		cache:   cache,
		uploads: uploads,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// List returns the restaurant catalog, served from cache when fresh.
func (s *RestaurantService) List(ctx context.Context) ([]domain.Restaurant, error) {
	ctx, span := tracer.Start(ctx, "RestaurantService.List")
	defer span.End()

	if cached, ok := s.cache.Get(restaurantListKey); ok {
		s.metrics.IncrCacheHit("restaurants")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("restaurants")

	restaurants, err := s.store.ListRestaurants(ctx)
	if err != nil {
		return nil, err
	}

	for i := range restaurants {
		restaurants[i].LogoURL = s.ResolveLogoURL(ctx, restaurants[i].LogoURL)
	}

	s.cache.Set(restaurantListKey, restaurants)
	return restaurants, nil
}

// Get returns one restaurant by id.
func (s *RestaurantService) Get(ctx context.Context, id int64) (*domain.Restaurant, error) {
	ctx, span := tracer.Start(ctx, "RestaurantService.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("restaurant.id", id))

	restaurant, err := s.store.GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}

	restaurant.LogoURL = s.ResolveLogoURL(ctx, restaurant.LogoURL)
	return restaurant, nil
}

// ResolveLogoURL turns a stored logo reference into a fetchable URL.
// Absolute URLs pass through unchanged, so resolving twice is a no-op.
// Bare storage paths resolve to a long-lived signed URL, falling back to
// the public bucket URL when signing fails.
func (s *RestaurantService) ResolveLogoURL(ctx context.Context, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	url, err := s.logos.CreateSignedURL(ctx, ref, logoSignedURLSeconds)
	if err != nil {
		s.logger.Warn("logo url: signing failed, using public url",
			zap.String("path", ref),
			zap.Error(err),
		)
		return s.logos.PublicURL(ref)
	}
	return url
}

// Create validates and stores a new restaurant, uploading its logo first
// when one is attached. The catalog cache is invalidated on success.
func (s *RestaurantService) Create(ctx context.Context, r *domain.Restaurant, logo *domain.LogoUpload) (*domain.Restaurant, error) {
	ctx, span := tracer.Start(ctx, "RestaurantService.Create")
	defer span.End()

	if err := validateRestaurant(r); err != nil {
		return nil, err
	}

	if logo != nil {
		url, err := s.uploadLogo(ctx, logo)
		if err != nil {
			return nil, err
		}
		r.LogoURL = url
	}

	created, err := s.store.InsertRestaurant(ctx, r)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(restaurantListKey)
	s.logger.Info("restaurant created",
		zap.Int64("restaurant_id", created.ID),
		zap.String("name", created.Name),
	)
	return created, nil
}

// Update stores changes to an existing restaurant. A new logo replaces the
// stored URL; a nil logo leaves it untouched.
func (s *RestaurantService) Update(ctx context.Context, id int64, r *domain.Restaurant, logo *domain.LogoUpload) (*domain.Restaurant, error) {
	ctx, span := tracer.Start(ctx, "RestaurantService.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("restaurant.id", id))

	if err := validateRestaurant(r); err != nil {
		return nil, err
	}

	if logo != nil {
		url, err := s.uploadLogo(ctx, logo)
		if err != nil {
			return nil, err
		}
		r.LogoURL = url
	}

	updated, err := s.store.UpdateRestaurant(ctx, id, r)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(restaurantListKey)
	s.logger.Info("restaurant updated", zap.Int64("restaurant_id", id))
	return updated, nil
}

// uploadLogo validates the file, stores it under a unique name and resolves
// a long-lived URL for it. Falls back to the public bucket URL when signing
// fails.
func (s *RestaurantService) uploadLogo(ctx context.Context, logo *domain.LogoUpload) (string, error) {
	if len(logo.Data) > maxLogoBytes {
		return "", &domain.ErrValidation{Field: "logo", Message: "logo must be 5MB or smaller"}
	}
	if !allowedLogoTypes[logo.ContentType] {
		return "", &domain.ErrValidation{Field: "logo", Message: "logo must be a JPEG, PNG, WebP or GIF image"}
	}

	if err := s.uploads.Acquire(ctx); err != nil {
		return "", &domain.ErrTimeout{Operation: "logo upload"}
	}
	defer s.uploads.Release()

	path := fmt.Sprintf("%d_%s", s.now().UnixMilli(), SanitizeFileName(logo.FileName))

	if err := s.logos.UploadObject(ctx, path, logo.ContentType, logo.Data); err != nil {
		return "", err
	}

	return s.ResolveLogoURL(ctx, path), nil
}

func validateRestaurant(r *domain.Restaurant) error {
	if strings.TrimSpace(r.Name) == "" {
		return &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(r.Location) == "" {
		return &domain.ErrValidation{Field: "location", Message: "location is required"}
	}
	return nil
}

var (
	whitespaceRe       = regexp.MustCompile(`\s+`)
	disallowedRe       = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	repeatedUnderscore = regexp.MustCompile(`_{2,}`)
	repeatedHyphen     = regexp.MustCompile(`-{2,}`)
	accentStripper     = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// SanitizeFileName makes an uploaded file name safe for object storage:
// accents are stripped, whitespace becomes underscores and anything outside
// [a-zA-Z0-9._-] is dropped. Runs of underscores or hyphens collapse to one.
func SanitizeFileName(name string) string {
	stripped, _, err := transform.String(accentStripper, name)
	if err != nil {
		stripped = name
	}

	stripped = whitespaceRe.ReplaceAllString(stripped, "_")
	stripped = disallowedRe.ReplaceAllString(stripped, "")
	stripped = repeatedUnderscore.ReplaceAllString(stripped, "_")
	stripped = repeatedHyphen.ReplaceAllString(stripped, "-")

	if stripped == "" {
		return "file"
	}
	return stripped
}
