package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/drinkpass/drinkpass-api/internal/infra/resilience"
)

// Logo objects are immutable once uploaded, so they get a very long
// cache lifetime (5 years, matching the signed URL validity).
const logoCacheControlSeconds = 157680000

// Storage wraps the Supabase Storage object API for one bucket.
// Implements port.LogoStore.
type Storage struct {
	client *Client
	bucket string
}

// NewStorage creates a Storage adapter over an existing client.
func NewStorage(client *Client, bucket string) *Storage {
	return &Storage{client: client, bucket: bucket}
}

// UploadObject stores data under path in the bucket. Upsert is disabled so
// an existing object is never overwritten; upload paths carry a timestamp
// prefix to keep them unique.
func (s *Storage) UploadObject(ctx context.Context, path, contentType string, data []byte) error {
	ctx, span := tracer.Start(ctx, "Supabase.UploadObject")
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.bucket", s.bucket),
		attribute.String("storage.path", path),
	)

	c := s.client
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, s.bucket, path)
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
			if err != nil {
				return err
			}

			c.setAuthHeaders(req)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Cache-Control", fmt.Sprintf("max-age=%d", logoCacheControlSeconds))
			req.Header.Set("x-upsert", "false")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("supabase storage upload returned %d: %s", resp.StatusCode, string(body))
			}
			return nil
		})
	})

	if err != nil {
		return &domain.ErrStore{Op: "upload logo", Err: err}
	}
	return nil
}

// CreateSignedURL returns a time-limited authenticated URL for path.
func (s *Storage) CreateSignedURL(ctx context.Context, path string, expiresInSeconds int) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateSignedURL")
	defer span.End()
	span.SetAttributes(attribute.String("storage.path", path))

	c := s.client
	var signedURL string

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", c.baseURL, s.bucket, path)
			payload, err := json.Marshal(map[string]int{"expiresIn": expiresInSeconds})
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return err
			}

			c.setAuthHeaders(req)
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("supabase storage sign returned %d: %s", resp.StatusCode, string(body))
			}

			var out struct {
				SignedURL string `json:"signedURL"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return fmt.Errorf("failed to decode signed url: %w", err)
			}
			if out.SignedURL == "" {
				return fmt.Errorf("supabase storage sign returned empty url")
			}

			// The API returns a path relative to /storage/v1.
			signedURL = fmt.Sprintf("%s/storage/v1%s", c.baseURL, ensureLeadingSlash(out.SignedURL))
			return nil
		})
	})

	if err != nil {
		return "", &domain.ErrStore{Op: "sign logo url", Err: err}
	}
	return signedURL, nil
}

// PublicURL returns the public URL for path. Local computation only.
func (s *Storage) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.client.baseURL, s.bucket, path)
}

func ensureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
