package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/mandiflow/core/internal/logging"
)

// SignedURLTTL is the upper bound for a private read URL.
const SignedURLTTL = time.Hour

// ObjectStore requests signed URLs from the object-storage provider for
// uploaded order images.
type ObjectStore struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

func NewObjectStore(baseURL string, timeout time.Duration, log *logging.Logger) *ObjectStore {
	return &ObjectStore{
		http:    newClient(baseURL, timeout),
		breaker: defaultBreaker(BreakerConfig{Name: "object-store"}, log),
	}
}

type signedUploadResponse struct {
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"object_key"`
}

// SignedUploadURL requests a one-time upload URL for a new order image.
func (s *ObjectStore) SignedUploadURL(ctx context.Context, uploadedOrderID string) (uploadURL, objectKey string, err error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		var out signedUploadResponse
		resp, reqErr := s.http.R().SetContext(ctx).
			SetBody(map[string]string{"uploaded_order_id": uploadedOrderID}).
			SetResult(&out).
			Post("/v1/signed-upload")
		if reqErr != nil {
			return nil, fmt.Errorf("signed upload request failed: %w", reqErr)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("object store returned %d", resp.StatusCode())
		}
		return out, nil
	})
	if err != nil {
		return "", "", err
	}
	r := result.(signedUploadResponse)
	return r.UploadURL, r.ObjectKey, nil
}

type signedReadResponse struct {
	ReadURL   string `json:"read_url"`
	ExpiresAt string `json:"expires_at"`
}

// SignedReadURL requests a private read URL for objectKey, capped at
// SignedURLTTL.
func (s *ObjectStore) SignedReadURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	if ttl <= 0 || ttl > SignedURLTTL {
		ttl = SignedURLTTL
	}
	result, err := s.breaker.Execute(func() (interface{}, error) {
		var out signedReadResponse
		resp, reqErr := s.http.R().SetContext(ctx).
			SetBody(map[string]interface{}{"object_key": objectKey, "ttl_seconds": int(ttl.Seconds())}).
			SetResult(&out).
			Post("/v1/signed-read")
		if reqErr != nil {
			return nil, fmt.Errorf("signed read request failed: %w", reqErr)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("object store returned %d", resp.StatusCode())
		}
		return out.ReadURL, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
