package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/mandiflow/core/internal/logging"
)

// OCRClient extracts raw text from an uploaded order image.
type OCRClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

func NewOCRClient(baseURL string, timeout time.Duration, log *logging.Logger) *OCRClient {
	return &OCRClient{
		http:    newClient(baseURL, timeout),
		breaker: defaultBreaker(BreakerConfig{Name: "ocr-provider"}, log),
	}
}

type ocrRequest struct {
	ImageURL string `json:"image_url"`
}

type ocrResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ExtractText calls the OCR provider for imageURL, tripping the circuit
// breaker on repeated failure so subsequent calls fail fast instead of
// blocking the parser's tiered fallback.
func (c *OCRClient) ExtractText(ctx context.Context, imageURL string) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var out ocrResponse
		resp, err := c.http.R().SetContext(ctx).
			SetBody(ocrRequest{ImageURL: imageURL}).
			SetResult(&out).
			Post("/v1/extract")
		if err != nil {
			return nil, fmt.Errorf("ocr request failed: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("ocr provider returned %d", resp.StatusCode())
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return result.(ocrResponse).Text, nil
}
