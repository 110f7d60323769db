package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/mandiflow/core/internal/logging"
)

// LLMItem is one item the LLM extracted from a prompt/image under the
// strict JSON schema the adapter contract requires.
type LLMItem struct {
	ProductText string  `json:"product_text"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Confidence  float64 `json:"confidence"`
}

// LLMClient calls the structured-extraction LLM provider.
type LLMClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

func NewLLMClient(baseURL string, timeout time.Duration, log *logging.Logger) *LLMClient {
	return &LLMClient{
		http:    newClient(baseURL, timeout),
		breaker: defaultBreaker(BreakerConfig{Name: "llm-provider", ConsecutiveFailures: 3}, log),
	}
}

type llmRequest struct {
	Prompt string `json:"prompt"`
	Schema string `json:"schema"`
}

type llmResponse struct {
	Items []LLMItem `json:"items"`
}

// ExtractItems sends prompt (and, for image-sourced orders, a reference to
// the uploaded image already embedded in the prompt by the caller) to the
// LLM provider and returns its structured items.
func (c *LLMClient) ExtractItems(ctx context.Context, prompt, jsonSchema string) ([]LLMItem, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var out llmResponse
		resp, err := c.http.R().SetContext(ctx).
			SetBody(llmRequest{Prompt: prompt, Schema: jsonSchema}).
			SetResult(&out).
			Post("/v1/extract-items")
		if err != nil {
			return nil, fmt.Errorf("llm request failed: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("llm provider returned %d", resp.StatusCode())
		}
		return out.Items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]LLMItem), nil
}

// ItemSchema is the strict JSON schema sent with every ExtractItems call.
const ItemSchema = `{
  "type": "object",
  "properties": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "product_text": {"type": "string"},
          "quantity": {"type": "number"},
          "unit": {"type": "string"},
          "confidence": {"type": "number"}
        },
        "required": ["product_text", "quantity", "unit"]
      }
    }
  },
  "required": ["items"]
}`
