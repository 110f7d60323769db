// Package providers implements the outbound adapters: OCR, LLM,
// WhatsApp send, and object storage. Every adapter wraps a resty client in
// a gobreaker circuit breaker, so a flaky upstream
// degrades the parser's tiered fallback instead of hanging a request
// thread.
package providers

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/metrics"
)

// BreakerConfig tunes one adapter's circuit breaker.
type BreakerConfig struct {
	Name                string
	MaxRequestsHalfOpen uint32
	OpenTimeout         time.Duration
	ConsecutiveFailures uint32
}

func defaultBreaker(cfg BreakerConfig, log *logging.Logger) *gobreaker.CircuitBreaker {
	if cfg.MaxRequestsHalfOpen == 0 {
		cfg.MaxRequestsHalfOpen = 3
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequestsHalfOpen,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(metrics.BreakerStateValue(to.String()))
			log.Warn("circuit breaker state changed", zap.String("provider", name),
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// newClient builds a resty client with the given base URL and timeout,
// the shared HTTP transport every adapter in this package uses.
func newClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().SetBaseURL(baseURL).SetTimeout(timeout).SetHeader("Accept", "application/json")
}
