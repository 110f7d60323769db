package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/mandiflow/core/internal/logging"
)

// WhatsAppRateLimit is the outbound sender ceiling: at most 50 msg/s,
// respecting the provider API quota.
const WhatsAppRateLimit = 50

// WhatsAppSender sends templated WhatsApp messages (confirmations,
// rejection explanations, vendor-timeout notices) and enforces the
// outbound rate cap locally so bursts never exceed the provider's quota.
type WhatsAppSender struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker

	mu              sync.Mutex
	sentThis        time.Time
	countThisSecond int
}

func NewWhatsAppSender(baseURL string, timeout time.Duration, log *logging.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		http:    newClient(baseURL, timeout),
		breaker: defaultBreaker(BreakerConfig{Name: "whatsapp-send"}, log),
	}
}

type whatsappSendRequest struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"variables"`
}

type whatsappSendResponse struct {
	MessageID string `json:"message_id"`
}

// Send transmits a templated message, blocking briefly if the local
// per-second quota is already spent this second rather than exceeding it.
func (s *WhatsAppSender) Send(ctx context.Context, to, template string, vars map[string]string) (string, error) {
	s.throttle()

	result, err := s.breaker.Execute(func() (interface{}, error) {
		var out whatsappSendResponse
		resp, err := s.http.R().SetContext(ctx).
			SetBody(whatsappSendRequest{To: to, Template: template, Vars: vars}).
			SetResult(&out).
			Post("/v1/messages")
		if err != nil {
			return nil, fmt.Errorf("whatsapp send failed: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("whatsapp provider returned %d", resp.StatusCode())
		}
		return out.MessageID, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *WhatsAppSender) throttle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Truncate(time.Second) != s.sentThis.Truncate(time.Second) {
		s.sentThis = now
		s.countThisSecond = 0
	}
	s.countThisSecond++
	if s.countThisSecond > WhatsAppRateLimit {
		time.Sleep(time.Until(now.Truncate(time.Second).Add(time.Second)))
	}
}
