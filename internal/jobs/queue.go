// Package jobs implements the asynchronous job fabric: durable,
// per-queue worker pools with retry/backoff, rate caps, timeouts, a
// dead-letter sink, and a synchronous in-memory fallback for when no
// broker is configured.
package jobs

import "time"

// QueueName identifies one of the fixed queues.
type QueueName string

const (
	QueueOrderProcessing  QueueName = "order-processing"
	QueueWhatsAppMessages QueueName = "whatsapp-messages"
	QueueImageProcessing  QueueName = "image-processing"
	QueueCreditScore      QueueName = "credit-score"
	QueueOrderRouting     QueueName = "order-routing"
	QueuePaymentReminders QueueName = "payment-reminders"
	QueueReportGeneration QueueName = "report-generation"
)

// QueueConfig is one queue's retry/backoff/concurrency envelope.
type QueueConfig struct {
	Name        QueueName
	Concurrency int
	MaxAttempts int
	BackoffBase time.Duration
	RateLimit   *RateLimit // nil => no cap
	Timeout     time.Duration
}

// RateLimit caps how many jobs a queue's workers take per the configured
// window (e.g. 100/min, 50/s); Submit itself is never capped.
type RateLimit struct {
	Count  int
	Window time.Duration
}

// DefaultQueues returns the standard queue set. Callers may override via
// config, but every queue named here must be present.
func DefaultQueues() map[QueueName]QueueConfig {
	return map[QueueName]QueueConfig{
		QueueOrderProcessing: {
			Name: QueueOrderProcessing, Concurrency: 5, MaxAttempts: 3,
			BackoffBase: 5 * time.Second, RateLimit: &RateLimit{Count: 100, Window: time.Minute},
			Timeout: 120 * time.Second,
		},
		QueueWhatsAppMessages: {
			Name: QueueWhatsAppMessages, Concurrency: 10, MaxAttempts: 5,
			BackoffBase: 5 * time.Second, RateLimit: &RateLimit{Count: 50, Window: time.Second},
			Timeout: 30 * time.Second,
		},
		QueueImageProcessing: {
			Name: QueueImageProcessing, Concurrency: 2, MaxAttempts: 3,
			BackoffBase: 5 * time.Second, Timeout: 5 * time.Minute,
		},
		QueueCreditScore: {
			Name: QueueCreditScore, Concurrency: 3, MaxAttempts: 3,
			BackoffBase: 5 * time.Second, Timeout: 90 * time.Second,
		},
		QueueOrderRouting: {
			Name: QueueOrderRouting, Concurrency: 3, MaxAttempts: 3,
			BackoffBase: 5 * time.Second, Timeout: 60 * time.Second,
		},
		QueuePaymentReminders: {
			Name: QueuePaymentReminders, Concurrency: 5, MaxAttempts: 3,
			BackoffBase: 5 * time.Second, Timeout: 30 * time.Second,
		},
		QueueReportGeneration: {
			Name: QueueReportGeneration, Concurrency: 1, MaxAttempts: 3,
			BackoffBase: 5 * time.Second, Timeout: 10 * time.Minute,
		},
	}
}

// Job is one unit of asynchronous work.
type Job struct {
	ID           string                 `json:"id"`
	Queue        QueueName              `json:"queue"`
	Payload      map[string]interface{} `json:"payload"`
	Attempt      int                    `json:"attempt"`
	EnqueuedAt   time.Time              `json:"enqueued_at"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// Backoff computes delay_n = base * 2^(n-1), capped at the queue's
// configured timeout between attempts.
func Backoff(base time.Duration, attempt int, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if cap > 0 && delay >= cap {
			return cap
		}
	}
	if cap > 0 && delay > cap {
		return cap
	}
	return delay
}
