package models

import "time"

// WebhookEventStatus tracks processing of an inbound webhook delivery
//.
type WebhookEventStatus string

const (
	WebhookStatusPending    WebhookEventStatus = "PENDING"
	WebhookStatusProcessing WebhookEventStatus = "PROCESSING"
	WebhookStatusCompleted  WebhookEventStatus = "COMPLETED"
	WebhookStatusFailed     WebhookEventStatus = "FAILED"
)

// WebhookEvent is persisted durably the instant a webhook arrives, before
// any business processing runs, so a crash between receipt and processing
// is recoverable by the self-heal worker.
type WebhookEvent struct {
	ID         uint               `gorm:"primaryKey" json:"id"`
	EventID    string             `gorm:"uniqueIndex;size:36" json:"event_id"`
	Source     string             `gorm:"size:30" json:"source"` // whatsapp, vendor-callback
	Payload    string             `gorm:"type:text" json:"payload"`
	Status     WebhookEventStatus `gorm:"size:20" json:"status"`
	RetryCount int                `json:"retry_count"`
	MaxRetries int                `json:"max_retries"`
	NextRetryAt *time.Time        `json:"next_retry_at,omitempty"`
	LastError  string             `gorm:"size:1000" json:"last_error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// IsStuck reports whether this event has been in PROCESSING longer than
// the given stuck threshold, making it eligible for self-heal re-pickup.
func (w *WebhookEvent) IsStuck(threshold time.Duration, now time.Time) bool {
	return w.Status == WebhookStatusProcessing && now.Sub(w.UpdatedAt) > threshold
}
