package models

import "time"

// IdempotencyKeyStatus tracks the lifecycle of a deduplicated request.
type IdempotencyKeyStatus string

const (
	IdempotencyStatusProcessing IdempotencyKeyStatus = "PROCESSING"
	IdempotencyStatusCompleted  IdempotencyKeyStatus = "COMPLETED"
	IdempotencyStatusFailed     IdempotencyKeyStatus = "FAILED"
)

// IdempotencyKey records the first request seen for a given client-supplied
// key and replays its recorded response on duplicate submission within the
// 24h window.
type IdempotencyKey struct {
	ID              uint                 `gorm:"primaryKey" json:"id"`
	Key             string               `gorm:"uniqueIndex;size:128" json:"key"`
	OperationType   string               `gorm:"size:50" json:"operation_type"`
	RequestHash     string               `gorm:"size:64" json:"request_hash"`
	ResponsePayload string               `gorm:"type:text" json:"response_payload,omitempty"`
	Status          IdempotencyKeyStatus `gorm:"size:20" json:"status"`
	CreatedAt       time.Time            `json:"created_at"`
	ExpiresAt       time.Time            `json:"expires_at"`
}

func (IdempotencyKey) TableName() string { return "idempotency_keys" }

// Expired reports whether this key has passed its 24h TTL and should no
// longer be honored for replay.
func (k *IdempotencyKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
