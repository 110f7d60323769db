package models

import "time"

// RecoveryStatus tracks an order that failed partway through processing
// and needs re-drive instead of being marked FAILED.
type RecoveryStatus string

const (
	RecoveryStatusPending    RecoveryStatus = "PENDING"
	RecoveryStatusInProgress RecoveryStatus = "IN_PROGRESS"
	RecoveryStatusResolved   RecoveryStatus = "RESOLVED"
	RecoveryStatusExhausted  RecoveryStatus = "EXHAUSTED"
)

// OrderRecoveryState is created whenever an order's processing pipeline
// fails at a known step. FailurePoint names the step to resume from;
// attempts are capped and escalate to manual intervention once exhausted.
type OrderRecoveryState struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	RecoveryID    string         `gorm:"uniqueIndex;size:36" json:"recovery_id"`
	OrderID       string         `gorm:"index;size:36" json:"order_id"`
	FailurePoint  string         `gorm:"size:100" json:"failure_point"`
	RecoveryStatus RecoveryStatus `gorm:"size:20" json:"recovery_status"`
	Attempts      int            `json:"attempts"`
	MaxAttempts   int            `json:"max_attempts"`
	LastError     string         `gorm:"size:1000" json:"last_error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
}

func (OrderRecoveryState) TableName() string { return "order_recovery_states" }

// Exhausted reports whether this recovery record has used up its retry
// budget and must escalate to MANUAL_INTERVENTION.
func (s *OrderRecoveryState) Exhausted() bool {
	return s.Attempts >= s.MaxAttempts
}
