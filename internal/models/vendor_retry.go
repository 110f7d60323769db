package models

import "time"

// VendorAssignmentStatus tracks one attempted vendor assignment for an
// order within the reassignment loop.
type VendorAssignmentStatus string

const (
	AssignmentAwaitingResponse VendorAssignmentStatus = "AWAITING_RESPONSE"
	AssignmentAccepted         VendorAssignmentStatus = "ACCEPTED"
	AssignmentTimedOut         VendorAssignmentStatus = "TIMED_OUT"
	AssignmentRejected         VendorAssignmentStatus = "REJECTED"
)

// VendorAssignmentRetry records a single vendor-assignment attempt for an
// order. Attempts are capped at MaxVendorAttempts (default 5); beyond that
// the order escalates to manual routing while remaining PENDING.
type VendorAssignmentRetry struct {
	ID              uint                    `gorm:"primaryKey" json:"id"`
	RetryID         string                  `gorm:"uniqueIndex;size:36" json:"retry_id"`
	OrderID         string                  `gorm:"index;size:36" json:"order_id"`
	VendorID        string                  `gorm:"index;size:36" json:"vendor_id"`
	AttemptNumber   int                     `json:"attempt_number"`
	Status          VendorAssignmentStatus  `gorm:"size:30" json:"status"`
	ResponseDeadline time.Time              `json:"response_deadline"`
	NextRetryAt     *time.Time              `json:"next_retry_at,omitempty"`
	FailureReason   string                  `gorm:"size:500" json:"failure_reason,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

func (VendorAssignmentRetry) TableName() string { return "vendor_assignment_retries" }

// Expired reports whether the vendor failed to respond within its
// response deadline.
func (r *VendorAssignmentRetry) Expired(now time.Time) bool {
	return r.Status == AssignmentAwaitingResponse && now.After(r.ResponseDeadline)
}
