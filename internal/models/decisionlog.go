package models

import "time"

// VendorDecisionLog is an immutable record of one vendor-selection
// decision: which vendors were eligible, how each scored, and which was
// chosen. DecisionLogStore.ExplainDecision reads it back for replay.
type VendorDecisionLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	DecisionID      string    `gorm:"uniqueIndex;size:36" json:"decision_id"`
	OrderID         string    `gorm:"index;size:36" json:"order_id"`
	EligibleVendors string    `gorm:"type:text" json:"eligible_vendors"` // JSON-encoded []vendorselect.ScoredCandidate
	ChosenVendorID  string    `gorm:"size:36" json:"chosen_vendor_id"`
	Strategy        string    `gorm:"size:30" json:"strategy"` // round-robin, least-loaded
	FilterTrace     string    `gorm:"type:text" json:"filter_trace"` // JSON-encoded per-stage counts
	CreatedAt       time.Time `json:"created_at"`
}

func (VendorDecisionLog) TableName() string { return "vendor_decision_logs" }
