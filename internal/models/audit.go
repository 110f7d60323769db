package models

import "time"

// AuditLogEntry is a generic before/after audit trail for sensitive
// mutations outside the order/ledger write path (retailer approval,
// vendor capacity overrides, manual recovery intervention).
type AuditLogEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuditID   string    `gorm:"uniqueIndex;size:36" json:"audit_id"`
	Action    string    `gorm:"size:100" json:"action"`
	Resource  string    `gorm:"size:100" json:"resource"`
	ResourceID string   `gorm:"size:36;index" json:"resource_id"`
	Actor     string    `gorm:"size:100" json:"actor"`
	Before    string    `gorm:"type:text" json:"before,omitempty"`
	After     string    `gorm:"type:text" json:"after,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (AuditLogEntry) TableName() string { return "audit_log_entries" }
