package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Retailer is the buyer side of the marketplace.
type Retailer struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	RetailerID        string          `gorm:"uniqueIndex;size:36" json:"retailer_id"`
	Name              string          `gorm:"size:200" json:"name"`
	Phone             string          `gorm:"size:20" json:"phone"`
	District          string          `gorm:"size:100" json:"district"`
	DeliveryZone      string          `gorm:"size:100" json:"delivery_zone"`
	CreditLimit       decimal.Decimal `gorm:"type:decimal(14,2)" json:"credit_limit"`
	OutstandingDebt   decimal.Decimal `gorm:"type:decimal(14,2)" json:"outstanding_debt"`
	RiskScore         float64         `json:"risk_score"`
	IsApproved        bool            `json:"is_approved"`
	IsActive          bool            `json:"is_active"`
	WorkingHoursStart int             `json:"working_hours_start"` // hour of day, 0-23
	WorkingHoursEnd   int             `json:"working_hours_end"`
	TimeZone          string          `gorm:"size:64" json:"timezone"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// AvailableCredit is the derived invariant: credit_limit - outstanding_debt.
// It is never persisted independently, and callers must never let
// OutstandingDebt exceed CreditLimit — that would violate the
// available_credit + outstanding_debt = credit_limit invariant.
func (r *Retailer) AvailableCredit() decimal.Decimal {
	return r.CreditLimit.Sub(r.OutstandingDebt)
}

func (Retailer) TableName() string { return "retailers" }
