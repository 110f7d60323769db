package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RejectedReason enumerates why an order never made it past credit
// validation. Distinct from apperrors.CreditReason, which is the
// wire-level error taxonomy; this is the persisted record.
type RejectedReason string

const (
	RejectedCreditLimitExceeded RejectedReason = "CREDIT_LIMIT_EXCEEDED"
	RejectedOverdueBlock        RejectedReason = "OVERDUE_BLOCK"
	RejectedAccountInactive     RejectedReason = "ACCOUNT_INACTIVE"
	RejectedAccountNotApproved  RejectedReason = "ACCOUNT_NOT_APPROVED"
	RejectedHighRisk            RejectedReason = "HIGH_RISK_ACCOUNT"
)

// RejectedOrder is an audit record of an order attempt that failed credit
// validation, kept for retailer support and collections follow-up even
// though no Order or ledger entry was ever created.
type RejectedOrder struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	RejectedOrderID string          `gorm:"uniqueIndex;size:36" json:"rejected_order_id"`
	RetailerID      string          `gorm:"index;size:36" json:"retailer_id"`
	Reason          RejectedReason  `gorm:"size:30" json:"reason"`
	RequestedAmount decimal.Decimal `gorm:"type:decimal(14,2)" json:"requested_amount"`
	AvailableCredit decimal.Decimal `gorm:"type:decimal(14,2)" json:"available_credit"`
	Shortfall       decimal.Decimal `gorm:"type:decimal(14,2)" json:"shortfall"`
	RawInput        string          `gorm:"type:text" json:"raw_input,omitempty"`
	Reviewed        bool            `json:"reviewed"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (RejectedOrder) TableName() string { return "rejected_orders" }
