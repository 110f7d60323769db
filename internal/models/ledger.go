package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates the immutable ledger entry kinds. The ledger
// is append-only: corrections are made by inserting a compensating entry,
// never by updating or deleting an existing row.
type TransactionType string

// ORDER_CREDIT and ADJUSTMENT_CREDIT raise outstanding debt;
// PAYMENT_DEBIT and ADJUSTMENT_DEBIT lower it. A reversal is written as
// the adjustment type that undoes the original's effect, carrying
// reversal_of_entry_id.
const (
	TransactionOrderCredit      TransactionType = "ORDER_CREDIT"
	TransactionPaymentDebit     TransactionType = "PAYMENT_DEBIT"
	TransactionAdjustmentCredit TransactionType = "ADJUSTMENT_CREDIT"
	TransactionAdjustmentDebit  TransactionType = "ADJUSTMENT_DEBIT"
)

// CreditLedgerEntry is one immutable line in a retailer's credit ledger.
// RunningBalance is the (retailer, vendor) pair's balance immediately after
// this entry was appended, so a statement can be replayed without
// recomputation; the retailer's outstanding_debt is the sum of these
// balances across vendors.
type CreditLedgerEntry struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	EntryID         string          `gorm:"uniqueIndex;size:36" json:"entry_id"`
	RetailerID      string          `gorm:"index;size:36" json:"retailer_id"`
	VendorID        string          `gorm:"index;size:36" json:"vendor_id,omitempty"`
	OrderID         string          `gorm:"index;size:36" json:"order_id,omitempty"`
	TransactionType TransactionType `gorm:"size:20" json:"transaction_type"`
	Amount          decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount"`
	PreviousBalance decimal.Decimal `gorm:"type:decimal(14,2)" json:"previous_balance"`
	RunningBalance  decimal.Decimal `gorm:"type:decimal(14,2)" json:"running_balance"`
	IsReversed      bool            `json:"is_reversed"`
	ReversalOfEntryID *string       `gorm:"size:36" json:"reversal_of_entry_id,omitempty"`
	Description     string          `gorm:"size:500" json:"description,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (CreditLedgerEntry) TableName() string { return "credit_ledger_entries" }
