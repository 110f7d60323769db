// Package ledger implements the append-only credit ledger: every
// correction is a compensating entry, never an UPDATE or DELETE.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/credit"
	"github.com/mandiflow/core/internal/models"
)

// Ledger provides the three append-only ledger operations.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// AppendOrderCredit appends an ORDER_CREDIT entry increasing the
// retailer's outstanding debt by amount. Used outside the atomic writer's
// own transaction (e.g. manual adjustments); the atomic writer inlines
// its own ledger insert because it already holds the retailer row lock.
func (l *Ledger) AppendOrderCredit(tx *gorm.DB, retailerID, vendorID string, amount decimal.Decimal, orderRef string) (*models.CreditLedgerEntry, error) {
	return l.append(tx, retailerID, vendorID, models.TransactionOrderCredit, amount, orderRef, "")
}

// AppendPaymentDebit appends a PAYMENT_DEBIT entry reducing outstanding
// debt by amount.
func (l *Ledger) AppendPaymentDebit(tx *gorm.DB, retailerID, vendorID string, amount decimal.Decimal, paymentRef string) (*models.CreditLedgerEntry, error) {
	return l.append(tx, retailerID, vendorID, models.TransactionPaymentDebit, amount.Neg(), "", "payment_ref="+paymentRef)
}

// AppendAdjustmentCredit appends an admin-initiated ADJUSTMENT_CREDIT
// raising outstanding debt by amount.
func (l *Ledger) AppendAdjustmentCredit(tx *gorm.DB, retailerID, vendorID string, amount decimal.Decimal, reason string) (*models.CreditLedgerEntry, error) {
	return l.append(tx, retailerID, vendorID, models.TransactionAdjustmentCredit, amount, "", reason)
}

// AppendAdjustmentDebit appends an admin-initiated ADJUSTMENT_DEBIT
// lowering outstanding debt by amount.
func (l *Ledger) AppendAdjustmentDebit(tx *gorm.DB, retailerID, vendorID string, amount decimal.Decimal, reason string) (*models.CreditLedgerEntry, error) {
	return l.append(tx, retailerID, vendorID, models.TransactionAdjustmentDebit, amount.Neg(), "", reason)
}

func (l *Ledger) append(tx *gorm.DB, retailerID, vendorID string, txType models.TransactionType, signedAmount decimal.Decimal, orderRef, description string) (*models.CreditLedgerEntry, error) {
	db := l.db
	if tx != nil {
		db = tx
	}

	// Each (retailer, vendor) pair carries its own authoritative running
	// balance; entries for other vendors never leak into this sequence.
	balance, err := credit.LatestVendorBalance(db, retailerID, vendorID)
	if err != nil {
		return nil, apperrors.NewTransient("LEDGER_BALANCE_LOOKUP_FAILED", "failed to load latest ledger balance", err)
	}

	entry := &models.CreditLedgerEntry{
		EntryID:         uuid.NewString(),
		RetailerID:      retailerID,
		VendorID:        vendorID,
		OrderID:         orderRef,
		TransactionType: txType,
		Amount:          signedAmount.Abs(),
		PreviousBalance: balance,
		RunningBalance:  balance.Add(signedAmount),
		Description:     description,
		CreatedAt:       time.Now(),
	}
	if err := db.Create(entry).Error; err != nil {
		return nil, apperrors.NewTransient("LEDGER_APPEND_FAILED", "failed to append ledger entry", err)
	}
	if err := syncRetailerDebt(db, retailerID); err != nil {
		return nil, err
	}
	return entry, nil
}

// syncRetailerDebt rewrites retailer.outstanding_debt as the sum of the
// per-vendor authoritative balances. The ledger-append path is the only
// mutator of that scalar; it is derived, never incremented in place.
func syncRetailerDebt(db *gorm.DB, retailerID string) error {
	debt, err := credit.OutstandingDebt(db, retailerID)
	if err != nil {
		return apperrors.NewTransient("LEDGER_DEBT_SUM_FAILED", "failed to derive outstanding debt", err)
	}
	if err := db.Model(&models.Retailer{}).Where("retailer_id = ?", retailerID).
		Updates(map[string]interface{}{"outstanding_debt": debt, "updated_at": time.Now()}).Error; err != nil {
		return apperrors.NewTransient("LEDGER_DEBT_SYNC_FAILED", "failed to update retailer outstanding debt", err)
	}
	return nil
}

// Reverse inserts a compensating entry for entryID and marks the original
// row is_reversed: reversal is the only correction mechanism. The
// compensating row is stored unreversed, so it carries the pair's running
// balance forward.
func (l *Ledger) Reverse(tx *gorm.DB, entryID, reason string) (*models.CreditLedgerEntry, error) {
	db := l.db
	if tx != nil {
		db = tx
	}

	var original models.CreditLedgerEntry
	if err := db.Where("entry_id = ?", entryID).First(&original).Error; err != nil {
		return nil, apperrors.NewValidation("LEDGER_ENTRY_NOT_FOUND", fmt.Sprintf("ledger entry %s not found", entryID))
	}
	if original.IsReversed {
		return nil, apperrors.NewConflict("LEDGER_ENTRY_ALREADY_REVERSED", fmt.Sprintf("ledger entry %s was already reversed", entryID))
	}

	balance, err := credit.LatestVendorBalance(db, original.RetailerID, original.VendorID)
	if err != nil {
		return nil, apperrors.NewTransient("LEDGER_BALANCE_LOOKUP_FAILED", "failed to load latest ledger balance", err)
	}

	// The compensating entry is the adjustment type that undoes the
	// original's net effect: reversing a credit-side entry lowers the
	// balance via ADJUSTMENT_DEBIT, reversing a debit-side entry restores
	// it via ADJUSTMENT_CREDIT.
	var compensating decimal.Decimal
	var reversalType models.TransactionType
	switch original.TransactionType {
	case models.TransactionPaymentDebit, models.TransactionAdjustmentDebit:
		compensating = original.Amount
		reversalType = models.TransactionAdjustmentCredit
	default:
		compensating = original.Amount.Neg()
		reversalType = models.TransactionAdjustmentDebit
	}

	reversal := &models.CreditLedgerEntry{
		EntryID:           uuid.NewString(),
		RetailerID:        original.RetailerID,
		VendorID:          original.VendorID,
		OrderID:           original.OrderID,
		TransactionType:   reversalType,
		Amount:            original.Amount,
		PreviousBalance:   balance,
		RunningBalance:    balance.Add(compensating),
		ReversalOfEntryID: &original.EntryID,
		Description:       reason,
		CreatedAt:         time.Now(),
	}
	if err := db.Create(reversal).Error; err != nil {
		return nil, apperrors.NewTransient("LEDGER_REVERSAL_INSERT_FAILED", "failed to insert reversal entry", err)
	}

	if err := db.Model(&models.CreditLedgerEntry{}).Where("entry_id = ?", original.EntryID).
		Update("is_reversed", true).Error; err != nil {
		return nil, apperrors.NewTransient("LEDGER_MARK_REVERSED_FAILED", "failed to mark original entry reversed", err)
	}
	reversal.IsReversed = true

	if err := syncRetailerDebt(db, original.RetailerID); err != nil {
		return nil, err
	}

	return reversal, nil
}

// OverdueLookup implements credit.OverdueLookup by deriving overdue state
// from ledger entries: a retailer is overdue-blocked when its oldest
// non-reversed ORDER_CREDIT entry older than OverdueBlockDays has no
// matching PAYMENT_DEBIT activity since.
func OverdueLookup(tx *gorm.DB, retailerID string, cfg credit.ValidatorConfig) (credit.OverdueInfo, error) {
	cutoff := time.Now().AddDate(0, 0, -cfg.OverdueBlockDays)

	var oldestUnpaidCredit models.CreditLedgerEntry
	err := tx.Where("retailer_id = ? AND transaction_type = ? AND is_reversed = ? AND created_at < ?",
		retailerID, models.TransactionOrderCredit, false, cutoff).
		Order("created_at ASC").First(&oldestUnpaidCredit).Error
	if err == gorm.ErrRecordNotFound {
		return credit.OverdueInfo{}, nil
	}
	if err != nil {
		return credit.OverdueInfo{}, fmt.Errorf("load oldest unpaid ledger entry: %w", err)
	}

	var debitsSince int64
	if err := tx.Model(&models.CreditLedgerEntry{}).
		Where("retailer_id = ? AND transaction_type = ? AND created_at >= ?",
			retailerID, models.TransactionPaymentDebit, oldestUnpaidCredit.CreatedAt).
		Count(&debitsSince).Error; err != nil {
		return credit.OverdueInfo{}, fmt.Errorf("count payment debits: %w", err)
	}

	days := int(time.Since(oldestUnpaidCredit.CreatedAt).Hours() / 24)
	return credit.OverdueInfo{
		HasOverdueBeyondThreshold: debitsSince == 0,
		OldestOverdueDays:         days,
	}, nil
}
