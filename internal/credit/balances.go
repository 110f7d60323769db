package credit

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/models"
)

// LatestVendorBalance returns the most recent non-reversed running_balance
// for the (retailer, vendor) pair, or zero if the pair has no entries yet.
// The latest row per pair is the authoritative balance; no SUM on the hot
// path.
func LatestVendorBalance(tx *gorm.DB, retailerID, vendorID string) (decimal.Decimal, error) {
	var entry models.CreditLedgerEntry
	err := tx.Where("retailer_id = ? AND vendor_id = ? AND is_reversed = ?", retailerID, vendorID, false).
		Order("created_at DESC").First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load latest ledger balance for (%s, %s): %w", retailerID, vendorID, err)
	}
	return entry.RunningBalance, nil
}

// OutstandingDebt derives the retailer's scalar outstanding_debt as the
// sum of the authoritative per-vendor balances. The per-pair ledger rows
// own balance truth; the retailer column is this cross-vendor sum and is
// only ever rewritten from it.
func OutstandingDebt(tx *gorm.DB, retailerID string) (decimal.Decimal, error) {
	var vendorIDs []string
	if err := tx.Model(&models.CreditLedgerEntry{}).
		Where("retailer_id = ? AND is_reversed = ?", retailerID, false).
		Distinct("vendor_id").Pluck("vendor_id", &vendorIDs).Error; err != nil {
		return decimal.Zero, fmt.Errorf("load ledger vendors for %s: %w", retailerID, err)
	}

	total := decimal.Zero
	for _, vendorID := range vendorIDs {
		balance, err := LatestVendorBalance(tx, retailerID, vendorID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(balance)
	}
	return total, nil
}
