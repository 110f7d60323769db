package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mandiflow/core/internal/credit"
	"github.com/mandiflow/core/internal/database"
	"github.com/mandiflow/core/internal/models"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := database.ConnectSQLite(":memory:", gormlogger.Default.LogMode(gormlogger.Silent))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	return New(db.DB)
}

func TestAppendOrderCredit_IncreasesRunningBalance(t *testing.T) {
	l := newTestLedger(t)

	e1, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(100), "o1")
	require.NoError(t, err)
	assert.True(t, e1.RunningBalance.Equal(decimal.NewFromInt(100)))

	e2, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(50), "o2")
	require.NoError(t, err)
	assert.True(t, e2.RunningBalance.Equal(decimal.NewFromInt(150)))

	// running_balance[i] - running_balance[i-1] == amount[i]
	assert.True(t, e2.RunningBalance.Sub(e1.RunningBalance).Equal(e2.Amount))
}

func TestAppendPaymentDebit_DecreasesRunningBalance(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(200), "o1")
	require.NoError(t, err)

	debit, err := l.AppendPaymentDebit(nil, "r1", "v1", decimal.NewFromInt(80), "p1")
	require.NoError(t, err)
	assert.True(t, debit.RunningBalance.Equal(decimal.NewFromInt(120)))
	// amount is always stored positive; sign is implied by transaction type.
	assert.True(t, debit.Amount.Equal(decimal.NewFromInt(80)))
}

func TestRunningBalance_IsScopedPerVendorPair(t *testing.T) {
	l := newTestLedger(t)

	// Interleave two vendors: each (retailer, vendor) pair must carry its
	// own running-balance sequence, not one rolling retailer-wide sum.
	v1a, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(1000), "o1")
	require.NoError(t, err)
	v2a, err := l.AppendOrderCredit(nil, "r1", "v2", decimal.NewFromInt(1000), "o2")
	require.NoError(t, err)
	v1b, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(500), "o3")
	require.NoError(t, err)

	assert.True(t, v1a.RunningBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, v2a.RunningBalance.Equal(decimal.NewFromInt(1000)), "v2's first entry starts its own sequence")
	assert.True(t, v1b.PreviousBalance.Equal(v1a.RunningBalance))
	assert.True(t, v1b.RunningBalance.Equal(decimal.NewFromInt(1500)))
	// running_balance[i] - running_balance[i-1] == amount[i] within the pair
	assert.True(t, v1b.RunningBalance.Sub(v1a.RunningBalance).Equal(v1b.Amount))
}

func TestAppend_SyncsRetailerDebtAcrossVendors(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.db.Create(&models.Retailer{
		RetailerID: "r1", CreditLimit: decimal.NewFromInt(5000),
	}).Error)

	_, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(1000), "o1")
	require.NoError(t, err)
	_, err = l.AppendOrderCredit(nil, "r1", "v2", decimal.NewFromInt(1000), "o2")
	require.NoError(t, err)
	_, err = l.AppendPaymentDebit(nil, "r1", "v1", decimal.NewFromInt(400), "p1")
	require.NoError(t, err)

	var retailer models.Retailer
	require.NoError(t, l.db.Where("retailer_id = ?", "r1").First(&retailer).Error)
	assert.True(t, retailer.OutstandingDebt.Equal(decimal.NewFromInt(1600)), "scalar is the cross-vendor sum")
}

func TestAppendAdjustments_MoveBalanceBothWays(t *testing.T) {
	l := newTestLedger(t)

	up, err := l.AppendAdjustmentCredit(nil, "r1", "v1", decimal.NewFromInt(250), "late fee")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionAdjustmentCredit, up.TransactionType)
	assert.True(t, up.RunningBalance.Equal(decimal.NewFromInt(250)))

	down, err := l.AppendAdjustmentDebit(nil, "r1", "v1", decimal.NewFromInt(100), "goodwill waiver")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionAdjustmentDebit, down.TransactionType)
	assert.True(t, down.RunningBalance.Equal(decimal.NewFromInt(150)))
}

func TestReverse_RestoresPreAppendBalance(t *testing.T) {
	l := newTestLedger(t)

	before, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(300), "o1")
	require.NoError(t, err)

	applied, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(100), "o2")
	require.NoError(t, err)
	assert.True(t, applied.RunningBalance.Equal(decimal.NewFromInt(400)))

	reversal, err := l.Reverse(nil, applied.EntryID, "duplicate order")
	require.NoError(t, err)

	assert.Equal(t, models.TransactionAdjustmentDebit, reversal.TransactionType)
	assert.True(t, reversal.Amount.Equal(applied.Amount))
	assert.True(t, reversal.RunningBalance.Equal(before.RunningBalance))
}

func TestReverse_RejectsDoubleReversal(t *testing.T) {
	l := newTestLedger(t)

	entry, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(100), "o1")
	require.NoError(t, err)

	_, err = l.Reverse(nil, entry.EntryID, "correction")
	require.NoError(t, err)

	_, err = l.Reverse(nil, entry.EntryID, "correction again")
	assert.Error(t, err)
}

func TestOverdueLookup_FlagsCreditWithNoSubsequentPayment(t *testing.T) {
	l := newTestLedger(t)

	entry, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(100), "o1")
	require.NoError(t, err)
	// backdate the entry so it falls outside the overdue window
	l.db.Model(&models.CreditLedgerEntry{}).Where("entry_id = ?", entry.EntryID).
		Update("created_at", entry.CreatedAt.AddDate(0, 0, -45))

	info, err := OverdueLookup(l.db, "r1", credit.DefaultValidatorConfig())
	require.NoError(t, err)
	assert.True(t, info.HasOverdueBeyondThreshold)
}

func TestOverdueLookup_ClearsOnceSettled(t *testing.T) {
	l := newTestLedger(t)

	entry, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(100), "o1")
	require.NoError(t, err)
	l.db.Model(&models.CreditLedgerEntry{}).Where("entry_id = ?", entry.EntryID).
		Update("created_at", entry.CreatedAt.AddDate(0, 0, -45))

	_, err = l.AppendPaymentDebit(nil, "r1", "v1", decimal.NewFromInt(100), "p1")
	require.NoError(t, err)

	info, err := OverdueLookup(l.db, "r1", credit.DefaultValidatorConfig())
	require.NoError(t, err)
	assert.False(t, info.HasOverdueBeyondThreshold)
}
