package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mandiflow/core/internal/database"
	"github.com/mandiflow/core/internal/models"
)

func newTestTracker(t *testing.T) (*PriceTracker, *database.Database) {
	t.Helper()
	db, err := database.ConnectSQLite(":memory:", gormlogger.Default.LogMode(gormlogger.Silent))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	return NewPriceTracker(db.DB), db
}

func TestRecordPriceChange_WritesHistory(t *testing.T) {
	tracker, db := newTestTracker(t)

	err := tracker.RecordPriceChange(nil, "v1", "p1", decimal.NewFromInt(100), decimal.NewFromInt(110))
	require.NoError(t, err)

	var history models.VendorPriceHistory
	require.NoError(t, db.DB.First(&history).Error)
	assert.InDelta(t, 0.10, history.PctChange, 0.0001)

	// 10% is below the warning threshold: no alert.
	var alerts int64
	require.NoError(t, db.DB.Model(&models.PriceAlert{}).Count(&alerts).Error)
	assert.Zero(t, alerts)
}

func TestRecordPriceChange_GradesSeverity(t *testing.T) {
	cases := []struct {
		name     string
		old, new int64
		severity models.PriceAlertSeverity
	}{
		{"warning at +25%", 100, 125, models.PriceAlertWarning},
		{"critical at +60%", 100, 160, models.PriceAlertCritical},
		{"critical on -55% crash", 100, 45, models.PriceAlertCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker, db := newTestTracker(t)
			require.NoError(t, tracker.RecordPriceChange(nil, "v1", "p1",
				decimal.NewFromInt(tc.old), decimal.NewFromInt(tc.new)))

			var alert models.PriceAlert
			require.NoError(t, db.DB.First(&alert).Error)
			assert.Equal(t, tc.severity, alert.Severity)
		})
	}
}

func TestRecordPriceChange_NoBaselineNoHistory(t *testing.T) {
	tracker, db := newTestTracker(t)

	require.NoError(t, tracker.RecordPriceChange(nil, "v1", "p1", decimal.Zero, decimal.NewFromInt(80)))

	var history int64
	require.NoError(t, db.DB.Model(&models.VendorPriceHistory{}).Count(&history).Error)
	assert.Zero(t, history, "first-ever price has nothing to compare against")
}

func TestStatement_ReplaysRunningBalance(t *testing.T) {
	_, db := newTestTracker(t)

	l := New(db.DB)
	_, err := l.AppendOrderCredit(nil, "r1", "v1", decimal.NewFromInt(500), "o1")
	require.NoError(t, err)
	_, err = l.AppendPaymentDebit(nil, "r1", "v1", decimal.NewFromInt(200), "pay1")
	require.NoError(t, err)

	entries, err := Statement(db.DB, "r1", "v1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].RunningBalance.Equal(decimal.NewFromInt(500)))
	assert.True(t, entries[1].RunningBalance.Equal(decimal.NewFromInt(300)))
	prev := entries[0].RunningBalance
	assert.True(t, entries[1].PreviousBalance.Equal(prev))
}
