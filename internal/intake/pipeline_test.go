package intake

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mandiflow/core/internal/cache"
	"github.com/mandiflow/core/internal/credit"
	"github.com/mandiflow/core/internal/database"
	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/models"
	"github.com/mandiflow/core/internal/parser"
	"github.com/mandiflow/core/internal/vendorselect"
	"github.com/mandiflow/core/internal/workflow"
)

func newTestPipeline(t *testing.T) (*Pipeline, *database.Database) {
	t.Helper()

	db, err := database.ConnectSQLite(":memory:", gormlogger.Default.LogMode(gormlogger.Silent))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())

	log := logging.New(logging.Config{Level: "error", Service: "intake-test", Format: "console"})

	orderParser := parser.New(
		parser.NewSessionStore(db.DB),
		parser.NewGormCatalogProvider(db.DB),
		parser.Thresholds{AutoAccept: 80, NeedsReview: 50, MatchThreshold: 0.65},
	)

	decisions := vendorselect.NewDecisionLogStore(db.DB)
	selector := vendorselect.NewSelector(
		vendorselect.NewGormVendorRepository(db.DB),
		cache.New(),
		decisions,
		log,
		vendorselect.EligibilityConfig{MonopolyThreshold: 0.40, WorkingHoursEnabled: false},
		vendorselect.StrategyLeastLoaded,
	)

	p := &Pipeline{
		DB:        db.DB,
		Parser:    orderParser,
		Selector:  selector,
		Decisions: decisions,
		Retries:  vendorselect.NewRetryStore(db.DB),
		Reassign: vendorselect.ReassignmentConfig{ResponseDeadline: 2 * time.Hour, MaxAttempts: 5},
		Writer:   credit.NewAtomicWriter(db.DB, credit.DefaultValidatorConfig()),
		Idempotent: credit.NewIdempotencyGuard(db.DB),
		Rejections: credit.NewRejectionStore(db.DB),
		Workflows:  workflow.NewManager(db.DB, 5*time.Minute),
		Log:        log,
	}
	return p, db
}

func seedCatalogAndVendor(t *testing.T, db *database.Database) {
	t.Helper()
	require.NoError(t, db.DB.Create(&models.Product{
		ProductID: "p-rice", SKU: "RICE-25", Name: "Rice", Unit: "kg", Category: "grains",
	}).Error)
	require.NoError(t, db.DB.Create(&models.Vendor{
		VendorID: "v1", Name: "Vendor One", IsApproved: true, IsActive: true,
		ReliabilityScore: 85, MaxActiveOrders: 10, MaxPendingOrders: 5,
		WorkingHoursStart: 0, WorkingHoursEnd: 23, TimeZone: "UTC",
	}).Error)
	require.NoError(t, db.DB.Create(&models.VendorProduct{
		VendorID: "v1", ProductID: "p-rice", Price: decimal.NewFromInt(100),
		Stock: 50, IsAvailable: true, MinOrderQty: 1, MaxOrderQty: 1000,
	}).Error)
}

func seedRetailer(t *testing.T, db *database.Database, id string, creditLimit int64) {
	t.Helper()
	require.NoError(t, db.DB.Create(&models.Retailer{
		RetailerID: id, Name: "Retailer " + id, Phone: "98765" + id,
		CreditLimit: decimal.NewFromInt(creditLimit), OutstandingDebt: decimal.Zero,
		RiskScore: 20, IsApproved: true, IsActive: true,
	}).Error)
}

func TestHandle_AcceptedOrderWritesOrderLedgerAndDebt(t *testing.T) {
	p, db := newTestPipeline(t)
	seedCatalogAndVendor(t, db)
	seedRetailer(t, db, "r1", 5000)

	result, err := p.Handle(context.Background(), "text", "10 kg rice", "r1", "")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)

	order := result.Outcomes[0].Order
	require.NotNil(t, order)
	assert.Equal(t, "v1", order.VendorID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(1000)), "10 kg at 100/kg")

	var retailer models.Retailer
	require.NoError(t, db.DB.Where("retailer_id = ?", "r1").First(&retailer).Error)
	assert.True(t, retailer.OutstandingDebt.Equal(decimal.NewFromInt(1000)))
	assert.True(t, retailer.AvailableCredit().Equal(decimal.NewFromInt(4000)))

	var entry models.CreditLedgerEntry
	require.NoError(t, db.DB.Where("retailer_id = ?", "r1").First(&entry).Error)
	assert.Equal(t, models.TransactionOrderCredit, entry.TransactionType)
	assert.True(t, entry.RunningBalance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, order.OrderID, entry.OrderID)

	// Vendor acceptance is pending: a response-deadline retry row exists.
	var retry models.VendorAssignmentRetry
	require.NoError(t, db.DB.Where("order_id = ?", order.OrderID).First(&retry).Error)
	assert.Equal(t, "v1", retry.VendorID)

	// The order-creation workflow ran to completion.
	var wf models.WorkflowState
	require.NoError(t, db.DB.Where("type = ?", WorkflowTypeOrderCreation).First(&wf).Error)
	assert.Equal(t, models.WorkflowStatusCompleted, wf.Status)

	// The selection rationale was persisted as an immutable decision log row.
	var decisions int64
	require.NoError(t, db.DB.Model(&models.VendorDecisionLog{}).Where("order_id = ?", order.OrderID).Count(&decisions).Error)
	assert.EqualValues(t, 1, decisions)

	// Stock decremented.
	var vp models.VendorProduct
	require.NoError(t, db.DB.Where("vendor_id = ? AND product_id = ?", "v1", "p-rice").First(&vp).Error)
	assert.Equal(t, 40.0, vp.Stock)
}

func TestHandle_CreditRejectionLogsShortfallWithoutOrder(t *testing.T) {
	p, db := newTestPipeline(t)
	seedCatalogAndVendor(t, db)
	seedRetailer(t, db, "r2", 300)

	result, err := p.Handle(context.Background(), "text", "10 kg rice", "r2", "")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)

	rejected := result.Outcomes[0].Rejected
	require.NotNil(t, rejected)
	assert.Nil(t, result.Outcomes[0].Order)
	assert.Equal(t, models.RejectedCreditLimitExceeded, rejected.Reason)
	assert.True(t, rejected.AvailableCredit.Equal(decimal.NewFromInt(300)))
	assert.True(t, rejected.Shortfall.Equal(decimal.NewFromInt(700)), "requested 1000 against 300 available")

	var orders int64
	require.NoError(t, db.DB.Model(&models.Order{}).Where("retailer_id = ?", "r2").Count(&orders).Error)
	assert.Zero(t, orders)

	var entries int64
	require.NoError(t, db.DB.Model(&models.CreditLedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries, "ledger unchanged on rejection")
}

func TestHandle_LowConfidenceInputCreatesNoOrders(t *testing.T) {
	p, db := newTestPipeline(t)
	seedCatalogAndVendor(t, db)
	seedRetailer(t, db, "r3", 5000)

	result, err := p.Handle(context.Background(), "text", "rice", "r3", "")
	require.NoError(t, err)

	assert.Empty(t, result.Outcomes)
	assert.NotEqual(t, parser.DecisionAutoAccept, result.Parse.Decision)
	assert.NotEmpty(t, result.Parse.Clarifications)

	var orders int64
	require.NoError(t, db.DB.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestHandle_ExactCreditBoundaryAccepts(t *testing.T) {
	p, db := newTestPipeline(t)
	seedCatalogAndVendor(t, db)
	seedRetailer(t, db, "r4", 1000)

	result, err := p.Handle(context.Background(), "text", "10 kg rice", "r4", "")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	require.NotNil(t, result.Outcomes[0].Order, "credit exactly equal to the order total must accept")

	var retailer models.Retailer
	require.NoError(t, db.DB.Where("retailer_id = ?", "r4").First(&retailer).Error)
	assert.True(t, retailer.AvailableCredit().IsZero())
}
