package credit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/models"
)

// NewOrderInput is everything the atomic writer needs to create one order,
// already past parsing and vendor selection.
type NewOrderInput struct {
	RetailerID string
	VendorID   string
	Source     string
	Items      []models.LineItem
}

// AtomicWriter performs the atomic order-write transaction: lock the
// retailer row, recheck credit, insert the order and ledger entry, update
// balances, all inside one serializable transaction that rolls back
// completely on any failure.
type AtomicWriter struct {
	db  *gorm.DB
	cfg ValidatorConfig
}

func NewAtomicWriter(db *gorm.DB, cfg ValidatorConfig) *AtomicWriter {
	return &AtomicWriter{db: db, cfg: cfg}
}

// overdueLookup computes OverdueInfo for a retailer inside the same
// transaction, so the re-check sees the same snapshot as the pessimistic
// lock. Implemented by internal/ledger; injected here to avoid a
// credit -> ledger -> credit import cycle.
type OverdueLookup func(tx *gorm.DB, retailerID string, cfg ValidatorConfig) (OverdueInfo, error)

// Create runs the full atomic write for input, returning the persisted
// Order on success. adminRiskOverride and overdueLookup let the caller
// supply the policy override flag and the ledger-backed overdue check
// without a circular import.
func (w *AtomicWriter) Create(input NewOrderInput, adminRiskOverride bool, overdueLookup OverdueLookup) (*models.Order, error) {
	var created *models.Order

	err := w.db.Transaction(func(tx *gorm.DB) error {
		// Step 1: pessimistic lock on the retailer row.
		var retailer models.Retailer
		if err := tx.Clauses(lockingClauses(tx)...).Where("retailer_id = ?", input.RetailerID).First(&retailer).Error; err != nil {
			return apperrors.NewValidation("RETAILER_NOT_FOUND", fmt.Sprintf("retailer %s not found", input.RetailerID))
		}

		total := decimal.Zero
		for i := range input.Items {
			input.Items[i].Recalculate()
			total = total.Add(input.Items[i].LineTotal)
		}

		// Step 2: recompute available credit and re-validate under lock.
		overdue, err := overdueLookup(tx, input.RetailerID, w.cfg)
		if err != nil {
			return apperrors.NewTransient("OVERDUE_LOOKUP_FAILED", "failed to compute overdue status", err)
		}
		if err := Validate(&retailer, total, overdue, adminRiskOverride, w.cfg); err != nil {
			return err
		}

		now := time.Now()
		orderID := uuid.NewString()
		order := &models.Order{
			OrderID:       orderID,
			OrderNumber:   generateOrderNumber(now),
			RetailerID:    input.RetailerID,
			VendorID:      input.VendorID,
			Status:        models.OrderStatusPending,
			PaymentStatus: models.PaymentStatusPending,
			Total:         total,
			CreditUsed:    total,
			Source:        input.Source,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		// Step 3: insert order + line items.
		if err := tx.Create(order).Error; err != nil {
			return apperrors.NewTransient("ORDER_INSERT_FAILED", "failed to insert order", err)
		}
		for i := range input.Items {
			input.Items[i].OrderID = orderID
			input.Items[i].CreatedAt = now
		}
		if len(input.Items) > 0 {
			if err := tx.Create(&input.Items).Error; err != nil {
				return apperrors.NewTransient("LINE_ITEM_INSERT_FAILED", "failed to insert line items", err)
			}
		}
		order.LineItems = input.Items

		// Step 4: append the ledger entry. The running balance continues
		// the (retailer, vendor) pair's own sequence, not the retailer's
		// cross-vendor total.
		pairBalance, err := LatestVendorBalance(tx, input.RetailerID, input.VendorID)
		if err != nil {
			return apperrors.NewTransient("LEDGER_BALANCE_LOOKUP_FAILED", "failed to load latest ledger balance", err)
		}
		entry := &models.CreditLedgerEntry{
			EntryID:         uuid.NewString(),
			RetailerID:      input.RetailerID,
			VendorID:        input.VendorID,
			OrderID:         orderID,
			TransactionType: models.TransactionOrderCredit,
			Amount:          total,
			PreviousBalance: pairBalance,
			RunningBalance:  pairBalance.Add(total),
			CreatedAt:       now,
		}
		if err := tx.Create(entry).Error; err != nil {
			return apperrors.NewTransient("LEDGER_INSERT_FAILED", "failed to append ledger entry", err)
		}

		// Step 5: rewrite the retailer scalar as the sum of per-vendor
		// authoritative balances, never as an in-place increment.
		newDebt, err := OutstandingDebt(tx, input.RetailerID)
		if err != nil {
			return apperrors.NewTransient("LEDGER_DEBT_SUM_FAILED", "failed to derive outstanding debt", err)
		}
		retailer.OutstandingDebt = newDebt
		retailer.UpdatedAt = now
		if err := tx.Model(&models.Retailer{}).Where("retailer_id = ?", input.RetailerID).
			Updates(map[string]interface{}{"outstanding_debt": newDebt, "updated_at": now}).Error; err != nil {
			return apperrors.NewTransient("RETAILER_UPDATE_FAILED", "failed to update retailer balance", err)
		}

		// Step 6: initial status log entry.
		statusLog := &models.OrderStatusLogEntry{
			OrderID: orderID, Status: models.OrderStatusPending, Reason: "order created", CreatedAt: now,
		}
		if err := tx.Create(statusLog).Error; err != nil {
			return apperrors.NewTransient("STATUS_LOG_INSERT_FAILED", "failed to insert status log", err)
		}

		created = order
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})

	if err != nil {
		return nil, err
	}
	return created, nil
}

// generateOrderNumber mints a short human-facing order number distinct
// from the internal UUID OrderID, in the style retailers read back over
// WhatsApp confirmations.
func generateOrderNumber(t time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", t.Format("20060102"), t.Nanosecond()%10000)
}
