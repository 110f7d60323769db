package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/ledger"
	"github.com/mandiflow/core/internal/models"
)

// RetailerHandlers implements the retailer-side admin mutations. Credit
// adjustments route through here so the ledger stays the only mutator of
// balance truth and every adjustment leaves an audit trail.
type RetailerHandlers struct {
	DB         *gorm.DB
	Ledger     *ledger.Ledger
	Production bool
}

type adjustmentRequest struct {
	VendorID  string          `json:"vendor_id" binding:"required"`
	Direction string          `json:"direction" binding:"required"` // credit | debit
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Reason    string          `json:"reason" binding:"required"`
	Actor     string          `json:"actor"`
}

// Adjust handles POST /retailers/:id/adjustments: an admin-initiated
// ADJUSTMENT_CREDIT or ADJUSTMENT_DEBIT against one (retailer, vendor)
// pair, with the audit entry sharing the ledger append's transaction.
func (h *RetailerHandlers) Adjust(c *gin.Context) {
	retailerID := c.Param("id")

	var req adjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, h.Production, apperrors.NewValidation("INVALID_REQUEST_BODY", err.Error()))
		return
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		respondErr(c, h.Production, apperrors.NewValidation("INVALID_AMOUNT", "amount must be positive"))
		return
	}

	var entry *models.CreditLedgerEntry
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var retailer models.Retailer
		if err := tx.Where("retailer_id = ?", retailerID).First(&retailer).Error; err != nil {
			return apperrors.NewValidation("RETAILER_NOT_FOUND", "no such retailer")
		}

		var txErr error
		switch req.Direction {
		case "credit":
			entry, txErr = h.Ledger.AppendAdjustmentCredit(tx, retailerID, req.VendorID, req.Amount, req.Reason)
		case "debit":
			entry, txErr = h.Ledger.AppendAdjustmentDebit(tx, retailerID, req.VendorID, req.Amount, req.Reason)
		default:
			return apperrors.NewValidation("INVALID_DIRECTION", "direction must be credit or debit")
		}
		if txErr != nil {
			return txErr
		}

		after, _ := json.Marshal(map[string]string{
			"entry_id": entry.EntryID, "direction": req.Direction,
			"amount": req.Amount.String(), "reason": req.Reason,
		})
		audit := &models.AuditLogEntry{
			AuditID:    uuid.NewString(),
			Action:     "retailer_credit_adjustment",
			Resource:   "credit_ledger_entry",
			ResourceID: retailerID + ":" + req.VendorID,
			Actor:      req.Actor,
			After:      string(after),
			CreatedAt:  time.Now(),
		}
		return tx.Create(audit).Error
	})
	if err != nil {
		respondErr(c, h.Production, err)
		return
	}
	respondOK(c, http.StatusCreated, entry)
}
