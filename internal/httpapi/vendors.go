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

// VendorHandlers implements the vendor-side admin mutations. Price
// updates route through here so every change lands in the price history
// and, past the abnormal-change thresholds, a graded PriceAlert.
type VendorHandlers struct {
	DB         *gorm.DB
	Prices     *ledger.PriceTracker
	Production bool
}

type updatePriceRequest struct {
	Price decimal.Decimal `json:"price" binding:"required"`
	Actor string          `json:"actor"`
}

// UpdatePrice handles PUT /vendors/:id/products/:productID/price. The
// history row, the alert grading, and the audit entry share the update's
// transaction, so a recorded change is always a real one.
func (h *VendorHandlers) UpdatePrice(c *gin.Context) {
	vendorID := c.Param("id")
	productID := c.Param("productID")

	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, h.Production, apperrors.NewValidation("INVALID_REQUEST_BODY", err.Error()))
		return
	}
	if req.Price.IsNegative() || req.Price.IsZero() {
		respondErr(c, h.Production, apperrors.NewValidation("INVALID_PRICE", "price must be positive"))
		return
	}

	var updated models.VendorProduct
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var vp models.VendorProduct
		if err := tx.Where("vendor_id = ? AND product_id = ?", vendorID, productID).First(&vp).Error; err != nil {
			return apperrors.NewValidation("VENDOR_PRODUCT_NOT_FOUND", "no such vendor product")
		}
		oldPrice := vp.Price

		if err := tx.Model(&models.VendorProduct{}).
			Where("vendor_id = ? AND product_id = ?", vendorID, productID).
			Updates(map[string]interface{}{"price": req.Price, "updated_at": time.Now()}).Error; err != nil {
			return apperrors.NewTransient("PRICE_UPDATE_FAILED", "failed to update price", err)
		}

		if err := h.Prices.RecordPriceChange(tx, vendorID, productID, oldPrice, req.Price); err != nil {
			return apperrors.NewTransient("PRICE_HISTORY_FAILED", "failed to record price history", err)
		}

		before, _ := json.Marshal(map[string]string{"price": oldPrice.String()})
		after, _ := json.Marshal(map[string]string{"price": req.Price.String()})
		audit := &models.AuditLogEntry{
			AuditID:    uuid.NewString(),
			Action:     "vendor_price_update",
			Resource:   "vendor_product",
			ResourceID: vendorID + ":" + productID,
			Actor:      req.Actor,
			Before:     string(before),
			After:      string(after),
			CreatedAt:  time.Now(),
		}
		if err := tx.Create(audit).Error; err != nil {
			return apperrors.NewTransient("AUDIT_INSERT_FAILED", "failed to write audit entry", err)
		}

		vp.Price = req.Price
		updated = vp
		return nil
	})
	if err != nil {
		respondErr(c, h.Production, err)
		return
	}
	respondOK(c, http.StatusOK, updated)
}
