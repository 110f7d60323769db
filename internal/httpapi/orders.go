package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/intake"
	"github.com/mandiflow/core/internal/jobs"
	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/models"
	"github.com/mandiflow/core/internal/providers"
)

// OrderHandlers implements POST /orders, POST /orders/upload-image, and
// GET /orders/upload-image/{id}.
type OrderHandlers struct {
	DB         *gorm.DB
	Pipeline   *intake.Pipeline
	ObjectStore *providers.ObjectStore
	Fabric     *jobs.Fabric
	Log        *logging.Logger
	Production bool
}

// createOrderRequest is the POST /orders body: a unified intake request
// that is source-agnostic.
type createOrderRequest struct {
	Source     string `json:"source" binding:"required"`
	RawInput   string `json:"raw_input" binding:"required"`
	RetailerID string `json:"retailer_id" binding:"required"`
}

// Create handles POST /orders. The idempotency key, if present, is taken
// from the standard header so retries of the same logical request never
// double-create orders.
func (h *OrderHandlers) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, h.Production, apperrors.NewValidation("INVALID_REQUEST_BODY", err.Error()))
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	result, err := h.Pipeline.Handle(c.Request.Context(), req.Source, req.RawInput, req.RetailerID, idempotencyKey)
	if err != nil {
		respondErr(c, h.Production, err)
		return
	}
	respondOK(c, http.StatusCreated, result)
}

// uploadImageRequest is the POST /orders/upload-image body: the caller
// has already uploaded to the signed URL obtained from this call's
// response.
type uploadImageRequest struct {
	RetailerID string `json:"retailer_id" binding:"required"`
}

type uploadImageResponse struct {
	UploadedOrderID string `json:"uploaded_order_id"`
	UploadURL       string `json:"upload_url"`
}

// UploadImage issues a signed upload URL and creates the polling row
// immediately, before the caller has finished uploading, so
// GET /orders/upload-image/{id} always has something to report.
func (h *OrderHandlers) UploadImage(c *gin.Context) {
	var req uploadImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, h.Production, apperrors.NewValidation("INVALID_REQUEST_BODY", err.Error()))
		return
	}

	uploadedOrderID := uuid.NewString()
	uploadURL, objectKey, err := h.ObjectStore.SignedUploadURL(c.Request.Context(), uploadedOrderID)
	if err != nil {
		respondErr(c, h.Production, apperrors.NewTransient("OBJECT_STORE_UNAVAILABLE", "failed to obtain a signed upload URL", err))
		return
	}

	row := &models.UploadedOrderImage{
		UploadedOrderID: uploadedOrderID,
		RetailerID:      req.RetailerID,
		ObjectKey:       objectKey,
		Status:          models.UploadedImageStatusPending,
	}
	if err := h.DB.Create(row).Error; err != nil {
		respondErr(c, h.Production, apperrors.NewTransient("UPLOAD_ROW_INSERT_FAILED", "failed to persist upload record", err))
		return
	}

	if h.Fabric != nil {
		if _, err := h.Fabric.Submit(c.Request.Context(), jobs.QueueImageProcessing, map[string]interface{}{
			"uploaded_order_id": uploadedOrderID,
		}); err != nil {
			h.Log.Error("enqueue image processing job failed", zap.Error(err))
		}
	}

	respondOK(c, http.StatusAccepted, uploadImageResponse{UploadedOrderID: uploadedOrderID, UploadURL: uploadURL})
}

// UploadImageStatus handles GET /orders/upload-image/{id}, the polling
// route a client uses while the image-processing queue runs extraction
// and parsing in the background.
func (h *OrderHandlers) UploadImageStatus(c *gin.Context) {
	id := c.Param("id")
	var row models.UploadedOrderImage
	if err := h.DB.Where("uploaded_order_id = ?", id).First(&row).Error; err != nil {
		respondErr(c, h.Production, apperrors.NewValidation("UPLOAD_NOT_FOUND", "no upload found with that id"))
		return
	}
	respondOK(c, http.StatusOK, row)
}
