package models

import "time"

// UploadedImageStatus tracks an order image from upload through tiered
// extraction to a parse session, for the polling route
// GET /orders/upload-image/{id}.
type UploadedImageStatus string

const (
	UploadedImageStatusPending    UploadedImageStatus = "PENDING"
	UploadedImageStatusExtracting UploadedImageStatus = "EXTRACTING"
	UploadedImageStatusParsed     UploadedImageStatus = "PARSED"
	UploadedImageStatusFailed     UploadedImageStatus = "FAILED"
)

// UploadedOrderImage is created the moment a signed upload URL is issued,
// before the caller has even finished uploading, so the polling route
// always has a row to report on.
type UploadedOrderImage struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	UploadedOrderID string              `gorm:"uniqueIndex;size:36" json:"uploaded_order_id"`
	RetailerID      string              `gorm:"index;size:36" json:"retailer_id"`
	ObjectKey       string              `gorm:"size:200" json:"object_key"`
	Status          UploadedImageStatus `gorm:"size:20" json:"status"`
	ExtractionTier  string              `gorm:"size:20" json:"extraction_tier,omitempty"`
	ParseSessionID  string              `gorm:"size:36" json:"parse_session_id,omitempty"`
	LastError       string              `gorm:"size:1000" json:"last_error,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func (UploadedOrderImage) TableName() string { return "uploaded_order_images" }
