package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the canonical, vendor-independent SKU descriptor.
type Product struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID string    `gorm:"uniqueIndex;size:36" json:"product_id"`
	SKU       string    `gorm:"uniqueIndex;size:64" json:"sku"`
	Name      string    `gorm:"size:200;index" json:"name"`
	Unit      string    `gorm:"size:20" json:"unit"` // canonical unit: kg, l, piece
	Category  string    `gorm:"size:100" json:"category"`
	Aliases   []ProductAlias `gorm:"foreignKey:ProductID;references:ProductID" json:"aliases,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// ProductAlias is an alternate spelling/name that resolves to a Product
// during parsing.
type ProductAlias struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProductID string `gorm:"index;size:36" json:"product_id"`
	Alias     string `gorm:"size:200;index" json:"alias"`
}

func (ProductAlias) TableName() string { return "product_aliases" }

// VendorProduct is the (vendor, product) pricing/stock relation.
type VendorProduct struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	VendorID     string          `gorm:"index:idx_vendor_product,unique;size:36" json:"vendor_id"`
	ProductID    string          `gorm:"index:idx_vendor_product,unique;size:36" json:"product_id"`
	Price        decimal.Decimal `gorm:"type:decimal(14,4)" json:"price"`
	Stock        float64         `json:"stock"`
	IsAvailable  bool            `json:"is_available"`
	MinOrderQty  float64         `json:"min_order_qty"`
	MaxOrderQty  float64         `json:"max_order_qty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (VendorProduct) TableName() string { return "vendor_products" }

// VendorPriceHistory records every price change for price-intelligence
// analytics.
type VendorPriceHistory struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	VendorID  string          `gorm:"index;size:36" json:"vendor_id"`
	ProductID string          `gorm:"index;size:36" json:"product_id"`
	OldPrice  decimal.Decimal `gorm:"type:decimal(14,4)" json:"old_price"`
	NewPrice  decimal.Decimal `gorm:"type:decimal(14,4)" json:"new_price"`
	PctChange float64         `json:"pct_change"`
	ChangedAt time.Time       `json:"changed_at"`
}

func (VendorPriceHistory) TableName() string { return "vendor_price_history" }

// PriceAlertSeverity grades the magnitude of an abnormal price change.
type PriceAlertSeverity string

const (
	PriceAlertWarning  PriceAlertSeverity = "WARNING"
	PriceAlertCritical PriceAlertSeverity = "CRITICAL"
)

// PriceAlert is written by PriceTracker.RecordPriceChange when a vendor's
// price moves beyond the abnormal-change threshold.
type PriceAlert struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	ProductID string             `gorm:"index;size:36" json:"product_id"`
	VendorID  string             `gorm:"index;size:36" json:"vendor_id"`
	PctChange float64            `json:"pct_change"`
	Severity  PriceAlertSeverity `gorm:"size:20" json:"severity"`
	CreatedAt time.Time          `json:"created_at"`
}

func (PriceAlert) TableName() string { return "price_alerts" }
