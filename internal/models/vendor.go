package models

import "time"

// Vendor is the seller side of the marketplace.
type Vendor struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	VendorID          string    `gorm:"uniqueIndex;size:36" json:"vendor_id"`
	Name              string    `gorm:"size:200" json:"name"`
	IsApproved        bool      `json:"is_approved"`
	IsActive          bool      `json:"is_active"`
	ReliabilityScore  float64   `json:"reliability_score"` // derived from event history, never hand-edited
	WorkingHoursStart int       `json:"working_hours_start"`
	WorkingHoursEnd   int       `json:"working_hours_end"`
	TimeZone          string    `gorm:"size:64" json:"timezone"`
	MaxActiveOrders   int       `json:"max_active_orders"`
	MaxPendingOrders  int       `json:"max_pending_orders"`
	ActiveOrders      int       `json:"active_orders"`
	PendingOrders     int       `json:"pending_orders"`
	District          string    `gorm:"size:100" json:"district"`
	DeliveryZone      string    `gorm:"size:100" json:"delivery_zone"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Vendor) TableName() string { return "vendors" }

// HasCapacity reports whether the vendor can accept another order without
// breaching its active/pending order ceilings.
func (v *Vendor) HasCapacity() bool {
	return v.ActiveOrders < v.MaxActiveOrders && v.PendingOrders < v.MaxPendingOrders
}
