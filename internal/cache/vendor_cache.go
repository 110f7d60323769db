// Package cache holds the in-process projection of vendor capacity and
// working-hours state used by the eligibility filter pipeline. The
// projection is eventually consistent with the database; the hot path
// never takes a DB round trip per candidate vendor.
package cache

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const defaultTTL = 5 * time.Second

// VendorProjection is the cached view of a vendor's load/working-hours
// state, refreshed from the database on expiry.
type VendorProjection struct {
	VendorID          string
	ActiveOrders      int
	PendingOrders     int
	MaxActiveOrders   int
	MaxPendingOrders  int
	WorkingHoursStart int
	WorkingHoursEnd   int
	TimeZone          string
	IsActive          bool
}

// HasCapacity mirrors models.Vendor.HasCapacity on the cached projection.
func (p VendorProjection) HasCapacity() bool {
	return p.ActiveOrders < p.MaxActiveOrders && p.PendingOrders < p.MaxPendingOrders
}

// VendorCache wraps go-cache with a short fixed TTL bounding projection
// staleness, and a narrow get/set surface scoped to vendor projections
// so callers can't accidentally reuse the cache for unrelated keys.
type VendorCache struct {
	c *gocache.Cache
}

func New() *VendorCache {
	return &VendorCache{c: gocache.New(defaultTTL, 2*defaultTTL)}
}

func NewWithTTL(ttl time.Duration) *VendorCache {
	return &VendorCache{c: gocache.New(ttl, 2*ttl)}
}

func vendorKey(vendorID string) string {
	return fmt.Sprintf("vendor:%s", vendorID)
}

// Get returns the cached projection for vendorID, or ok=false on a miss or
// expiry, in which case the caller must refresh from the database.
func (vc *VendorCache) Get(vendorID string) (VendorProjection, bool) {
	v, found := vc.c.Get(vendorKey(vendorID))
	if !found {
		return VendorProjection{}, false
	}
	proj, ok := v.(VendorProjection)
	return proj, ok
}

// Set stores proj with the cache's default TTL.
func (vc *VendorCache) Set(proj VendorProjection) {
	vc.c.SetDefault(vendorKey(proj.VendorID), proj)
}

// Invalidate evicts a single vendor's projection, used after an order is
// assigned or released so the next eligibility pass sees fresh load
// figures instead of waiting out the full TTL.
func (vc *VendorCache) Invalidate(vendorID string) {
	vc.c.Delete(vendorKey(vendorID))
}

// Flush clears the entire projection.
func (vc *VendorCache) Flush() {
	vc.c.Flush()
}
