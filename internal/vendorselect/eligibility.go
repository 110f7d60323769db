package vendorselect

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandiflow/core/internal/models"
)

// EligibilityConfig carries the thresholds the filter pipeline needs,
// read from internal/config once at startup.
type EligibilityConfig struct {
	MonopolyThreshold   float64
	WorkingHoursEnabled bool

	// Fallback order ceilings for vendors with no explicit caps set.
	DefaultMaxActiveOrders  int
	DefaultMaxPendingOrders int
}

// VendorOption is everything the eligibility pipeline needs about one
// (vendor, vendor_product) pair before ranking.
type VendorOption struct {
	Vendor        models.Vendor
	VendorProduct models.VendorProduct
	MarketSharePct float64
}

// contains reports whether id is in excludeList.
func contains(list []string, id string) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

// FilterSellsApprovedActiveStock is the hard first stage: it
// never falls back, since an empty result here means no vendor can
// possibly serve the request.
func FilterSellsApprovedActiveStock(options []VendorOption, qty decimal.Decimal, excludeList []string) []VendorOption {
	out := make([]VendorOption, 0, len(options))
	for _, o := range options {
		if contains(excludeList, o.Vendor.VendorID) {
			continue
		}
		if !o.Vendor.IsApproved || !o.Vendor.IsActive {
			continue
		}
		if !o.VendorProduct.IsAvailable {
			continue
		}
		if o.VendorProduct.Stock < qtyFloat(qty) {
			continue
		}
		if qtyFloat(qty) < o.VendorProduct.MinOrderQty {
			continue
		}
		if o.VendorProduct.MaxOrderQty > 0 && qtyFloat(qty) > o.VendorProduct.MaxOrderQty {
			continue
		}
		out = append(out, o)
	}
	return out
}

func qtyFloat(q decimal.Decimal) float64 {
	f, _ := q.Float64()
	return f
}

// FilterWorkingHours keeps vendors whose current local time is within [start, end) in the
// vendor's own timezone. An empty result is discarded in favor of the
// input set (the filter is skipped, not enforced). fellBack reports
// whether that fallback occurred, for caller-side warning logs.
func FilterWorkingHours(options []VendorOption, now time.Time, enabled bool) (result []VendorOption, fellBack bool) {
	if !enabled {
		return options, false
	}
	out := make([]VendorOption, 0, len(options))
	for _, o := range options {
		loc, err := time.LoadLocation(o.Vendor.TimeZone)
		if err != nil {
			loc = time.UTC
		}
		hour := now.In(loc).Hour()
		if hour >= o.Vendor.WorkingHoursStart && hour < o.Vendor.WorkingHoursEnd {
			out = append(out, o)
		}
	}
	return fallbackIfEmpty(out, options)
}

// FilterLoadCapacity keeps vendors below their active and pending order ceilings.
func FilterLoadCapacity(options []VendorOption) (result []VendorOption, fellBack bool) {
	out := make([]VendorOption, 0, len(options))
	for _, o := range options {
		if o.Vendor.HasCapacity() {
			out = append(out, o)
		}
	}
	return fallbackIfEmpty(out, options)
}

// FilterMonopolyPrevention caps market concentration: a vendor holding >=
// threshold of the 30-day market share for this product is excluded so no
// single vendor can corner a product.
func FilterMonopolyPrevention(options []VendorOption, threshold float64) (result []VendorOption, fellBack bool) {
	out := make([]VendorOption, 0, len(options))
	for _, o := range options {
		if o.MarketSharePct < threshold {
			out = append(out, o)
		}
	}
	return fallbackIfEmpty(out, options)
}

// fallbackIfEmpty implements the "empty result at any step falls back to
// the previous set with a logged warning" rule shared by every
// non-hard filter stage.
func fallbackIfEmpty(filtered, previous []VendorOption) ([]VendorOption, bool) {
	if len(filtered) == 0 {
		return previous, true
	}
	return filtered, false
}
