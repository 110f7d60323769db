package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/models"
)

// PriceWarningThreshold and PriceCriticalThreshold are the
// abnormal-price-change grading thresholds.
const (
	PriceWarningThreshold  = 0.20
	PriceCriticalThreshold = 0.50
)

// PriceTracker records price changes and grades abnormal movements into
// PriceAlert rows.
type PriceTracker struct {
	db *gorm.DB
}

func NewPriceTracker(db *gorm.DB) *PriceTracker {
	return &PriceTracker{db: db}
}

// RecordPriceChange writes a VendorPriceHistory row and, if the change
// crosses an abnormal threshold, a graded PriceAlert. Call this whenever
// a VendorProduct.Price is updated.
func (p *PriceTracker) RecordPriceChange(tx *gorm.DB, vendorID, productID string, oldPrice, newPrice decimal.Decimal) error {
	db := p.db
	if tx != nil {
		db = tx
	}

	if oldPrice.IsZero() {
		return nil // no prior price to compare against
	}

	pctChange, _ := newPrice.Sub(oldPrice).Div(oldPrice).Float64()

	history := &models.VendorPriceHistory{
		VendorID:  vendorID,
		ProductID: productID,
		OldPrice:  oldPrice,
		NewPrice:  newPrice,
		PctChange: pctChange,
		ChangedAt: time.Now(),
	}
	if err := db.Create(history).Error; err != nil {
		return fmt.Errorf("record price history: %w", err)
	}

	abs := math.Abs(pctChange)
	if abs < PriceWarningThreshold {
		return nil
	}
	severity := models.PriceAlertWarning
	if abs >= PriceCriticalThreshold {
		severity = models.PriceAlertCritical
	}
	alert := &models.PriceAlert{
		ProductID: productID,
		VendorID:  vendorID,
		PctChange: pctChange,
		Severity:  severity,
		CreatedAt: time.Now(),
	}
	if err := db.Create(alert).Error; err != nil {
		return fmt.Errorf("record price alert: %w", err)
	}
	return nil
}

// MarketAnalytics is the recomputed-on-a-timer per-product price summary
// feeding the market intelligence view.
type MarketAnalytics struct {
	ProductID        string
	AvgPrice         decimal.Decimal
	MinPrice         decimal.Decimal
	MaxPrice         decimal.Decimal
	MedianPrice      decimal.Decimal
	VolatilityScore  float64
	Trend            string // "rising", "falling", "stable"
	LowestVendorID   string
}

// ComputeMarketAnalytics derives MarketAnalytics for productID from the
// current VendorProduct rows and the last 30 days of price history.
func ComputeMarketAnalytics(db *gorm.DB, productID string) (MarketAnalytics, error) {
	var vendorProducts []models.VendorProduct
	if err := db.Where("product_id = ? AND is_available = ?", productID, true).Find(&vendorProducts).Error; err != nil {
		return MarketAnalytics{}, fmt.Errorf("load vendor products for market analytics: %w", err)
	}
	if len(vendorProducts) == 0 {
		return MarketAnalytics{ProductID: productID}, nil
	}

	prices := make([]decimal.Decimal, 0, len(vendorProducts))
	sum := decimal.Zero
	min := vendorProducts[0].Price
	max := vendorProducts[0].Price
	lowestVendor := vendorProducts[0].VendorID
	for _, vp := range vendorProducts {
		prices = append(prices, vp.Price)
		sum = sum.Add(vp.Price)
		if vp.Price.LessThan(min) {
			min = vp.Price
			lowestVendor = vp.VendorID
		}
		if vp.Price.GreaterThan(max) {
			max = vp.Price
		}
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(prices))))
	median := medianDecimal(prices)

	volatility := priceVolatility(db, productID)
	trend := priceTrend(db, productID)

	return MarketAnalytics{
		ProductID:       productID,
		AvgPrice:        avg,
		MinPrice:        min,
		MaxPrice:        max,
		MedianPrice:     median,
		VolatilityScore: volatility,
		Trend:           trend,
		LowestVendorID:  lowestVendor,
	}, nil
}

func medianDecimal(prices []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].GreaterThan(sorted[j]); j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

// priceVolatility is the standard deviation of pct_change across the
// trailing 30 days of history for productID, a proxy for how often and
// how sharply vendors reprice.
func priceVolatility(db *gorm.DB, productID string) float64 {
	since := time.Now().AddDate(0, 0, -30)
	var history []models.VendorPriceHistory
	if err := db.Where("product_id = ? AND changed_at >= ?", productID, since).Find(&history).Error; err != nil || len(history) == 0 {
		return 0
	}
	mean := 0.0
	for _, h := range history {
		mean += h.PctChange
	}
	mean /= float64(len(history))

	variance := 0.0
	for _, h := range history {
		d := h.PctChange - mean
		variance += d * d
	}
	variance /= float64(len(history))
	return math.Sqrt(variance)
}

// priceTrend classifies the net direction of price history over the
// trailing 14 days.
func priceTrend(db *gorm.DB, productID string) string {
	since := time.Now().AddDate(0, 0, -14)
	var history []models.VendorPriceHistory
	if err := db.Where("product_id = ? AND changed_at >= ?", productID, since).
		Order("changed_at ASC").Find(&history).Error; err != nil || len(history) == 0 {
		return "stable"
	}

	net := 0.0
	for _, h := range history {
		net += h.PctChange
	}
	avg := net / float64(len(history))
	switch {
	case avg > 0.02:
		return "rising"
	case avg < -0.02:
		return "falling"
	default:
		return "stable"
	}
}

// RecomputeAllMarketAnalytics drives the hourly price-analytics ticker:
// it walks every product with at least one available
// vendor offer and recomputes MarketAnalytics, logging a warning for any
// product whose volatility or price trend looks abnormal. MarketAnalytics
// itself is never persisted, so
// this pass exists to surface trend shifts to operators rather than to
// build a cache.
func (p *PriceTracker) RecomputeAll(onAbnormal func(MarketAnalytics)) (int, error) {
	return RecomputeAllMarketAnalytics(p.db, onAbnormal)
}

func RecomputeAllMarketAnalytics(db *gorm.DB, onAbnormal func(MarketAnalytics)) (int, error) {
	var productIDs []string
	if err := db.Model(&models.VendorProduct{}).
		Where("is_available = ?", true).
		Distinct("product_id").Pluck("product_id", &productIDs).Error; err != nil {
		return 0, fmt.Errorf("load product ids for market analytics: %w", err)
	}

	const volatilityAlertThreshold = 0.15
	for _, productID := range productIDs {
		analytics, err := ComputeMarketAnalytics(db, productID)
		if err != nil {
			return len(productIDs), fmt.Errorf("compute market analytics for %s: %w", productID, err)
		}
		if onAbnormal != nil && (analytics.VolatilityScore >= volatilityAlertThreshold || analytics.Trend != "stable") {
			onAbnormal(analytics)
		}
	}
	return len(productIDs), nil
}

// Statement replays every ledger entry between retailerID and vendorID in
// chronological order, reversed entries and their compensating entries
// included, showing the running balance as it was seen at each point in
// time.
func Statement(db *gorm.DB, retailerID, vendorID string) ([]models.CreditLedgerEntry, error) {
	var entries []models.CreditLedgerEntry
	q := db.Where("retailer_id = ?", retailerID)
	if vendorID != "" {
		q = q.Where("vendor_id = ?", vendorID)
	}
	if err := q.Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load ledger statement: %w", err)
	}
	return entries, nil
}
