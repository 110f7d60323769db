package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/models"
)

// RetailerMetrics are the per-retailer derived metrics, always
// recomputed from the ledger and order history rather than stored as
// truth.
type RetailerMetrics struct {
	OrdersLast30d        int64
	TotalPurchaseValue   decimal.Decimal
	AvgOrderValue        decimal.Decimal
	OnTimePaymentRatio   float64
	AvgPaymentDelayDays  float64
	CreditUtilizationPct float64
	OrderFrequencyPerWeek float64
	OverdueRatio         float64
}

// ComputeRetailerMetrics derives RetailerMetrics for retailerID over the
// trailing 30 days.
func ComputeRetailerMetrics(db *gorm.DB, retailerID string, retailer *models.Retailer, overdueBlockDays int) (RetailerMetrics, error) {
	since := time.Now().AddDate(0, 0, -30)

	var orders []models.Order
	if err := db.Where("retailer_id = ? AND created_at >= ?", retailerID, since).Find(&orders).Error; err != nil {
		return RetailerMetrics{}, fmt.Errorf("load orders for retailer metrics: %w", err)
	}

	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Total)
	}
	avg := decimal.Zero
	if len(orders) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(orders))))
	}

	onTime, delayed, totalDelayDays := paymentTimeliness(db, retailerID, since)
	onTimeRatio := 1.0
	avgDelay := 0.0
	if onTime+delayed > 0 {
		onTimeRatio = float64(onTime) / float64(onTime+delayed)
	}
	if delayed > 0 {
		avgDelay = totalDelayDays / float64(delayed)
	}

	utilization := 0.0
	if !retailer.CreditLimit.IsZero() {
		u, _ := retailer.OutstandingDebt.Div(retailer.CreditLimit).Mul(decimal.NewFromInt(100)).Float64()
		utilization = u
	}

	return RetailerMetrics{
		OrdersLast30d:         int64(len(orders)),
		TotalPurchaseValue:    total,
		AvgOrderValue:         avg,
		OnTimePaymentRatio:    onTimeRatio,
		AvgPaymentDelayDays:   avgDelay,
		CreditUtilizationPct:  utilization,
		OrderFrequencyPerWeek: float64(len(orders)) / (30.0 / 7.0),
		OverdueRatio:          overdueRatio(db, retailerID, overdueBlockDays),
	}, nil
}

// overdueRatio is the fraction of a retailer's non-reversed ORDER_CREDIT
// entries that are older than overdueBlockDays with no matching
// PAYMENT_DEBIT activity since — the same definition credit.OverdueLookup
// uses for the single oldest entry, generalized across all of them for the
// risk_score formula.
func overdueRatio(db *gorm.DB, retailerID string, overdueBlockDays int) float64 {
	cutoff := time.Now().AddDate(0, 0, -overdueBlockDays)

	var credits []models.CreditLedgerEntry
	if err := db.Where("retailer_id = ? AND transaction_type = ? AND is_reversed = ?",
		retailerID, models.TransactionOrderCredit, false).Find(&credits).Error; err != nil || len(credits) == 0 {
		return 0
	}

	overdue := 0
	for _, c := range credits {
		if !c.CreatedAt.Before(cutoff) {
			continue
		}
		var debitsSince int64
		db.Model(&models.CreditLedgerEntry{}).
			Where("retailer_id = ? AND transaction_type = ? AND created_at >= ?",
				retailerID, models.TransactionPaymentDebit, c.CreatedAt).
			Count(&debitsSince)
		if debitsSince == 0 {
			overdue++
		}
	}
	return float64(overdue) / float64(len(credits))
}

// RiskScoreConfig carries the risk_score formula's single external input:
// how many days past due a credit entry must be before it counts against
// the retailer.
type RiskScoreConfig struct {
	OverdueBlockDays int
}

// ComputeRiskScore applies the frozen risk_score formula: a weighted blend
// of overdue exposure, late-payment history, and credit utilization,
// clamped to [0,100]. CreditUtilizationPct arrives on a 0-100 scale; the
// other two inputs are already fractions.
func ComputeRiskScore(m RetailerMetrics) float64 {
	raw := 40*m.OverdueRatio + 30*(1-m.OnTimePaymentRatio) + 30*(m.CreditUtilizationPct/100)
	return clampFloat(raw, 0, 100)
}

// RecomputeAllRiskScores walks every retailer, recomputes RetailerMetrics
// and the derived risk_score, and writes the score back onto the
// retailers table. This is the performance-recompute ticker's
// retailer-side half; the vendor-side half is RecomputeAllVendorReliability.
func RecomputeAllRiskScores(db *gorm.DB, cfg RiskScoreConfig) (int, error) {
	var retailers []models.Retailer
	if err := db.Find(&retailers).Error; err != nil {
		return 0, fmt.Errorf("load retailers for risk recompute: %w", err)
	}

	updated := 0
	for i := range retailers {
		r := &retailers[i]
		metrics, err := ComputeRetailerMetrics(db, r.RetailerID, r, cfg.OverdueBlockDays)
		if err != nil {
			return updated, fmt.Errorf("compute retailer metrics for %s: %w", r.RetailerID, err)
		}
		score := ComputeRiskScore(metrics)
		if err := db.Model(&models.Retailer{}).Where("retailer_id = ?", r.RetailerID).
			Update("risk_score", score).Error; err != nil {
			return updated, fmt.Errorf("persist risk_score for %s: %w", r.RetailerID, err)
		}
		updated++
	}
	return updated, nil
}

// paymentTimeliness is a simplified proxy: a PAYMENT_DEBIT entry within
// 30 days of the most recent earlier ORDER_CREDIT counts as on-time.
func paymentTimeliness(db *gorm.DB, retailerID string, since time.Time) (onTime, delayed int, totalDelayDays float64) {
	var debits []models.CreditLedgerEntry
	if err := db.Where("retailer_id = ? AND transaction_type = ? AND created_at >= ?",
		retailerID, models.TransactionPaymentDebit, since).Find(&debits).Error; err != nil {
		return 0, 0, 0
	}
	const onTimeWindowDays = 30
	for _, d := range debits {
		var credit models.CreditLedgerEntry
		err := db.Where("retailer_id = ? AND transaction_type = ? AND created_at < ?",
			retailerID, models.TransactionOrderCredit, d.CreatedAt).
			Order("created_at DESC").First(&credit).Error
		if err != nil {
			continue
		}
		delayDays := d.CreatedAt.Sub(credit.CreatedAt).Hours() / 24
		if delayDays <= onTimeWindowDays {
			onTime++
		} else {
			delayed++
			totalDelayDays += delayDays - onTimeWindowDays
		}
	}
	return onTime, delayed, totalDelayDays
}

// VendorMetrics are the per-vendor derived metrics feeding the
// reliability_score formula.
type VendorMetrics struct {
	AcceptanceRate           float64
	CompletionRate           float64
	CancellationRate         float64
	AvgFulfillmentHours      float64
	PriceCompetitivenessIdx  float64
	ReliabilityScore         float64
}

// ComputeVendorMetrics derives VendorMetrics for vendorID over the
// trailing 90 days, then applies the reliability formula:
// 0.25*accept + 0.30*complete + 0.20*speed_score + 0.15*(100-cancel) + 0.10*price_competitiveness.
func ComputeVendorMetrics(db *gorm.DB, vendorID string) (VendorMetrics, error) {
	since := time.Now().AddDate(0, 0, -90)

	var orders []models.Order
	if err := db.Where("vendor_id = ? AND created_at >= ?", vendorID, since).Find(&orders).Error; err != nil {
		return VendorMetrics{}, fmt.Errorf("load orders for vendor metrics: %w", err)
	}
	if len(orders) == 0 {
		return VendorMetrics{ReliabilityScore: 50}, nil // neutral prior for a vendor with no history yet
	}

	var accepted, completed, cancelled int
	var fulfillmentHoursSum float64
	var fulfillmentCount int
	for _, o := range orders {
		if o.Status != models.OrderStatusPending {
			accepted++
		}
		if o.Status == models.OrderStatusDelivered {
			completed++
			if o.DeliveredAt != nil {
				fulfillmentHoursSum += o.DeliveredAt.Sub(o.CreatedAt).Hours()
				fulfillmentCount++
			}
		}
		if o.Status == models.OrderStatusCancelled {
			cancelled++
		}
	}

	acceptRate := pct(accepted, len(orders))
	completeRate := pct(completed, len(orders))
	cancelRate := pct(cancelled, len(orders))

	avgFulfillment := 0.0
	if fulfillmentCount > 0 {
		avgFulfillment = fulfillmentHoursSum / float64(fulfillmentCount)
	}
	speedScore := speedScoreFromHours(avgFulfillment)
	priceCompetitiveness := priceCompetitivenessIndex(db, vendorID)

	reliability := 0.25*acceptRate + 0.30*completeRate + 0.20*speedScore + 0.15*(100-cancelRate) + 0.10*priceCompetitiveness

	return VendorMetrics{
		AcceptanceRate:          acceptRate,
		CompletionRate:          completeRate,
		CancellationRate:        cancelRate,
		AvgFulfillmentHours:     avgFulfillment,
		PriceCompetitivenessIdx: priceCompetitiveness,
		ReliabilityScore:        reliability,
	}, nil
}

// RecomputeAllVendorReliability walks every vendor, recomputes
// VendorMetrics, and writes the resulting reliability_score back onto the
// vendors table. Vendor.ReliabilityScore is read directly off the row by
// internal/vendorselect during ranking, so this driver is what keeps it
// from going stale.
func RecomputeAllVendorReliability(db *gorm.DB) (int, error) {
	var vendors []models.Vendor
	if err := db.Find(&vendors).Error; err != nil {
		return 0, fmt.Errorf("load vendors for reliability recompute: %w", err)
	}

	updated := 0
	for i := range vendors {
		v := &vendors[i]
		metrics, err := ComputeVendorMetrics(db, v.VendorID)
		if err != nil {
			return updated, fmt.Errorf("compute vendor metrics for %s: %w", v.VendorID, err)
		}
		if err := db.Model(&models.Vendor{}).Where("vendor_id = ?", v.VendorID).
			Update("reliability_score", metrics.ReliabilityScore).Error; err != nil {
			return updated, fmt.Errorf("persist reliability_score for %s: %w", v.VendorID, err)
		}
		updated++
	}
	return updated, nil
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}

// speedScoreFromHours maps fulfillment time to a 0-100 score: same-day
// fulfillment (<=24h) scores 100, and the score falls linearly to 0 at
// 96h.
func speedScoreFromHours(hours float64) float64 {
	if hours <= 0 {
		return 100
	}
	const target = 24.0
	const worst = 96.0
	if hours >= worst {
		return 0
	}
	if hours <= target {
		return 100
	}
	return 100 * (worst - hours) / (worst - target)
}

// priceCompetitivenessIndex scores each of vendorID's prices against that
// product's average price across all vendors, scaled to [0,100] the same
// way ranking.priceScore does, and returns the mean score (50 when there
// is nothing to compare).
func priceCompetitivenessIndex(db *gorm.DB, vendorID string) float64 {
	var vendorProducts []models.VendorProduct
	if err := db.Where("vendor_id = ?", vendorID).Find(&vendorProducts).Error; err != nil || len(vendorProducts) == 0 {
		return 50
	}

	total := 0.0
	count := 0
	for _, vp := range vendorProducts {
		var marketAvg struct{ Avg float64 }
		if err := db.Model(&models.VendorProduct{}).
			Select("AVG(price) as avg").
			Where("product_id = ?", vp.ProductID).
			Scan(&marketAvg).Error; err != nil || marketAvg.Avg == 0 {
			continue
		}
		priceF, _ := vp.Price.Float64()
		score := 100 * (1 - maxFloat(0, priceF-marketAvg.Avg)/marketAvg.Avg)
		total += clampFloat(score, 0, 100)
		count++
	}
	if count == 0 {
		return 50
	}
	return total / float64(count)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
