package vendorselect

import (
	"math"

	"github.com/shopspring/decimal"
)

// Score computes the weighted ranking score for one candidate given the
// requesting retailer's location and the market average price across all
// eligible candidates.
func Score(c Candidate, loc RetailerLocation, marketAvgPrice decimal.Decimal, weights Weights) ScoredCandidate {
	avail := availabilityScore(c)
	prox := proximityScore(c, loc)
	workload := workloadScore(c)
	price := priceScore(c, marketAvgPrice)
	reliability := clamp(c.ReliabilityScore, 0, 100)

	total := weights.Availability*avail +
		weights.Proximity*prox +
		weights.Workload*workload +
		weights.Price*price +
		weights.Reliability*reliability

	return ScoredCandidate{
		Candidate:         c,
		AvailabilityScore: avail,
		ProximityScore:    prox,
		WorkloadScore:     workload,
		PriceScore:        price,
		ReliabilityScore2: reliability,
		TotalScore:        total,
	}
}

// availabilityScore normalizes stock to [0,100]: it scales linearly up to
// 1000 units and is clamped at 100 beyond that.
func availabilityScore(c Candidate) float64 {
	const saturationPoint = 1000.0
	if c.Stock <= 0 {
		return 0
	}
	score := (c.Stock / saturationPoint) * 100
	return clamp(score, 0, 100)
}

// proximityScore implements the three-tier location score between the
// vendor and the requesting retailer: serving the retailer's delivery
// zone scores highest, sharing a district scores next, anything else
// scores low but nonzero. A retailer with no recorded location matches
// nothing and every vendor scores the floor.
func proximityScore(c Candidate, loc RetailerLocation) float64 {
	if loc.DeliveryZone != "" && c.DeliveryZone == loc.DeliveryZone {
		return 100
	}
	if loc.District != "" && c.District == loc.District {
		return 70
	}
	return 30
}

func workloadScore(c Candidate) float64 {
	if c.MaxActiveOrders <= 0 {
		return 0
	}
	return clamp(100*(1-float64(c.ActiveOrders)/float64(c.MaxActiveOrders)), 0, 100)
}

// priceScore rewards pricing at or below market average and penalizes
// above-average pricing linearly.
func priceScore(c Candidate, marketAvg decimal.Decimal) float64 {
	if marketAvg.IsZero() {
		return 100
	}
	priceF, _ := c.Price.Float64()
	avgF, _ := marketAvg.Float64()
	over := math.Max(0, priceF-avgF)
	return clamp(100*(1-over/avgF), 0, 100)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// MarketAveragePrice computes the mean price across candidates, used as
// the denominator for priceScore.
func MarketAveragePrice(candidates []Candidate) decimal.Decimal {
	if len(candidates) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range candidates {
		sum = sum.Add(c.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(candidates))))
}

// RankAll scores every candidate against the requesting retailer's
// location and returns them sorted descending by TotalScore.
func RankAll(candidates []Candidate, loc RetailerLocation, weights Weights) []ScoredCandidate {
	avg := MarketAveragePrice(candidates)
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, Score(c, loc, avg, weights))
	}
	// simple insertion sort, shortlists are small (tens of vendors at most)
	for i := 1; i < len(scored); i++ {
		j := i
		for j > 0 && scored[j-1].TotalScore < scored[j].TotalScore {
			scored[j-1], scored[j] = scored[j], scored[j-1]
			j--
		}
	}
	return scored
}
