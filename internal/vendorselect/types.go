// Package vendorselect implements eligibility filtering, weighted ranking,
// and strategy tie-break for assigning an order to exactly one vendor,
// with an immutable decision log for audit and replay.
package vendorselect

import "github.com/shopspring/decimal"

// Request describes what the caller needs routed to a vendor.
type Request struct {
	ProductID   string
	Quantity    decimal.Decimal
	RetailerID  string
	ExcludeList []string
}

// RetailerLocation is the requesting retailer's side of the proximity
// comparison: where the order has to be delivered.
type RetailerLocation struct {
	District     string
	DeliveryZone string
}

// Candidate is a vendor under consideration, carrying everything the
// ranking stage needs without a further database round trip.
type Candidate struct {
	VendorID         string
	Price            decimal.Decimal
	Stock            float64
	ActiveOrders     int
	MaxActiveOrders  int
	District         string
	DeliveryZone     string
	ReliabilityScore float64
	MarketSharePct   float64 // 30-day market share of this product, [0,1]
}

// ScoredCandidate is a Candidate plus its ranking breakdown.
type ScoredCandidate struct {
	Candidate
	AvailabilityScore float64
	ProximityScore    float64
	WorkloadScore     float64
	PriceScore        float64
	ReliabilityScore2 float64 // the weighted-subscore form of Candidate.ReliabilityScore, kept distinct to avoid shadowing
	TotalScore        float64
}

// Weights are the ranking subscore weights, summing to 1.
type Weights struct {
	Availability float64
	Proximity    float64
	Workload     float64
	Price        float64
	Reliability  float64
}

// DefaultWeights returns the default ranking weights.
func DefaultWeights() Weights {
	return Weights{Availability: 0.30, Proximity: 0.20, Workload: 0.15, Price: 0.20, Reliability: 0.15}
}

// Strategy is the configured tie-break among top-ranked candidates.
type Strategy string

const (
	StrategyRoundRobin  Strategy = "round-robin"
	StrategyLeastLoaded Strategy = "least-loaded"
)

// Decision is the full outcome of one vendor-selection run.
type Decision struct {
	DecisionID      string
	ChosenVendorID  string
	Shortlist       []ScoredCandidate
	Strategy        Strategy
	FilterTrace     map[string]int // stage name -> candidate count after that stage
	Reason          string
}
