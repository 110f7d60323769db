package vendorselect

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mandiflow/core/internal/models"
)

func vendorOption(id string, approved, active, available bool, stock float64, activeOrders, maxActive int) VendorOption {
	return VendorOption{
		Vendor: models.Vendor{
			VendorID: id, IsApproved: approved, IsActive: active,
			ActiveOrders: activeOrders, MaxActiveOrders: maxActive, MaxPendingOrders: 5,
			WorkingHoursStart: 0, WorkingHoursEnd: 23, TimeZone: "UTC",
		},
		VendorProduct: models.VendorProduct{
			VendorID: id, IsAvailable: available, Stock: stock, MinOrderQty: 1, MaxOrderQty: 1000,
			Price: decimal.NewFromInt(100),
		},
	}
}

func TestFilterSellsApprovedActiveStock_ExcludesInactiveAndLowStock(t *testing.T) {
	opts := []VendorOption{
		vendorOption("v1", true, true, true, 50, 0, 10),
		vendorOption("v2", false, true, true, 50, 0, 10),
		vendorOption("v3", true, true, true, 2, 0, 10),
	}
	out := FilterSellsApprovedActiveStock(opts, decimal.NewFromInt(10), nil)
	assert.Len(t, out, 1)
	assert.Equal(t, "v1", out[0].Vendor.VendorID)
}

func TestFilterSellsApprovedActiveStock_RespectsExcludeList(t *testing.T) {
	opts := []VendorOption{vendorOption("v1", true, true, true, 50, 0, 10)}
	out := FilterSellsApprovedActiveStock(opts, decimal.NewFromInt(10), []string{"v1"})
	assert.Empty(t, out)
}

func TestFilterLoadCapacity_FallsBackWhenEmpty(t *testing.T) {
	opts := []VendorOption{vendorOption("v1", true, true, true, 50, 10, 10)} // at capacity
	out, fellBack := FilterLoadCapacity(opts)
	assert.True(t, fellBack)
	assert.Equal(t, opts, out)
}

func TestFilterLoadCapacity_KeepsEligible(t *testing.T) {
	opts := []VendorOption{
		vendorOption("v1", true, true, true, 50, 10, 10),
		vendorOption("v2", true, true, true, 50, 2, 10),
	}
	out, fellBack := FilterLoadCapacity(opts)
	assert.False(t, fellBack)
	assert.Len(t, out, 1)
	assert.Equal(t, "v2", out[0].Vendor.VendorID)
}

func TestRankAll_OrdersDescending(t *testing.T) {
	candidates := []Candidate{
		{VendorID: "low", Stock: 10, ActiveOrders: 9, MaxActiveOrders: 10, Price: decimal.NewFromInt(150), ReliabilityScore: 50},
		{VendorID: "high", Stock: 900, ActiveOrders: 1, MaxActiveOrders: 10, Price: decimal.NewFromInt(90), ReliabilityScore: 95, DeliveryZone: "zone-a"},
	}
	ranked := RankAll(candidates, RetailerLocation{DeliveryZone: "zone-a"}, DefaultWeights())
	assert.Equal(t, "high", ranked[0].VendorID)
}

func TestProximityScore_ComparesRetailerAndVendorLocations(t *testing.T) {
	loc := RetailerLocation{District: "north", DeliveryZone: "zone-a"}

	zoneMatch := Candidate{VendorID: "z", District: "south", DeliveryZone: "zone-a"}
	districtMatch := Candidate{VendorID: "d", District: "north", DeliveryZone: "zone-b"}
	noMatch := Candidate{VendorID: "n", District: "south", DeliveryZone: "zone-b"}

	assert.Equal(t, 100.0, proximityScore(zoneMatch, loc))
	assert.Equal(t, 70.0, proximityScore(districtMatch, loc))
	assert.Equal(t, 30.0, proximityScore(noMatch, loc))
}

func TestProximityScore_UnknownRetailerLocationScoresFloor(t *testing.T) {
	vendor := Candidate{VendorID: "v", District: "north", DeliveryZone: "zone-a"}
	assert.Equal(t, 30.0, proximityScore(vendor, RetailerLocation{}))
}

func TestRankAll_ProximityBreaksOtherwiseEqualVendors(t *testing.T) {
	near := Candidate{VendorID: "near", Stock: 100, ActiveOrders: 2, MaxActiveOrders: 10, Price: decimal.NewFromInt(100), ReliabilityScore: 80, DeliveryZone: "zone-a"}
	far := Candidate{VendorID: "far", Stock: 100, ActiveOrders: 2, MaxActiveOrders: 10, Price: decimal.NewFromInt(100), ReliabilityScore: 80, DeliveryZone: "zone-b"}

	ranked := RankAll([]Candidate{far, near}, RetailerLocation{DeliveryZone: "zone-a"}, DefaultWeights())
	assert.Equal(t, "near", ranked[0].VendorID)
	assert.Greater(t, ranked[0].TotalScore, ranked[1].TotalScore)
}

func TestApplyStrategy_RoundRobinPicksNextAfterLast(t *testing.T) {
	group := []ScoredCandidate{
		{Candidate: Candidate{VendorID: "a"}, TotalScore: 80},
		{Candidate: Candidate{VendorID: "b"}, TotalScore: 80},
		{Candidate: Candidate{VendorID: "c"}, TotalScore: 80},
	}
	chosen := ApplyStrategy(group, StrategyRoundRobin, "a")
	assert.Equal(t, "b", chosen.VendorID)
}

func TestApplyStrategy_LeastLoadedTieBreak(t *testing.T) {
	group := []ScoredCandidate{
		{Candidate: Candidate{VendorID: "a", ActiveOrders: 5}, TotalScore: 80},
		{Candidate: Candidate{VendorID: "b", ActiveOrders: 2}, TotalScore: 80},
	}
	chosen := ApplyStrategy(group, StrategyLeastLoaded, "")
	assert.Equal(t, "b", chosen.VendorID)
}

func TestApplyStrategy_SingleCandidateShortCircuits(t *testing.T) {
	group := []ScoredCandidate{{Candidate: Candidate{VendorID: "only"}, TotalScore: 50}}
	chosen := ApplyStrategy(group, StrategyRoundRobin, "")
	assert.Equal(t, "only", chosen.VendorID)
}
