package vendorselect

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/cache"
	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/models"
)

// VendorRepository loads candidate vendors for a product; implemented
// over gorm in production and over in-memory fixtures in tests.
type VendorRepository interface {
	LoadOptions(productID string) ([]VendorOption, error)
}

// GormVendorRepository is the production VendorRepository.
type GormVendorRepository struct {
	db *gorm.DB
}

func NewGormVendorRepository(db *gorm.DB) *GormVendorRepository {
	return &GormVendorRepository{db: db}
}

func (r *GormVendorRepository) LoadOptions(productID string) ([]VendorOption, error) {
	var vendorProducts []models.VendorProduct
	if err := r.db.Where("product_id = ?", productID).Find(&vendorProducts).Error; err != nil {
		return nil, fmt.Errorf("load vendor products for %s: %w", productID, err)
	}

	options := make([]VendorOption, 0, len(vendorProducts))
	for _, vp := range vendorProducts {
		var vendor models.Vendor
		if err := r.db.Where("vendor_id = ?", vp.VendorID).First(&vendor).Error; err != nil {
			continue
		}
		share, err := marketShare(r.db, vp.VendorID, productID)
		if err != nil {
			share = 0
		}
		options = append(options, VendorOption{Vendor: vendor, VendorProduct: vp, MarketSharePct: share})
	}
	return options, nil
}

// retailerLocation resolves the requesting retailer's district/zone for
// the proximity subscore. Best-effort: an unknown retailer ranks every
// vendor at the proximity floor rather than failing the selection.
func retailerLocation(db *gorm.DB, retailerID string) RetailerLocation {
	var retailer models.Retailer
	if err := db.Where("retailer_id = ?", retailerID).First(&retailer).Error; err != nil {
		return RetailerLocation{}
	}
	return RetailerLocation{District: retailer.District, DeliveryZone: retailer.DeliveryZone}
}

// marketShare computes a vendor's 30-day share of orders (of any status)
// for productID, by count of line items, the simplest faithful proxy for
// market concentration.
func marketShare(db *gorm.DB, vendorID, productID string) (float64, error) {
	since := time.Now().AddDate(0, 0, -30)

	var total int64
	if err := db.Table("line_items").
		Joins("JOIN orders ON orders.order_id = line_items.order_id").
		Where("line_items.product_id = ? AND orders.created_at >= ?", productID, since).
		Count(&total).Error; err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	var vendorCount int64
	if err := db.Table("line_items").
		Joins("JOIN orders ON orders.order_id = line_items.order_id").
		Where("line_items.product_id = ? AND orders.vendor_id = ? AND orders.created_at >= ?", productID, vendorID, since).
		Count(&vendorCount).Error; err != nil {
		return 0, err
	}
	return float64(vendorCount) / float64(total), nil
}

// Selector runs the full eligibility -> ranking -> strategy pipeline and
// returns the decision for the caller to persist.
type Selector struct {
	repo     VendorRepository
	cache    *cache.VendorCache
	logStore *DecisionLogStore
	log      *logging.Logger
	cfg      EligibilityConfig
	strategy Strategy
	weights  Weights
}

func NewSelector(repo VendorRepository, vc *cache.VendorCache, logStore *DecisionLogStore, log *logging.Logger, cfg EligibilityConfig, strategy Strategy) *Selector {
	return &Selector{repo: repo, cache: vc, logStore: logStore, log: log, cfg: cfg, strategy: strategy, weights: DefaultWeights()}
}

// Select runs the pipeline for req and returns exactly one chosen vendor,
// or a VENDOR_UNAVAILABLE error if the hard eligibility stage yields
// nothing. Callers persist the returned Decision via tx so it shares the
// atomic order-write transaction.
func (s *Selector) Select(tx *gorm.DB, req Request) (Decision, error) {
	options, err := s.repo.LoadOptions(req.ProductID)
	if err != nil {
		return Decision{}, apperrors.NewTransient("VENDOR_LOAD_FAILED", "failed to load candidate vendors", err)
	}
	for i := range options {
		if options[i].Vendor.MaxActiveOrders == 0 {
			options[i].Vendor.MaxActiveOrders = s.cfg.DefaultMaxActiveOrders
		}
		if options[i].Vendor.MaxPendingOrders == 0 {
			options[i].Vendor.MaxPendingOrders = s.cfg.DefaultMaxPendingOrders
		}
	}

	trace := map[string]int{"initial": len(options)}

	hard := FilterSellsApprovedActiveStock(options, req.Quantity, req.ExcludeList)
	trace["sells_approved_active_stock"] = len(hard)
	if len(hard) == 0 {
		return Decision{}, apperrors.NewVendorUnavailable("NO_ELIGIBLE_VENDOR", "no vendor currently sells this product with sufficient stock")
	}

	workingHours, fellBack := FilterWorkingHours(hard, time.Now(), s.cfg.WorkingHoursEnabled)
	trace["working_hours"] = len(workingHours)
	if fellBack {
		s.log.Warn("working hours filter emptied candidate set, falling back", zap.String("product_id", req.ProductID))
	}

	loadFiltered, fellBack := FilterLoadCapacity(workingHours)
	trace["load_capacity"] = len(loadFiltered)
	if fellBack {
		s.log.Warn("load capacity filter emptied candidate set, falling back", zap.String("product_id", req.ProductID))
	}

	monopolyFiltered, fellBack := FilterMonopolyPrevention(loadFiltered, s.cfg.MonopolyThreshold)
	trace["monopoly_prevention"] = len(monopolyFiltered)
	if fellBack {
		s.log.Warn("monopoly prevention filter emptied candidate set, falling back", zap.String("product_id", req.ProductID))
	}

	candidates := make([]Candidate, 0, len(monopolyFiltered))
	for _, o := range monopolyFiltered {
		candidates = append(candidates, Candidate{
			VendorID:         o.Vendor.VendorID,
			Price:            o.VendorProduct.Price,
			Stock:            o.VendorProduct.Stock,
			ActiveOrders:     o.Vendor.ActiveOrders,
			MaxActiveOrders:  o.Vendor.MaxActiveOrders,
			District:         o.Vendor.District,
			DeliveryZone:     o.Vendor.DeliveryZone,
			ReliabilityScore: o.Vendor.ReliabilityScore,
			MarketSharePct:   o.MarketSharePct,
		})
	}

	ranked := RankAll(candidates, retailerLocation(tx, req.RetailerID), s.weights)

	lastVendor, err := s.logStore.LastChosenVendor(req.ProductID)
	if err != nil {
		lastVendor = ""
	}
	chosen := ApplyStrategy(ranked, s.strategy, lastVendor)

	decision := Decision{
		DecisionID:     NewDecisionID(),
		ChosenVendorID: chosen.VendorID,
		Shortlist:      ranked,
		Strategy:       s.strategy,
		FilterTrace:    trace,
		Reason:         fmt.Sprintf("selected by %s strategy with total score %.2f", s.strategy, chosen.TotalScore),
	}

	if s.cache != nil {
		s.cache.Invalidate(chosen.VendorID)
	}

	return decision, nil
}
