package vendorselect

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/models"
)

// DecisionLogStore persists immutable VendorDecisionLog rows and serves
// the ExplainDecision replay contract.
type DecisionLogStore struct {
	db *gorm.DB
}

func NewDecisionLogStore(db *gorm.DB) *DecisionLogStore {
	return &DecisionLogStore{db: db}
}

// Append records a completed Decision against orderID. The log is
// write-once: nothing in this package ever updates or deletes a row here.
func (s *DecisionLogStore) Append(tx *gorm.DB, orderID string, d Decision) error {
	shortlistJSON, err := json.Marshal(d.Shortlist)
	if err != nil {
		return fmt.Errorf("marshal shortlist: %w", err)
	}
	traceJSON, err := json.Marshal(d.FilterTrace)
	if err != nil {
		return fmt.Errorf("marshal filter trace: %w", err)
	}

	row := &models.VendorDecisionLog{
		DecisionID:      d.DecisionID,
		OrderID:         orderID,
		EligibleVendors: string(shortlistJSON),
		ChosenVendorID:  d.ChosenVendorID,
		Strategy:        string(d.Strategy),
		FilterTrace:     string(traceJSON),
		CreatedAt:       time.Now(),
	}
	db := s.db
	if tx != nil {
		db = tx
	}
	if err := db.Create(row).Error; err != nil {
		return fmt.Errorf("append vendor decision log: %w", err)
	}
	return nil
}

// NewDecisionID mints a fresh decision identifier for the caller to embed
// into the Decision before Append.
func NewDecisionID() string {
	return uuid.NewString()
}

// LastChosenVendor returns the vendor chosen in the most recent decision
// log entry for productID, used to seed the round-robin strategy's
// starting point.
func (s *DecisionLogStore) LastChosenVendor(productID string) (string, error) {
	var row models.VendorDecisionLog
	err := s.db.
		Joins("JOIN orders ON orders.order_id = vendor_decision_logs.order_id").
		Joins("JOIN line_items ON line_items.order_id = orders.order_id").
		Where("line_items.product_id = ?", productID).
		Order("vendor_decision_logs.created_at DESC").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("load last chosen vendor: %w", err)
	}
	return row.ChosenVendorID, nil
}

// ExplainDecision replays a persisted decision by ID, decoding its
// shortlist and filter trace back into structured form.
type Explanation struct {
	DecisionID     string
	OrderID        string
	ChosenVendorID string
	Strategy       string
	Shortlist      []ScoredCandidate
	FilterTrace    map[string]int
	CreatedAt      time.Time
}

func (s *DecisionLogStore) ExplainDecision(decisionID string) (*Explanation, error) {
	var row models.VendorDecisionLog
	if err := s.db.Where("decision_id = ?", decisionID).First(&row).Error; err != nil {
		return nil, fmt.Errorf("load decision log %s: %w", decisionID, err)
	}

	var shortlist []ScoredCandidate
	if err := json.Unmarshal([]byte(row.EligibleVendors), &shortlist); err != nil {
		return nil, fmt.Errorf("decode shortlist: %w", err)
	}
	var trace map[string]int
	if err := json.Unmarshal([]byte(row.FilterTrace), &trace); err != nil {
		return nil, fmt.Errorf("decode filter trace: %w", err)
	}

	return &Explanation{
		DecisionID:     row.DecisionID,
		OrderID:        row.OrderID,
		ChosenVendorID: row.ChosenVendorID,
		Strategy:       row.Strategy,
		Shortlist:      shortlist,
		FilterTrace:    trace,
		CreatedAt:      row.CreatedAt,
	}, nil
}
