package vendorselect

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/metrics"
	"github.com/mandiflow/core/internal/models"
)

// ReassignmentConfig carries the reassignment deadline and attempt-budget knobs.
type ReassignmentConfig struct {
	ResponseDeadline time.Duration // default 2h
	MaxAttempts      int           // default 5
}

// RetryStore persists VendorAssignmentRetry rows.
type RetryStore struct {
	db *gorm.DB
}

func NewRetryStore(db *gorm.DB) *RetryStore {
	return &RetryStore{db: db}
}

// Schedule records a new assignment attempt awaiting the vendor's
// response, computing its deadline from cfg.ResponseDeadline.
func (r *RetryStore) Schedule(orderID, vendorID string, attemptNumber int, cfg ReassignmentConfig) (*models.VendorAssignmentRetry, error) {
	now := time.Now()
	retry := &models.VendorAssignmentRetry{
		RetryID:          uuid.NewString(),
		OrderID:          orderID,
		VendorID:         vendorID,
		AttemptNumber:    attemptNumber,
		Status:           models.AssignmentAwaitingResponse,
		ResponseDeadline: now.Add(cfg.ResponseDeadline),
		CreatedAt:        now,
	}
	if err := r.db.Create(retry).Error; err != nil {
		return nil, fmt.Errorf("schedule vendor assignment retry: %w", err)
	}
	return retry, nil
}

// MarkAccepted records the vendor's acceptance.
func (r *RetryStore) MarkAccepted(retry *models.VendorAssignmentRetry) error {
	retry.Status = models.AssignmentAccepted
	return r.db.Save(retry).Error
}

// MarkTimedOut records that the vendor failed to respond by its deadline.
func (r *RetryStore) MarkTimedOut(retry *models.VendorAssignmentRetry, reason string) error {
	retry.Status = models.AssignmentTimedOut
	retry.FailureReason = reason
	return r.db.Save(retry).Error
}

// ExpiredAwaitingResponse returns every retry still AWAITING_RESPONSE
// whose deadline has passed, for the recovery sweep to act on.
func (r *RetryStore) ExpiredAwaitingResponse(now time.Time) ([]models.VendorAssignmentRetry, error) {
	var retries []models.VendorAssignmentRetry
	err := r.db.Where("status = ? AND response_deadline < ?", models.AssignmentAwaitingResponse, now).
		Find(&retries).Error
	if err != nil {
		return nil, fmt.Errorf("load expired vendor assignment retries: %w", err)
	}
	return retries, nil
}

// AttemptCount reports how many attempts have been made for orderID so
// far, used to enforce cfg.MaxAttempts.
func (r *RetryStore) AttemptCount(orderID string) (int, error) {
	var count int64
	if err := r.db.Model(&models.VendorAssignmentRetry{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count vendor assignment retries for %s: %w", orderID, err)
	}
	return int(count), nil
}

// ExcludedVendors returns the vendor IDs already attempted for orderID,
// to seed the next Selector.Select's exclude_list.
func (r *RetryStore) ExcludedVendors(orderID string) ([]string, error) {
	var retries []models.VendorAssignmentRetry
	if err := r.db.Where("order_id = ?", orderID).Find(&retries).Error; err != nil {
		return nil, fmt.Errorf("load vendor assignment retries for %s: %w", orderID, err)
	}
	excluded := make([]string, 0, len(retries))
	for _, retry := range retries {
		excluded = append(excluded, retry.VendorID)
	}
	return excluded, nil
}

// Reassigner drives the deadline-driven reassignment loop: on
// vendor timeout it re-runs Selector.Select with the previously attempted
// vendors excluded, up to MaxAttempts; beyond that the order escalates to
// manual routing while remaining PENDING.
type Reassigner struct {
	selector *Selector
	retries  *RetryStore
	cfg      ReassignmentConfig
}

func NewReassigner(selector *Selector, retries *RetryStore, cfg ReassignmentConfig) *Reassigner {
	return &Reassigner{selector: selector, retries: retries, cfg: cfg}
}

// ErrEscalateToManualRouting signals attempt exhaustion; the recovery
// sweep logs it as a warning and the order stays PENDING, never FAILED.
// No admin notification is sent for it.
var ErrEscalateToManualRouting = apperrors.NewVendorUnavailable("VENDOR_ATTEMPTS_EXHAUSTED", "vendor reassignment attempts exhausted, escalating to manual routing")

// Reassign runs one reassignment attempt for orderID/productID after a
// prior timeout, scheduling a new VendorAssignmentRetry on success.
func (a *Reassigner) Reassign(tx *gorm.DB, orderID string, req Request) (Decision, *models.VendorAssignmentRetry, error) {
	attemptCount, err := a.retries.AttemptCount(orderID)
	if err != nil {
		return Decision{}, nil, err
	}
	if attemptCount >= a.cfg.MaxAttempts {
		return Decision{}, nil, ErrEscalateToManualRouting
	}

	excluded, err := a.retries.ExcludedVendors(orderID)
	if err != nil {
		return Decision{}, nil, err
	}
	req.ExcludeList = append(req.ExcludeList, excluded...)

	decision, err := a.selector.Select(tx, req)
	if err != nil {
		return Decision{}, nil, err
	}

	retry, err := a.retries.Schedule(orderID, decision.ChosenVendorID, attemptCount+1, a.cfg)
	if err != nil {
		return Decision{}, nil, err
	}
	return decision, retry, nil
}

// ReassignExpired drives one timeout-triggered reassignment for an order
// whose VendorAssignmentRetry deadline has passed: it marks the expired
// retry TIMED_OUT, re-runs selection excluding every vendor already
// attempted, and updates order.vendor_id exactly once. The order's status
// is left untouched — it remains PENDING throughout.
func (a *Reassigner) ReassignExpired(db *gorm.DB, retry *models.VendorAssignmentRetry) error {
	if err := a.retries.MarkTimedOut(retry, "vendor did not respond by response_deadline"); err != nil {
		return fmt.Errorf("mark vendor retry timed out: %w", err)
	}

	var order models.Order
	if err := db.Where("order_id = ?", retry.OrderID).Preload("LineItems").First(&order).Error; err != nil {
		return fmt.Errorf("load order %s for reassignment: %w", retry.OrderID, err)
	}
	if len(order.LineItems) == 0 {
		return fmt.Errorf("order %s has no line items to reassign", retry.OrderID)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		decision, _, err := a.Reassign(tx, order.OrderID, Request{
			ProductID:  order.LineItems[0].ProductID,
			Quantity:   order.LineItems[0].Quantity,
			RetailerID: order.RetailerID,
		})
		if err != nil {
			return err
		}
		if err := a.selector.logStore.Append(tx, order.OrderID, decision); err != nil {
			return err
		}
		metrics.VendorReassignments.WithLabelValues("timeout").Inc()
		return tx.Model(&models.Order{}).Where("order_id = ?", order.OrderID).
			Update("vendor_id", decision.ChosenVendorID).Error
	})
}
