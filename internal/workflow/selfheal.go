package workflow

import (
	"time"

	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/models"
)

// StuckAction is the remediation the self-healing sweep reports for an
// order that has sat in one status too long. The sweep logs it with the
// order; nothing in this module performs it.
type StuckAction string

const (
	ActionReassignVendor StuckAction = "REASSIGN_VENDOR"
	ActionRetryWorkflow  StuckAction = "RETRY_WORKFLOW"
)

// stuckThreshold pairs a status with how long it may sit unprocessed
// before it's considered stuck, and what to do about it.
type stuckThreshold struct {
	status    models.OrderStatus
	threshold time.Duration
	action    StuckAction
}

// StuckThresholds are the default stuck-order windows; they fire at
// strictly greater than the threshold, never at equality.
var StuckThresholds = []stuckThreshold{
	{models.OrderStatusPending, 30 * time.Minute, ActionReassignVendor},
	{models.OrderStatusConfirmed, 60 * time.Minute, ActionRetryWorkflow},
	{models.OrderStatusAccepted, 120 * time.Minute, ActionReassignVendor},
	{models.OrderStatusDispatched, 180 * time.Minute, ActionRetryWorkflow},
}

// StuckOrder is one order flagged by the sweep along with the action to
// take and how long it's been stuck.
type StuckOrder struct {
	Order  models.Order
	Action StuckAction
	Stuck  time.Duration
}

// SelfHealer detects orders stuck past their status-specific threshold and
// reports the remediation action; it does not itself perform the
// remediation — that is the caller's job (reassign vendor / retry
// workflow), keeping this package's responsibility to detection +
// recording.
type SelfHealer struct {
	db *gorm.DB
}

func NewSelfHealer(db *gorm.DB) *SelfHealer {
	return &SelfHealer{db: db}
}

// DetectStuck scans every configured status/threshold pair and returns the
// orders that have exceeded it, strictly (">" not ">=").
func (h *SelfHealer) DetectStuck(now time.Time) ([]StuckOrder, error) {
	var stuck []StuckOrder
	for _, t := range StuckThresholds {
		var orders []models.Order
		cutoff := now.Add(-t.threshold)
		err := h.db.Where("status = ? AND updated_at < ?", t.status, cutoff).Find(&orders).Error
		if err != nil {
			return nil, apperrors.NewTransient("SELFHEAL_SCAN_FAILED", "failed to scan for stuck orders", err)
		}
		for _, o := range orders {
			stuck = append(stuck, StuckOrder{Order: o, Action: t.action, Stuck: now.Sub(o.UpdatedAt)})
		}
	}
	return stuck, nil
}
