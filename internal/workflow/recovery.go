package workflow

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/models"
)

// DefaultMaxRecoveryAttempts bounds OrderRecoveryState re-drives before
// escalating to MANUAL_INTERVENTION.
const DefaultMaxRecoveryAttempts = 5

// RecoveryManager keeps a failing order in PENDING rather than ever
// writing status=FAILED: it records where processing broke. Each recovery
// sweep counts one attempt per pending recovery and escalates once the
// attempts run out; it does not re-run the failed step.
type RecoveryManager struct {
	db          *gorm.DB
	maxAttempts int
}

func NewRecoveryManager(db *gorm.DB, maxAttempts int) *RecoveryManager {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRecoveryAttempts
	}
	return &RecoveryManager{db: db, maxAttempts: maxAttempts}
}

// Record creates (or refreshes) the OrderRecoveryState for orderID at
// failurePoint. A second failure of the same order updates the existing
// row rather than creating a duplicate.
func (m *RecoveryManager) Record(orderID, failurePoint string, cause error) (*models.OrderRecoveryState, error) {
	var existing models.OrderRecoveryState
	err := m.db.Where("order_id = ?", orderID).First(&existing).Error

	now := time.Now()
	switch err {
	case gorm.ErrRecordNotFound:
		state := &models.OrderRecoveryState{
			RecoveryID:     uuid.NewString(),
			OrderID:        orderID,
			FailurePoint:   failurePoint,
			RecoveryStatus: models.RecoveryStatusPending,
			Attempts:       0,
			MaxAttempts:    m.maxAttempts,
			LastError:      causeMessage(cause),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := m.db.Create(state).Error; err != nil {
			return nil, apperrors.NewTransient("RECOVERY_RECORD_FAILED", "failed to record order recovery state", err)
		}
		return state, nil
	case nil:
		existing.FailurePoint = failurePoint
		existing.LastError = causeMessage(cause)
		existing.UpdatedAt = now
		if existing.RecoveryStatus == models.RecoveryStatusResolved {
			existing.RecoveryStatus = models.RecoveryStatusPending
		}
		if err := m.db.Save(&existing).Error; err != nil {
			return nil, apperrors.NewTransient("RECOVERY_UPDATE_FAILED", "failed to update order recovery state", err)
		}
		return &existing, nil
	default:
		return nil, apperrors.NewTransient("RECOVERY_LOOKUP_FAILED", "failed to look up order recovery state", err)
	}
}

// Pending returns OrderRecoveryState rows eligible for a re-drive attempt.
func (m *RecoveryManager) Pending() ([]models.OrderRecoveryState, error) {
	var states []models.OrderRecoveryState
	err := m.db.Where("recovery_status IN ?", []models.RecoveryStatus{models.RecoveryStatusPending, models.RecoveryStatusInProgress}).
		Find(&states).Error
	if err != nil {
		return nil, apperrors.NewTransient("RECOVERY_PENDING_QUERY_FAILED", "failed to query pending recoveries", err)
	}
	return states, nil
}

// BeginAttempt marks a recovery IN_PROGRESS and increments its attempt
// counter, returning ErrRecoveryExhausted once MaxAttempts is reached so
// the caller raises MANUAL_INTERVENTION instead of retrying forever.
func (m *RecoveryManager) BeginAttempt(state *models.OrderRecoveryState) error {
	if state.Exhausted() {
		state.RecoveryStatus = models.RecoveryStatusExhausted
		state.UpdatedAt = time.Now()
		_ = m.db.Save(state).Error
		return ErrRecoveryExhausted
	}
	state.Attempts++
	state.RecoveryStatus = models.RecoveryStatusInProgress
	state.UpdatedAt = time.Now()
	return m.db.Save(state).Error
}

// Resolve marks a recovery successfully completed.
func (m *RecoveryManager) Resolve(state *models.OrderRecoveryState) error {
	now := time.Now()
	state.RecoveryStatus = models.RecoveryStatusResolved
	state.ResolvedAt = &now
	state.UpdatedAt = now
	return m.db.Save(state).Error
}

// ErrRecoveryExhausted signals that an order's recovery attempts are used
// up; the caller should raise a MANUAL_INTERVENTION notification. Admins
// are deliberately *not* notified before this point.
var ErrRecoveryExhausted = apperrors.NewPermanent("RECOVERY_ATTEMPTS_EXHAUSTED", "order recovery attempts exhausted, manual intervention required", nil)

func causeMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
