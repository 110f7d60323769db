package workflow

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/metrics"
	"github.com/mandiflow/core/internal/models"
)

// SweepInterval is how often the recovery worker runs.
const SweepInterval = 2 * time.Minute

// StartupSettle is a 10-second settle interval. Nothing applies it: the
// first sweep runs on the scheduler's first 2-minute tick.
const StartupSettle = 10 * time.Second

// NotifyFunc raises an admin notification. Only MANUAL_INTERVENTION cases
// call it — first detection and successful recovery are silent.
type NotifyFunc func(kind, message string, fields map[string]interface{})

// ReassignExpiredFunc re-runs vendor selection for one expired
// VendorAssignmentRetry, excluding vendors already attempted. It is
// supplied by the caller (wiring vendorselect.Reassigner) to avoid an
// import cycle between workflow and vendorselect.
type ReassignExpiredFunc func(retry *models.VendorAssignmentRetry) error

// RecoveryWorker is the single worker that owns both sweep
// responsibilities: order recovery and stuck-order self-healing. They
// share a schedule and a report, so operators see one cycle, not two.
type RecoveryWorker struct {
	db       *gorm.DB
	webhooks *WebhookStore
	states   *Manager
	recovery *RecoveryManager
	healer   *SelfHealer
	log      *logging.Logger
	notify   NotifyFunc
	retries  *VendorRetryAccessor
	reassign ReassignExpiredFunc
}

// VendorRetryAccessor is the minimal read access this worker needs into
// vendorselect's retry store, again to avoid an import cycle.
type VendorRetryAccessor struct {
	ExpiredAwaitingResponse func(now time.Time) ([]models.VendorAssignmentRetry, error)
}

func NewRecoveryWorker(db *gorm.DB, webhooks *WebhookStore, states *Manager, recovery *RecoveryManager, healer *SelfHealer, log *logging.Logger, notify NotifyFunc, retries *VendorRetryAccessor, reassign ReassignExpiredFunc) *RecoveryWorker {
	return &RecoveryWorker{
		db: db, webhooks: webhooks, states: states, recovery: recovery, healer: healer,
		log: log, notify: notify, retries: retries, reassign: reassign,
	}
}

// RunCycle performs one full sweep: webhooks stuck in PROCESSING (reset to
// PENDING) and FAILED webhooks with retries left (counted only), stale
// workflows (marked resumed), expired vendor-assignment retries (acted on
// by the vendorselect package which the caller wires in), pending order
// recoveries (one attempt counted each), and stuck orders (logged). It
// does not re-submit PENDING webhooks or re-run the steps of a resumed
// workflow or recovered order. It never raises on a recoverable
// condition — only ErrRecoveryExhausted surfaces as a MANUAL_INTERVENTION
// notification.
func (w *RecoveryWorker) RunCycle() CycleReport {
	now := time.Now()
	defer func() { metrics.RecoveryCycleDuration.Observe(time.Since(now).Seconds()) }()
	report := CycleReport{RanAt: now}

	report.WebhooksReclaimed = w.sweepStuckWebhooks(now)
	report.WebhooksFailedRetryable = w.sweepFailedWebhooks()
	report.WorkflowsResumed = w.sweepStaleWorkflows(now)
	report.VendorRetriesExpired = w.sweepExpiredVendorRetries(now)
	report.OrdersRecovered, report.OrdersEscalated = w.sweepOrderRecoveries()
	report.StuckOrders = w.sweepStuckOrders(now)

	return report
}

// CycleReport summarizes one sweep, surfaced by GET /recovery/dashboard
// and POST /self-healing/run-cycle.
type CycleReport struct {
	RanAt                   time.Time
	WebhooksReclaimed       int
	WebhooksFailedRetryable int
	WorkflowsResumed        int
	VendorRetriesExpired    int
	OrdersRecovered         int
	OrdersEscalated         int
	StuckOrders             []StuckOrder
}

func (w *RecoveryWorker) sweepStuckWebhooks(now time.Time) int {
	stuck, err := w.webhooks.StuckProcessing(now)
	if err != nil {
		w.log.Error("sweep stuck webhooks failed", zap.Error(err))
		return 0
	}
	for i := range stuck {
		if err := w.webhooks.Reclaim(&stuck[i]); err != nil {
			w.log.Error("reclaim stuck webhook failed", zap.String("event_id", stuck[i].EventID), zap.Error(err))
		}
	}
	return len(stuck)
}

func (w *RecoveryWorker) sweepFailedWebhooks() int {
	failed, err := w.webhooks.FailedWithRetriesLeft()
	if err != nil {
		w.log.Error("sweep failed webhooks failed", zap.Error(err))
		return 0
	}
	return len(failed)
}

func (w *RecoveryWorker) sweepStaleWorkflows(now time.Time) int {
	stale, err := w.states.Stale(now)
	if err != nil {
		w.log.Error("sweep stale workflows failed", zap.Error(err))
		return 0
	}
	for i := range stale {
		if err := w.states.Resume(&stale[i]); err != nil {
			w.log.Error("resume stale workflow failed", zap.String("workflow_id", stale[i].WorkflowID), zap.Error(err))
			continue
		}
		w.log.BusinessEvent("workflow_resumed", stale[i].WorkflowID,
			zap.String("type", stale[i].Type), zap.String("step", stale[i].CurrentStep))
	}
	return len(stale)
}

func (w *RecoveryWorker) sweepExpiredVendorRetries(now time.Time) int {
	if w.retries == nil || w.reassign == nil {
		return 0
	}
	expired, err := w.retries.ExpiredAwaitingResponse(now)
	if err != nil {
		w.log.Error("sweep expired vendor retries failed", zap.Error(err))
		return 0
	}
	for i := range expired {
		if err := w.reassign(&expired[i]); err != nil {
			w.log.Warn("vendor reassignment after timeout failed",
				zap.String("order_id", expired[i].OrderID), zap.Error(err))
		}
	}
	return len(expired)
}

func (w *RecoveryWorker) sweepOrderRecoveries() (recovered, escalated int) {
	pending, err := w.recovery.Pending()
	if err != nil {
		w.log.Error("sweep order recoveries failed", zap.Error(err))
		return 0, 0
	}
	for i := range pending {
		if err := w.recovery.BeginAttempt(&pending[i]); err != nil {
			if err == ErrRecoveryExhausted {
				escalated++
				w.notify("MANUAL_INTERVENTION", "order recovery attempts exhausted", map[string]interface{}{
					"order_id":      pending[i].OrderID,
					"failure_point": pending[i].FailurePoint,
					"attempts":      pending[i].Attempts,
				})
				continue
			}
			w.log.Error("begin recovery attempt failed", zap.String("order_id", pending[i].OrderID), zap.Error(err))
			continue
		}
		recovered++
	}
	return recovered, escalated
}

func (w *RecoveryWorker) sweepStuckOrders(now time.Time) []StuckOrder {
	stuck, err := w.healer.DetectStuck(now)
	if err != nil {
		w.log.Error("sweep stuck orders failed", zap.Error(err))
		return nil
	}
	for _, s := range stuck {
		w.log.BusinessEvent("order_stuck_detected", s.Order.OrderID,
			zap.String("status", string(s.Order.Status)), zap.String("action", string(s.Action)),
			zap.Duration("stuck_for", s.Stuck))
	}
	return stuck
}
