package httpapi

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mandiflow/core/internal/workflow"
)

// RecoveryHandlers implements GET /recovery/dashboard and
// POST /recovery/trigger. Both share the same RecoveryWorker the
// background scheduler ticks every 2 minutes; this handler caches
// the last report so Dashboard is a cheap read and Trigger is the only
// route that runs a fresh sweep on demand.
type RecoveryHandlers struct {
	Worker *workflow.RecoveryWorker

	mu   sync.RWMutex
	last *workflow.CycleReport
}

// RecordCycle lets the background scheduler publish its sweep result so
// Dashboard reflects scheduled runs too, not only operator-triggered ones.
func (h *RecoveryHandlers) RecordCycle(report workflow.CycleReport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &report
}

// dashboardView is a read-only snapshot of the most recent sweep,
// scheduled or triggered.
type dashboardView struct {
	LastCycle *workflow.CycleReport `json:"last_cycle"`
}

// Dashboard reports the outcome of the most recent sweep without running
// a new one.
func (h *RecoveryHandlers) Dashboard(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	respondOK(c, http.StatusOK, dashboardView{LastCycle: h.last})
}

// Trigger runs one recovery/self-healing sweep on demand, outside its
// normal 2-minute schedule, and returns the resulting CycleReport.
func (h *RecoveryHandlers) Trigger(c *gin.Context) {
	report := h.Worker.RunCycle()
	h.RecordCycle(report)
	respondOK(c, http.StatusOK, report)
}
