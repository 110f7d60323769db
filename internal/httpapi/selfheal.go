package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mandiflow/core/internal/workflow"
)

// SelfHealHandlers implements POST /self-healing/run-cycle. The
// self-healing sweep and the recovery sweep are one worker with two
// responsibilities, so this route and /recovery/trigger both call
// RunCycle; it is exposed separately because operators reach for it from
// a different part of the admin UI and the distinction is worth keeping
// at the API surface even though the implementation is shared.
type SelfHealHandlers struct {
	Worker   *workflow.RecoveryWorker
	Recovery *RecoveryHandlers
}

// RunCycle triggers an immediate stuck-order detection and recovery sweep.
func (h *SelfHealHandlers) RunCycle(c *gin.Context) {
	report := h.Worker.RunCycle()
	if h.Recovery != nil {
		h.Recovery.RecordCycle(report)
	}
	respondOK(c, http.StatusOK, report)
}
