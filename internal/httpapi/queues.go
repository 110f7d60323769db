package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/jobs"
)

// QueueHandlers implements GET /queues/stats plus the admin dead-letter
// surface.
type QueueHandlers struct {
	Fabric     *jobs.Fabric
	Production bool
}

// Stats reports per-queue configuration and DLQ depth plus the fabric's
// operating mode.
func (h *QueueHandlers) Stats(c *gin.Context) {
	respondOK(c, http.StatusOK, h.Fabric.Stats())
}

// DLQList returns every dead-lettered job with its failure context.
func (h *QueueHandlers) DLQList(c *gin.Context) {
	respondOK(c, http.StatusOK, h.Fabric.DLQ().List())
}

// DLQInspect returns one dead letter by its original job id.
func (h *QueueHandlers) DLQInspect(c *gin.Context) {
	dl, ok := h.Fabric.DLQ().Inspect(c.Param("id"))
	if !ok {
		respondErr(c, h.Production, apperrors.NewValidation("DEAD_LETTER_NOT_FOUND", "no dead letter with that job id"))
		return
	}
	respondOK(c, http.StatusOK, dl)
}

// DLQRetry re-submits a dead-lettered job into its original queue with a
// reset attempt counter and removes it from the DLQ.
func (h *QueueHandlers) DLQRetry(c *gin.Context) {
	if err := h.Fabric.RetryDeadLetter(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, h.Production, apperrors.NewValidation("DEAD_LETTER_RETRY_FAILED", err.Error()))
		return
	}
	respondOK(c, http.StatusOK, gin.H{"retried": c.Param("id")})
}
