package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/jobs"
	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/workflow"
)

// WebhookHandlers implements the WhatsApp webhook verification handshake
// and inbound delivery: GET verifies hub.mode/hub.verify_token, POST
// verifies X-Hub-Signature-256 and persists before any processing runs.
type WebhookHandlers struct {
	Webhooks    *workflow.WebhookStore
	Fabric      *jobs.Fabric
	VerifyToken string
	Secret      string
	MaxRetries  int
	Log         *logging.Logger
	Production  bool
}

// Verify answers the one-time subscription handshake: GET with
// hub.mode=subscribe and a matching hub.verify_token echoes
// hub.challenge back.
func (h *WebhookHandlers) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && hmac.Equal([]byte(token), []byte(h.VerifyToken)) {
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// Receive persists the raw payload before any parsing — the
// webhook-before-processing rule — then submits a whatsapp-messages job
// carrying the event id, whose processor runs the payload through the
// intake pipeline, and acknowledges. With a redis broker the job runs off
// the request path; in sync mode it runs inline, so the acknowledgement
// is written only after processing.
func (h *WebhookHandlers) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondErr(c, h.Production, apperrors.NewValidation("INVALID_BODY", "failed to read request body"))
		return
	}

	if h.Secret != "" {
		signature := c.GetHeader("X-Hub-Signature-256")
		if !validSignature(h.Secret, body, signature) {
			respondErr(c, h.Production, apperrors.NewAuthorization("INVALID_SIGNATURE", "webhook signature verification failed"))
			return
		}
	}

	maxRetries := h.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	event, err := h.Webhooks.Persist("whatsapp", body, maxRetries)
	if err != nil {
		respondErr(c, h.Production, err)
		return
	}

	if h.Fabric != nil {
		if _, err := h.Fabric.Submit(c.Request.Context(), jobs.QueueWhatsAppMessages, map[string]interface{}{
			"webhook_event_id": event.EventID,
		}); err != nil {
			h.Log.Error("enqueue webhook processing failed", zap.Error(err))
		}
	}

	// Acknowledge with the persisted event id.
	respondOK(c, http.StatusAccepted, gin.H{"event_id": event.EventID})
}

// validSignature checks the `sha256=<hex>` X-Hub-Signature-256 header
// against an HMAC-SHA256 of body using secret.
func validSignature(secret string, body []byte, header string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	expected := hex.EncodeToString(hmacSHA256(secret, body))
	return hmac.Equal([]byte(header[len(prefix):]), []byte(expected))
}

func hmacSHA256(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
