package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mandiflow/core/internal/database"
	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/models"
	"github.com/mandiflow/core/internal/workflow"
)

const verifyToken = "verify-me"
const webhookSecret = "shared-secret"

func newWebhookRouter(t *testing.T) (*gin.Engine, *database.Database) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.ConnectSQLite(":memory:", gormlogger.Default.LogMode(gormlogger.Silent))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())

	h := &WebhookHandlers{
		Webhooks:    workflow.NewWebhookStore(db.DB),
		VerifyToken: verifyToken,
		Secret:      webhookSecret,
		Log:         logging.New(logging.Config{Level: "error", Service: "httpapi-test", Format: "console"}),
	}

	router := gin.New()
	router.GET("/whatsapp/webhook", h.Verify)
	router.POST("/whatsapp/webhook", h.Receive)
	return router, db
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerify_EchoesChallengeForMatchingToken(t *testing.T) {
	router, _ := newWebhookRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/whatsapp/webhook?hub.mode=subscribe&hub.verify_token="+verifyToken+"&hub.challenge=42", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())
}

func TestVerify_RejectsWrongToken(t *testing.T) {
	router, _ := newWebhookRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReceive_PersistsBeforeAcking(t *testing.T) {
	router, db := newWebhookRouter(t)

	body := []byte(`{"entry":[{"changes":[{"value":{"messages":[{"from":"9876","text":{"body":"10 kg rice"}}]}}]}]}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var event models.WebhookEvent
	require.NoError(t, db.DB.First(&event).Error)
	assert.Equal(t, models.WebhookStatusPending, event.Status)
	assert.Equal(t, string(body), event.Payload)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestReceive_RejectsBadSignatureWithoutPersisting(t *testing.T) {
	router, db := newWebhookRouter(t)

	body := []byte(`{"entry":[]}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var count int64
	require.NoError(t, db.DB.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReceive_SameBodyTwiceCreatesTwoEventsButNoOrders(t *testing.T) {
	// Persisting twice is allowed — de-duplication happens downstream via
	// idempotency keys, not at the intake ack.
	router, db := newWebhookRouter(t)

	body := []byte(`{"entry":[]}`)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", bytes.NewReader(body))
		req.Header.Set("X-Hub-Signature-256", sign(body))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusAccepted, w.Code)
	}

	var events int64
	require.NoError(t, db.DB.Model(&models.WebhookEvent{}).Count(&events).Error)
	assert.EqualValues(t, 2, events)

	var orders int64
	require.NoError(t, db.DB.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}
