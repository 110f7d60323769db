package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.WebhookEvent{}, &models.WorkflowState{},
		&models.OrderRecoveryState{}, &models.Order{}, &models.LineItem{},
		&models.VendorAssignmentRetry{},
	))
	return db
}

func TestWebhookStorePersistBeforeProcessing(t *testing.T) {
	db := openTestDB(t)
	store := NewWebhookStore(db)

	event, err := store.Persist("whatsapp", []byte(`{"hello":"world"}`), 3)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookStatusPending, event.Status)
	assert.False(t, event.CreatedAt.IsZero())

	claimed, err := store.ClaimPending(10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, models.WebhookStatusProcessing, claimed[0].Status)
}

func TestWebhookStoreRetryBackoffThenExhaustion(t *testing.T) {
	db := openTestDB(t)
	store := NewWebhookStore(db)

	event, err := store.Persist("whatsapp", []byte(`{}`), 2)
	require.NoError(t, err)

	require.NoError(t, store.MarkFailed(event, assertErr("boom")))
	assert.Equal(t, models.WebhookStatusPending, event.Status)
	assert.Equal(t, 1, event.RetryCount)
	require.NotNil(t, event.NextRetryAt)
	assert.True(t, event.NextRetryAt.After(time.Now()))

	require.NoError(t, store.MarkFailed(event, assertErr("boom again")))
	assert.Equal(t, models.WebhookStatusFailed, event.Status)
	assert.Equal(t, 2, event.RetryCount)
}

func TestWebhookStoreStuckReclaim(t *testing.T) {
	db := openTestDB(t)
	store := NewWebhookStore(db)

	event, err := store.Persist("whatsapp", []byte(`{}`), 3)
	require.NoError(t, err)
	claimed, err := store.ClaimPending(1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	stuck, err := store.StuckProcessing(time.Now())
	assert.NoError(t, err)
	assert.Empty(t, stuck, "not yet past the stuck threshold")

	future := time.Now().Add(WebhookStuckThreshold + time.Minute)
	stuck, err = store.StuckProcessing(future)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, event.EventID, stuck[0].EventID)

	require.NoError(t, store.Reclaim(&stuck[0]))
	var reloaded models.WebhookEvent
	require.NoError(t, db.Where("event_id = ?", event.EventID).First(&reloaded).Error)
	assert.Equal(t, models.WebhookStatusPending, reloaded.Status)
}

func TestWorkflowManagerStaleDetectionAndResume(t *testing.T) {
	db := openTestDB(t)
	mgr := NewManager(db, 5*time.Minute)

	wf, err := mgr.Start("order_creation", "order-1", "validate_credit", map[string]string{"x": "y"})
	require.NoError(t, err)

	stale, err := mgr.Stale(time.Now())
	require.NoError(t, err)
	assert.Empty(t, stale, "freshly-started workflow is not stale")

	future := time.Now().Add(10 * time.Minute)
	stale, err = mgr.Stale(future)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, wf.WorkflowID, stale[0].WorkflowID)

	require.NoError(t, mgr.Resume(&stale[0]))
	assert.Equal(t, 2, stale[0].Attempts)
}

func TestWorkflowManagerAdvanceAndComplete(t *testing.T) {
	db := openTestDB(t)
	mgr := NewManager(db, 5*time.Minute)

	wf, err := mgr.Start("order_creation", "order-1", "validate_credit", nil)
	require.NoError(t, err)

	require.NoError(t, mgr.Advance(wf, "send_confirmation", map[string]string{"order_id": "order-1"}))
	assert.Equal(t, "send_confirmation", wf.CurrentStep)

	var stepData map[string]string
	require.NoError(t, StepDataAs(wf, &stepData))
	assert.Equal(t, "order-1", stepData["order_id"])

	require.NoError(t, mgr.Complete(wf))
	assert.Equal(t, models.WorkflowStatusCompleted, wf.Status)
}

func TestRecoveryManagerExhaustion(t *testing.T) {
	db := openTestDB(t)
	mgr := NewRecoveryManager(db, 2)

	state, err := mgr.Record("order-1", "send_confirmation", assertErr("queue publish failed"))
	require.NoError(t, err)
	assert.Equal(t, models.RecoveryStatusPending, state.RecoveryStatus)

	require.NoError(t, mgr.BeginAttempt(state))
	assert.Equal(t, 1, state.Attempts)

	require.NoError(t, mgr.BeginAttempt(state))
	assert.Equal(t, 2, state.Attempts)

	err = mgr.BeginAttempt(state)
	assert.ErrorIs(t, err, ErrRecoveryExhausted)
	assert.Equal(t, models.RecoveryStatusExhausted, state.RecoveryStatus)
}

func TestSelfHealerStuckOrderThresholdsAreStrict(t *testing.T) {
	db := openTestDB(t)
	healer := NewSelfHealer(db)
	now := time.Now()

	pending := models.Order{OrderID: "o1", Status: models.OrderStatusPending, CreatedAt: now, UpdatedAt: now.Add(-30 * time.Minute)}
	require.NoError(t, db.Create(&pending).Error)

	stuck, err := healer.DetectStuck(now)
	require.NoError(t, err)
	assert.Empty(t, stuck, "exactly at threshold must not fire (> not >=)")

	stuck, err = healer.DetectStuck(now.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, ActionReassignVendor, stuck[0].Action)
}

type testErr string

func (e testErr) Error() string { return string(e) }

func assertErr(msg string) error { return testErr(msg) }
