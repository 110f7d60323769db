package workflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/models"
)

// DefaultHeartbeatTimeout is the staleness window: an in-progress
// workflow whose heartbeat is older than this is resumable.
const DefaultHeartbeatTimeout = 5 * time.Minute

// Manager checkpoints multi-step operations (order creation, vendor
// routing, payment settlement): the current step, its data and a
// heartbeat. After a crash the recovery sweep finds the stale checkpoint
// and marks it resumed (Resume); it does not re-run the recorded step.
type Manager struct {
	db              *gorm.DB
	heartbeatTimeout time.Duration
}

func NewManager(db *gorm.DB, heartbeatTimeout time.Duration) *Manager {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = DefaultHeartbeatTimeout
	}
	return &Manager{db: db, heartbeatTimeout: heartbeatTimeout}
}

// Start creates a new WorkflowState at its first step.
func (m *Manager) Start(workflowType, entityRef, firstStep string, stepData interface{}) (*models.WorkflowState, error) {
	data, err := marshalStepData(stepData)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	wf := &models.WorkflowState{
		WorkflowID:    uuid.NewString(),
		Type:          workflowType,
		EntityRef:     entityRef,
		CurrentStep:   firstStep,
		StepData:      data,
		Status:        models.WorkflowStatusRunning,
		LastHeartbeat: now,
		Attempts:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.db.Create(wf).Error; err != nil {
		return nil, apperrors.NewTransient("WORKFLOW_START_FAILED", "failed to start workflow", err)
	}
	return wf, nil
}

// Advance moves wf to the next step, refreshing its heartbeat.
func (m *Manager) Advance(wf *models.WorkflowState, nextStep string, stepData interface{}) error {
	data, err := marshalStepData(stepData)
	if err != nil {
		return err
	}
	now := time.Now()
	wf.CurrentStep = nextStep
	wf.StepData = data
	wf.Heartbeat(now)
	if err := m.db.Save(wf).Error; err != nil {
		return apperrors.NewTransient("WORKFLOW_ADVANCE_FAILED", "failed to advance workflow", err)
	}
	return nil
}

// Heartbeat refreshes liveness without changing the step, for long-running
// steps that want to signal they haven't stalled.
func (m *Manager) Heartbeat(wf *models.WorkflowState) error {
	wf.Heartbeat(time.Now())
	return m.db.Model(&models.WorkflowState{}).Where("workflow_id = ?", wf.WorkflowID).
		Update("last_heartbeat", wf.LastHeartbeat).Error
}

// Complete marks wf COMPLETED.
func (m *Manager) Complete(wf *models.WorkflowState) error {
	wf.Status = models.WorkflowStatusCompleted
	wf.UpdatedAt = time.Now()
	return m.db.Save(wf).Error
}

// Fail marks wf FAILED. The *order* this workflow drives is
// never itself marked FAILED — only the workflow checkpoint is.
func (m *Manager) Fail(wf *models.WorkflowState, reason string) error {
	wf.Status = models.WorkflowStatusFailed
	wf.UpdatedAt = time.Now()
	wf.StepData = appendFailureReason(wf.StepData, reason)
	return m.db.Save(wf).Error
}

// Stale returns every RUNNING workflow whose heartbeat has expired,
// ordered oldest-first so the sweep drains the longest-stuck work first.
func (m *Manager) Stale(now time.Time) ([]models.WorkflowState, error) {
	var stale []models.WorkflowState
	cutoff := now.Add(-m.heartbeatTimeout)
	err := m.db.Where("status = ? AND last_heartbeat < ?", models.WorkflowStatusRunning, cutoff).
		Order("last_heartbeat ASC").Find(&stale).Error
	if err != nil {
		return nil, apperrors.NewTransient("WORKFLOW_STALE_QUERY_FAILED", "failed to query stale workflows", err)
	}
	return stale, nil
}

// Resume marks a stale workflow as being re-driven: bumps Attempts and
// refreshes the heartbeat so it isn't picked up twice by an overlapping
// sweep tick.
func (m *Manager) Resume(wf *models.WorkflowState) error {
	wf.Attempts++
	wf.Heartbeat(time.Now())
	return m.db.Save(wf).Error
}

// StepDataAs unmarshals wf.StepData into out.
func StepDataAs(wf *models.WorkflowState, out interface{}) error {
	if wf.StepData == "" {
		return nil
	}
	return json.Unmarshal([]byte(wf.StepData), out)
}

func marshalStepData(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", apperrors.NewValidation("WORKFLOW_STEP_DATA_INVALID", "step data is not JSON-serializable")
	}
	return string(b), nil
}

func appendFailureReason(existing, reason string) string {
	wrapper := map[string]interface{}{"previous_step_data": json.RawMessage(orEmptyObject(existing)), "failure_reason": reason}
	b, err := json.Marshal(wrapper)
	if err != nil {
		return existing
	}
	return string(b)
}

func orEmptyObject(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
