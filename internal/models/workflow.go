package models

import "time"

// WorkflowStatus tracks the durability layer's view of a long-running
// operation independent of the domain Order status.
type WorkflowStatus string

const (
	WorkflowStatusRunning   WorkflowStatus = "RUNNING"
	WorkflowStatusCompleted WorkflowStatus = "COMPLETED"
	WorkflowStatusFailed    WorkflowStatus = "FAILED"
	WorkflowStatusStalled   WorkflowStatus = "STALLED"
)

// WorkflowState is a durable checkpoint of a multi-step process (order
// intake, vendor assignment, webhook relay). StepData carries whatever the
// step needs to resume without re-deriving it, serialized as JSON text.
type WorkflowState struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	WorkflowID    string         `gorm:"uniqueIndex;size:36" json:"workflow_id"`
	Type          string         `gorm:"size:50;index" json:"type"`
	EntityRef     string         `gorm:"size:36;index" json:"entity_ref"`
	CurrentStep   string         `gorm:"size:100" json:"current_step"`
	StepData      string         `gorm:"type:text" json:"step_data,omitempty"`
	Status        WorkflowStatus `gorm:"size:20" json:"status"`
	LastHeartbeat time.Time      `json:"last_heartbeat"`
	Attempts      int            `json:"attempts"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (WorkflowState) TableName() string { return "workflow_states" }

// IsStale reports whether the last heartbeat is older than timeout,
// meaning the worker that owned this workflow likely died mid-step.
func (w *WorkflowState) IsStale(timeout time.Duration, now time.Time) bool {
	return w.Status == WorkflowStatusRunning && now.Sub(w.LastHeartbeat) > timeout
}

// Heartbeat refreshes LastHeartbeat to signal liveness to the staleness
// detector.
func (w *WorkflowState) Heartbeat(now time.Time) {
	w.LastHeartbeat = now
	w.UpdatedAt = now
}
