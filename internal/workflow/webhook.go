// Package workflow implements the durability layer: webhook
// persistence, workflow-state checkpointing, order recovery, and the
// self-healing sweep, all backed by the relational store so any of them
// survives a process crash.
package workflow

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/models"
)

// WebhookBackoffBase is the starting delay for retrying a failed webhook;
// subsequent attempts double it.
const WebhookBackoffBase = 5 * time.Second

// WebhookStuckThreshold is how long a webhook may sit in PROCESSING before
// it's eligible for re-pickup by the recovery sweep.
const WebhookStuckThreshold = 10 * time.Minute

// WebhookStore persists inbound webhook deliveries before any processing
// runs against them ("webhook-before-processing").
type WebhookStore struct {
	db *gorm.DB
}

func NewWebhookStore(db *gorm.DB) *WebhookStore {
	return &WebhookStore{db: db}
}

// Persist inserts a PENDING WebhookEvent row. The webhook handler calls it
// before parsing the payload, and acknowledges the inbound HTTP request
// once the processing job is submitted.
func (s *WebhookStore) Persist(source string, payload []byte, maxRetries int) (*models.WebhookEvent, error) {
	now := time.Now()
	event := &models.WebhookEvent{
		EventID:    uuid.NewString(),
		Source:     source,
		Payload:    string(payload),
		Status:     models.WebhookStatusPending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.Create(event).Error; err != nil {
		return nil, apperrors.NewTransient("WEBHOOK_PERSIST_FAILED", "failed to persist webhook event", err)
	}
	return event, nil
}

// ClaimPending atomically transitions up to limit PENDING (or due-for-retry)
// events to PROCESSING and returns them, so two worker instances never pick
// up the same event.
func (s *WebhookStore) ClaimPending(limit int) ([]models.WebhookEvent, error) {
	var claimed []models.WebhookEvent
	now := time.Now()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var candidates []models.WebhookEvent
		if err := tx.Clauses(lockingClauses(tx)...).
			Where("status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)", models.WebhookStatusPending, now).
			Order("created_at ASC").Limit(limit).Find(&candidates).Error; err != nil {
			return err
		}
		for i := range candidates {
			candidates[i].Status = models.WebhookStatusProcessing
			candidates[i].UpdatedAt = now
			if err := tx.Save(&candidates[i]).Error; err != nil {
				return err
			}
		}
		claimed = candidates
		return nil
	})
	if err != nil {
		return nil, apperrors.NewTransient("WEBHOOK_CLAIM_FAILED", "failed to claim pending webhooks", err)
	}
	return claimed, nil
}

// StuckProcessing returns events stuck in PROCESSING beyond the stuck
// threshold, eligible for the self-heal sweep to reclaim.
func (s *WebhookStore) StuckProcessing(now time.Time) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := s.db.Where("status = ? AND updated_at < ?", models.WebhookStatusProcessing, now.Add(-WebhookStuckThreshold)).
		Find(&events).Error
	if err != nil {
		return nil, apperrors.NewTransient("WEBHOOK_STUCK_QUERY_FAILED", "failed to query stuck webhooks", err)
	}
	return events, nil
}

// Reclaim resets a stuck event back to PENDING so ClaimPending can pick it
// up again.
func (s *WebhookStore) Reclaim(event *models.WebhookEvent) error {
	event.Status = models.WebhookStatusPending
	event.UpdatedAt = time.Now()
	return s.db.Save(event).Error
}

// MarkCompleted finalizes a successfully processed event.
func (s *WebhookStore) MarkCompleted(event *models.WebhookEvent) error {
	now := time.Now()
	event.Status = models.WebhookStatusCompleted
	event.ProcessedAt = &now
	event.UpdatedAt = now
	return s.db.Save(event).Error
}

// MarkFailed records a processing failure. If retries remain it schedules
// the next attempt with exponential backoff and leaves status PENDING so
// ClaimPending will retry it; once retries are exhausted it is left FAILED
// for the dead-letter-style admin review.
func (s *WebhookStore) MarkFailed(event *models.WebhookEvent, cause error) error {
	now := time.Now()
	event.RetryCount++
	event.LastError = cause.Error()
	event.UpdatedAt = now

	if event.RetryCount < event.MaxRetries {
		delay := WebhookBackoffBase * time.Duration(1<<uint(event.RetryCount-1))
		next := now.Add(delay)
		event.Status = models.WebhookStatusPending
		event.NextRetryAt = &next
	} else {
		event.Status = models.WebhookStatusFailed
	}
	return s.db.Save(event).Error
}

// FailedWithRetriesLeft returns FAILED events that still have retry budget;
// the recovery sweep counts them in its report.
func (s *WebhookStore) FailedWithRetriesLeft() ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := s.db.Where("status = ? AND retry_count < max_retries", models.WebhookStatusFailed).Find(&events).Error
	if err != nil {
		return nil, apperrors.NewTransient("WEBHOOK_RETRY_QUERY_FAILED", "failed to query retryable webhooks", err)
	}
	return events, nil
}
