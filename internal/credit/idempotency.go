package credit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/models"
)

// IdempotencyTTL is the window an idempotency key stays honored.
const IdempotencyTTL = 24 * time.Hour

// ShortPollInterval and ShortPollTimeout bound how long a duplicate
// request will wait for a concurrently-processing original to finish.
const (
	ShortPollInterval = 200 * time.Millisecond
	ShortPollTimeout  = 5 * time.Second
)

// IdempotencyGuard looks up/records idempotency keys against a request
// hash so retried client calls replay the original response instead of
// double-creating an order.
type IdempotencyGuard struct {
	db *gorm.DB
}

func NewIdempotencyGuard(db *gorm.DB) *IdempotencyGuard {
	return &IdempotencyGuard{db: db}
}

// HashRequest derives a stable hash of the request body for collision
// detection: two calls with the same key but different bodies are a
// client bug, not a valid replay.
func HashRequest(body interface{}) (string, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request for idempotency hash: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Outcome tells the caller what to do with a key lookup.
type Outcome string

const (
	OutcomeProceed    Outcome = "PROCEED"     // no prior record, caller should do the work
	OutcomeReplay     Outcome = "REPLAY"      // completed, caller should return the stored response
	OutcomeBlocked    Outcome = "BLOCKED"     // processing, caller short-polled and timed out
)

// Begin looks up key: on a fresh key it inserts a PROCESSING row and
// returns OutcomeProceed; on a completed key it returns OutcomeReplay with
// the stored payload; on a still-processing key it short-polls before
// giving up with OutcomeBlocked.
func (g *IdempotencyGuard) Begin(key, operationType string, requestHash string) (Outcome, string, error) {
	var existing models.IdempotencyKey
	err := g.db.Where("key = ?", key).First(&existing).Error

	switch {
	case err == gorm.ErrRecordNotFound:
		return g.insertFresh(key, operationType, requestHash)
	case err != nil:
		return "", "", apperrors.NewTransient("IDEMPOTENCY_LOOKUP_FAILED", "failed to look up idempotency key", err)
	}

	if existing.Expired(time.Now()) {
		return g.resetExisting(&existing, operationType, requestHash)
	}
	if existing.RequestHash != requestHash {
		return "", "", apperrors.NewConflict("IDEMPOTENCY_KEY_REUSED", "idempotency key reused with a different request body")
	}

	switch existing.Status {
	case models.IdempotencyStatusCompleted:
		return OutcomeReplay, existing.ResponsePayload, nil
	case models.IdempotencyStatusFailed:
		return g.resetExisting(&existing, operationType, requestHash)
	default: // PROCESSING
		if payload, ok := g.shortPoll(key); ok {
			return OutcomeReplay, payload, nil
		}
		return OutcomeBlocked, "", nil
	}
}

func (g *IdempotencyGuard) insertFresh(key, operationType, requestHash string) (Outcome, string, error) {
	now := time.Now()
	row := &models.IdempotencyKey{
		Key:           key,
		OperationType: operationType,
		RequestHash:   requestHash,
		Status:        models.IdempotencyStatusProcessing,
		CreatedAt:     now,
		ExpiresAt:     now.Add(IdempotencyTTL),
	}
	if err := g.db.Create(row).Error; err != nil {
		return "", "", apperrors.NewTransient("IDEMPOTENCY_INSERT_FAILED", "failed to record idempotency key", err)
	}
	return OutcomeProceed, "", nil
}

// resetExisting rewrites an expired or failed key row in place (the
// unique index on key forbids a second insert) so the caller can redo the
// work under the same key.
func (g *IdempotencyGuard) resetExisting(row *models.IdempotencyKey, operationType, requestHash string) (Outcome, string, error) {
	now := time.Now()
	row.OperationType = operationType
	row.RequestHash = requestHash
	row.Status = models.IdempotencyStatusProcessing
	row.ResponsePayload = ""
	row.CreatedAt = now
	row.ExpiresAt = now.Add(IdempotencyTTL)
	if err := g.db.Save(row).Error; err != nil {
		return "", "", apperrors.NewTransient("IDEMPOTENCY_RESET_FAILED", "failed to reset idempotency key", err)
	}
	return OutcomeProceed, "", nil
}

// Complete records the final response payload for key, making future
// duplicate calls replay it.
func (g *IdempotencyGuard) Complete(key, responsePayload string) error {
	return g.db.Model(&models.IdempotencyKey{}).Where("key = ?", key).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusCompleted, "response_payload": responsePayload}).Error
}

// Fail marks key as failed so a subsequent call with the same key is
// allowed to retry rather than replaying a stale failure forever.
func (g *IdempotencyGuard) Fail(key string) error {
	return g.db.Model(&models.IdempotencyKey{}).Where("key = ?", key).
		Update("status", models.IdempotencyStatusFailed).Error
}

func (g *IdempotencyGuard) shortPoll(key string) (string, bool) {
	deadline := time.Now().Add(ShortPollTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(ShortPollInterval)
		var row models.IdempotencyKey
		if err := g.db.Where("key = ?", key).First(&row).Error; err != nil {
			continue
		}
		if row.Status == models.IdempotencyStatusCompleted {
			return row.ResponsePayload, true
		}
	}
	return "", false
}
