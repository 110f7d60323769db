package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/models"
)

// SessionTTL bounds how long a ParseSession stays open awaiting
// clarification answers before it auto-expires.
const SessionTTL = 10 * time.Minute

// SessionStore persists ParseSession rows, mirroring the repository
// pattern used throughout the order write path.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create persists a freshly-parsed session.
func (s *SessionStore) Create(retailerID, source, rawInput string, items []Item, clarifications []Clarification, confidence float64) (*models.ParseSession, error) {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	clarJSON, err := json.Marshal(clarifications)
	if err != nil {
		return nil, fmt.Errorf("marshal clarifications: %w", err)
	}

	status := models.ParseSessionOpen
	if len(clarifications) > 0 {
		status = models.ParseSessionAwaitingClarification
	}

	now := time.Now()
	session := &models.ParseSession{
		SessionID:          uuid.NewString(),
		RetailerID:         retailerID,
		Source:             source,
		RawInput:           rawInput,
		Items:              string(itemsJSON),
		Confidence:         confidence,
		NeedsClarification: len(clarifications) > 0,
		Clarifications:     string(clarJSON),
		Status:             status,
		CreatedAt:          now,
		UpdatedAt:          now,
		ExpiresAt:          now.Add(SessionTTL),
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("create parse session: %w", err)
	}
	return session, nil
}

// Get loads a session by its public ID.
func (s *SessionStore) Get(sessionID string) (*models.ParseSession, error) {
	var session models.ParseSession
	if err := s.db.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		return nil, fmt.Errorf("load parse session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Update persists the session's new items/confidence/status after a
// Clarify round trip.
func (s *SessionStore) Update(session *models.ParseSession, items []Item, clarifications []Clarification, confidence float64, status models.ParseSessionStatus) error {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	clarJSON, err := json.Marshal(clarifications)
	if err != nil {
		return fmt.Errorf("marshal clarifications: %w", err)
	}
	session.Items = string(itemsJSON)
	session.Clarifications = string(clarJSON)
	session.Confidence = confidence
	session.NeedsClarification = len(clarifications) > 0
	session.Status = status
	session.UpdatedAt = time.Now()
	if err := s.db.Save(session).Error; err != nil {
		return fmt.Errorf("update parse session %s: %w", session.SessionID, err)
	}
	return nil
}

// DecodeItems unmarshals the session's stored item snapshot.
func DecodeItems(session *models.ParseSession) ([]Item, error) {
	var items []Item
	if session.Items == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(session.Items), &items); err != nil {
		return nil, fmt.Errorf("decode parse session items: %w", err)
	}
	return items, nil
}

// DecodeClarifications unmarshals the session's stored clarification list.
func DecodeClarifications(session *models.ParseSession) ([]Clarification, error) {
	var c []Clarification
	if session.Clarifications == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(session.Clarifications), &c); err != nil {
		return nil, fmt.Errorf("decode parse session clarifications: %w", err)
	}
	return c, nil
}
