package models

import "time"

// ParseSessionStatus tracks the order-parser's clarification dialogue
// state machine: open -> awaiting_clarification <-> open ->
// accepted | expired | rejected.
type ParseSessionStatus string

const (
	ParseSessionOpen                 ParseSessionStatus = "OPEN"
	ParseSessionAwaitingClarification ParseSessionStatus = "AWAITING_CLARIFICATION"
	ParseSessionAccepted             ParseSessionStatus = "ACCEPTED"
	ParseSessionExpired              ParseSessionStatus = "EXPIRED"
	ParseSessionRejected             ParseSessionStatus = "REJECTED"
)

// ParseSession is the durable state of one in-progress order parse,
// spanning possibly several clarification round trips before the order is
// either accepted into credit validation or abandoned.
type ParseSession struct {
	ID               uint               `gorm:"primaryKey" json:"id"`
	SessionID        string             `gorm:"uniqueIndex;size:36" json:"session_id"`
	RetailerID       string             `gorm:"index;size:36" json:"retailer_id"`
	Source           string             `gorm:"size:20" json:"source"` // text, whatsapp, ocr
	RawInput         string             `gorm:"type:text" json:"raw_input"`
	Items            string             `gorm:"type:text" json:"items"` // JSON-encoded []ParsedItem
	Confidence       float64            `json:"confidence"`
	NeedsClarification bool             `json:"needs_clarification"`
	Clarifications   string             `gorm:"type:text" json:"clarifications,omitempty"` // JSON-encoded history
	Status           ParseSessionStatus `gorm:"size:30" json:"status"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	ExpiresAt        time.Time          `json:"expires_at"`
}

func (ParseSession) TableName() string { return "parse_sessions" }

// Expired reports whether the session has outlived its clarification
// window and should be abandoned.
func (s *ParseSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
