package parser

import "github.com/shopspring/decimal"

// ClarificationType names the kind of gap an item has.
type ClarificationType string

const (
	ClarificationMissingQuantity ClarificationType = "MISSING_QUANTITY"
	ClarificationInvalidUnit     ClarificationType = "INVALID_UNIT"
	ClarificationAmbiguousProduct ClarificationType = "AMBIGUOUS_PRODUCT"
)

// Clarification is one typed question attached to a parse item.
type Clarification struct {
	Type        ClarificationType `json:"type"`
	ItemIndex   int               `json:"item_index"`
	Question    string            `json:"question"`
	Suggestions []string          `json:"suggestions,omitempty"`
}

// Item is one resolved (or partially resolved) order line.
type Item struct {
	ProductID      string          `json:"product_id,omitempty"`
	ProductText    string          `json:"product_text"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
	NormalizedUnit string          `json:"normalized_unit"`
	Pattern        PatternKind     `json:"pattern"`
	MatchTier      MatchTier       `json:"match_tier"`
	Confidence     float64         `json:"confidence"`
}

// Result is the public contract's return shape for both Parse and
// Clarify.
type Result struct {
	SessionID          string          `json:"session_id"`
	Items               []Item          `json:"items"`
	OverallConfidence   float64         `json:"overall_confidence"`
	NeedsClarification  bool            `json:"needs_clarification"`
	Clarifications       []Clarification `json:"clarifications,omitempty"`
	Decision            Decision        `json:"decision"`
	Summary             string          `json:"summary"`
}
