// Package parser implements the unified order parser: it turns a
// raw text, WhatsApp, or OCR-extracted input into a canonical item list
// with product matching and confidence scoring, never raising an error to
// the caller — low-confidence input becomes a clarification request or a
// rejection, never an exception.
package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/models"
)

// Thresholds holds the configurable decision boundaries
// (PARSE_AUTO_ACCEPT / PARSE_NEEDS_REVIEW / PRODUCT_MATCH_THRESHOLD).
type Thresholds struct {
	AutoAccept      float64
	NeedsReview     float64
	MatchThreshold  float64
}

// Parser is the unified order parser's public contract: Parse and
// Clarify, backed by a session store and a product catalog provider.
type Parser struct {
	sessions   *SessionStore
	catalog    CatalogProvider
	thresholds Thresholds
}

func New(sessions *SessionStore, catalog CatalogProvider, thresholds Thresholds) *Parser {
	return &Parser{sessions: sessions, catalog: catalog, thresholds: thresholds}
}

// Parse turns rawInput from source into a Result, creating a durable
// ParseSession. It never returns an error for bad input — only for
// infrastructure failure (catalog load, session persistence).
func (p *Parser) Parse(source, rawInput, retailerID string) (*Result, error) {
	catalog, err := p.catalog.Load()
	if err != nil {
		return nil, apperrors.NewTransient("CATALOG_LOAD_FAILED", "failed to load product catalog", err)
	}

	normalized := Normalize(rawInput)
	lines := SplitLines(normalized)
	if len(lines) == 0 {
		lines = []string{normalized}
	}

	items := make([]Item, 0, len(lines))
	clarifications := make([]Clarification, 0)
	itemConfidences := make([]float64, 0, len(lines))

	for idx, line := range lines {
		token := Tokenize(line)
		item, itemClar := resolveToken(idx, token, catalog, p.thresholds.MatchThreshold)
		items = append(items, item)
		itemConfidences = append(itemConfidences, item.Confidence)
		clarifications = append(clarifications, itemClar...)
	}

	overall := overallConfidence(itemConfidences, len(clarifications))
	decision := classify(overall, p.thresholds.AutoAccept, p.thresholds.NeedsReview)

	session, err := p.sessions.Create(retailerID, source, rawInput, items, clarifications, overall)
	if err != nil {
		return nil, apperrors.NewTransient("SESSION_PERSIST_FAILED", "failed to persist parse session", err)
	}

	result := &Result{
		SessionID:          session.SessionID,
		Items:              items,
		OverallConfidence:  overall,
		NeedsClarification: decision == DecisionNeedsReview,
		Clarifications:     clarifications,
		Decision:           decision,
	}
	result.Summary = Summary(result)
	return result, nil
}

// Clarify resumes an open session with answers keyed by clarification
// item index, merging them back into the item list and recomputing
// confidence.
func (p *Parser) Clarify(sessionID string, answers map[int]string) (*Result, error) {
	session, err := p.sessions.Get(sessionID)
	if err != nil {
		return nil, apperrors.NewValidation("UNKNOWN_SESSION", fmt.Sprintf("unknown parse session %s", sessionID))
	}
	if session.Expired(time.Now()) {
		return nil, apperrors.NewValidation("SESSION_EXPIRED", "parse session has expired, please resubmit the order")
	}
	if session.Status != models.ParseSessionAwaitingClarification {
		return nil, apperrors.NewValidation("SESSION_NOT_AWAITING_CLARIFICATION", "parse session is not awaiting clarification")
	}

	items, err := DecodeItems(session)
	if err != nil {
		return nil, apperrors.NewTransient("SESSION_DECODE_FAILED", "failed to decode parse session", err)
	}
	existingClar, err := DecodeClarifications(session)
	if err != nil {
		return nil, apperrors.NewTransient("SESSION_DECODE_FAILED", "failed to decode parse session clarifications", err)
	}

	catalog, err := p.catalog.Load()
	if err != nil {
		return nil, apperrors.NewTransient("CATALOG_LOAD_FAILED", "failed to load product catalog", err)
	}

	remaining := make([]Clarification, 0, len(existingClar))
	for _, c := range existingClar {
		answer, hasAnswer := answers[c.ItemIndex]
		if !hasAnswer || strings.TrimSpace(answer) == "" {
			remaining = append(remaining, c)
			continue
		}
		applyAnswer(&items[c.ItemIndex], c, answer, catalog, p.thresholds.MatchThreshold)
	}

	itemConfidences := make([]float64, 0, len(items))
	for _, it := range items {
		itemConfidences = append(itemConfidences, it.Confidence)
	}
	overall := overallConfidence(itemConfidences, len(remaining))
	decision := classify(overall, p.thresholds.AutoAccept, p.thresholds.NeedsReview)

	status := models.ParseSessionOpen
	if len(remaining) > 0 {
		status = models.ParseSessionAwaitingClarification
	} else if decision == DecisionAutoAccept {
		status = models.ParseSessionAccepted
	} else if decision == DecisionReject {
		status = models.ParseSessionRejected
	}

	if err := p.sessions.Update(session, items, remaining, overall, status); err != nil {
		return nil, apperrors.NewTransient("SESSION_UPDATE_FAILED", "failed to update parse session", err)
	}

	result := &Result{
		SessionID:          session.SessionID,
		Items:              items,
		OverallConfidence:  overall,
		NeedsClarification: len(remaining) > 0,
		Clarifications:     remaining,
		Decision:           decision,
	}
	result.Summary = Summary(result)
	return result, nil
}

// resolveToken matches token against catalog, builds the Item, and emits
// any clarifications it still needs.
func resolveToken(idx int, token Token, catalog []CatalogEntry, matchThreshold float64) (Item, []Clarification) {
	item := Item{
		ProductText: token.ProductText,
		Pattern:     token.Pattern,
	}
	var clarifications []Clarification

	if token.HasQuantity {
		item.Quantity = token.Quantity
	}
	if token.HasUnit {
		if canon, normQty, ok := NormalizeQuantity(token.Quantity, token.Unit); ok {
			item.Unit = token.Unit
			item.NormalizedUnit = canon
			item.Quantity = normQty
		} else {
			clarifications = append(clarifications, Clarification{
				Type: ClarificationInvalidUnit, ItemIndex: idx,
				Question: fmt.Sprintf("What unit did you mean by %q for %q?", token.Unit, token.ProductText),
			})
		}
	}
	if !token.HasQuantity {
		clarifications = append(clarifications, Clarification{
			Type: ClarificationMissingQuantity, ItemIndex: idx,
			Question: fmt.Sprintf("How much %s would you like?", strings.TrimSpace(token.ProductText)),
		})
	}

	match := MatchProduct(token, catalog)
	matchConfidence := match.Confidence
	if match.Tier == MatchNone || matchConfidence < matchThreshold*100 {
		suggestions := topSuggestions(token.ProductText, catalog, 3)
		clarifications = append(clarifications, Clarification{
			Type: ClarificationAmbiguousProduct, ItemIndex: idx,
			Question:    fmt.Sprintf("Which product did you mean by %q?", token.ProductText),
			Suggestions: suggestions,
		})
		matchConfidence = 0
	} else {
		item.ProductID = match.ProductID
		item.MatchTier = match.Tier
	}

	item.Confidence = itemConfidence(token.BaseWeight, matchConfidence, countPending(clarifications))
	return item, clarifications
}

func countPending(clarifications []Clarification) int {
	return len(clarifications)
}

// applyAnswer merges one clarification answer back into the item and
// recomputes its confidence.
func applyAnswer(item *Item, c Clarification, answer string, catalog []CatalogEntry, matchThreshold float64) {
	switch c.Type {
	case ClarificationMissingQuantity:
		if qty, ok := ParseQuantityString(answer); ok {
			item.Quantity = qty
		}
	case ClarificationInvalidUnit:
		if canon, normQty, ok := NormalizeQuantity(item.Quantity, strings.ToLower(strings.TrimSpace(answer))); ok {
			item.Unit = answer
			item.NormalizedUnit = canon
			item.Quantity = normQty
		}
	case ClarificationAmbiguousProduct:
		token := Token{ProductText: answer, BaseWeight: 100}
		match := MatchProduct(token, catalog)
		if match.Tier != MatchNone {
			item.ProductID = match.ProductID
			item.MatchTier = match.Tier
			item.Confidence = itemConfidence(100, match.Confidence, 0)
		}
	}
}

// topSuggestions returns up to n catalog product names ranked by fuzzy
// similarity to text, used to populate AMBIGUOUS_PRODUCT clarifications.
func topSuggestions(text string, catalog []CatalogEntry, n int) []string {
	type scored struct {
		name  string
		ratio float64
	}
	normalized := Normalize(text)
	scoredEntries := make([]scored, 0, len(catalog))
	for _, c := range catalog {
		scoredEntries = append(scoredEntries, scored{c.Name, similarityRatio(normalized, c.NormalizedName)})
	}
	// simple selection sort for top-n, catalogs here are small
	suggestions := make([]string, 0, n)
	for i := 0; i < n && i < len(scoredEntries); i++ {
		best := i
		for j := i + 1; j < len(scoredEntries); j++ {
			if scoredEntries[j].ratio > scoredEntries[best].ratio {
				best = j
			}
		}
		scoredEntries[i], scoredEntries[best] = scoredEntries[best], scoredEntries[i]
		if scoredEntries[i].ratio > 0 {
			suggestions = append(suggestions, scoredEntries[i].name)
		}
	}
	return suggestions
}
