package parser

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// MatchTier identifies which matching strategy resolved a token to a
// product, in decreasing confidence order.
type MatchTier string

const (
	MatchExactSKU       MatchTier = "EXACT_SKU"
	MatchExactAlias     MatchTier = "EXACT_ALIAS"
	MatchNormalizedName MatchTier = "NORMALIZED_NAME"
	MatchFuzzy          MatchTier = "FUZZY"
	MatchFullText       MatchTier = "FULL_TEXT"
	MatchNone           MatchTier = "NONE"
)

// CatalogEntry is the subset of a Product + its aliases the matcher needs;
// callers build this from internal/models rows without the matcher
// importing the database layer directly.
type CatalogEntry struct {
	ProductID     string
	SKU           string
	Name          string
	NormalizedName string
	Aliases       []string
}

// MatchResult is the outcome of matching one token's product text (or
// SKU) against the catalog.
type MatchResult struct {
	Tier       MatchTier
	ProductID  string
	Confidence float64 // 0-100, already scaled per tier
}

// MinSimilarity is the default fuzzy-match acceptance threshold: the
// edit-distance ratio a fuzzy candidate must clear.
const MinSimilarity = 0.65

// MatchProduct resolves a token against catalog in the fixed tier order.
// It never errors: an unresolved token yields MatchNone with confidence 0,
// which the caller turns into an AMBIGUOUS_PRODUCT clarification.
func MatchProduct(token Token, catalog []CatalogEntry) MatchResult {
	if token.SKU != "" {
		for _, c := range catalog {
			if strings.EqualFold(c.SKU, token.SKU) {
				return MatchResult{Tier: MatchExactSKU, ProductID: c.ProductID, Confidence: 97}
			}
		}
	}

	text := strings.ToLower(strings.TrimSpace(token.ProductText))
	if text == "" {
		return MatchResult{Tier: MatchNone}
	}

	for _, c := range catalog {
		for _, alias := range c.Aliases {
			if strings.EqualFold(alias, text) {
				return MatchResult{Tier: MatchExactAlias, ProductID: c.ProductID, Confidence: 92}
			}
		}
	}

	normalized := Normalize(text)
	for _, c := range catalog {
		if c.NormalizedName == normalized {
			return MatchResult{Tier: MatchNormalizedName, ProductID: c.ProductID, Confidence: 87}
		}
	}

	if best, ratio, ok := bestFuzzyMatch(normalized, catalog); ok {
		// scale 50-80 across [MinSimilarity, 1.0]
		span := 1.0 - MinSimilarity
		scaled := 50 + (ratio-MinSimilarity)/span*30
		return MatchResult{Tier: MatchFuzzy, ProductID: best.ProductID, Confidence: scaled}
	}

	if best, ok := fullTextMatch(normalized, catalog); ok {
		return MatchResult{Tier: MatchFullText, ProductID: best.ProductID, Confidence: 67}
	}

	return MatchResult{Tier: MatchNone}
}

func bestFuzzyMatch(normalized string, catalog []CatalogEntry) (CatalogEntry, float64, bool) {
	var best CatalogEntry
	bestRatio := 0.0
	found := false
	for _, c := range catalog {
		ratio := similarityRatio(normalized, c.NormalizedName)
		if ratio >= MinSimilarity && ratio > bestRatio {
			best, bestRatio, found = c, ratio, true
		}
	}
	return best, bestRatio, found
}

// similarityRatio converts edit distance into a 0..1 similarity score
// normalized by the longer string's length, the conventional ratio form.
func similarityRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(dist)/float64(maxLen)
}

// fullTextMatch falls back to a substring/token-overlap search when no
// tier above resolved a candidate, the last resort before surfacing an
// AMBIGUOUS_PRODUCT clarification.
func fullTextMatch(normalized string, catalog []CatalogEntry) (CatalogEntry, bool) {
	words := strings.Fields(normalized)
	var best CatalogEntry
	bestScore := 0
	for _, c := range catalog {
		nameWords := strings.Fields(c.NormalizedName)
		score := 0
		for _, w := range words {
			for _, nw := range nameWords {
				if w == nw {
					score++
				}
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore > 0
}
