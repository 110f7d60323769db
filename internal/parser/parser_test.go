package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Idempotent(t *testing.T) {
	in := "  10 KG   Rice  "
	once := Normalize(in)
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}

func TestNormalize_RepairsOCRDigitInLetters(t *testing.T) {
	out := Normalize("o1l")
	assert.Equal(t, "oll", out)
}

func TestSplitLines(t *testing.T) {
	lines := SplitLines("10 kg rice, 5 l oil\n2 dozen eggs")
	require.Len(t, lines, 3)
	assert.Equal(t, "10 kg rice", lines[0])
	assert.Equal(t, "5 l oil", lines[1])
	assert.Equal(t, "2 dozen eggs", lines[2])
}

func TestTokenize_SKUQty(t *testing.T) {
	tok := Tokenize("rice-5kg x 3")
	assert.Equal(t, PatternSKUQty, tok.Pattern)
	assert.True(t, tok.Quantity.Equal(decimal.NewFromInt(3)))
}

func TestTokenize_QtyUnitProduct(t *testing.T) {
	tok := Tokenize("10 kg rice")
	assert.Equal(t, PatternQtyUnitProd, tok.Pattern)
	assert.Equal(t, "kg", tok.Unit)
	assert.Equal(t, "rice", tok.ProductText)
}

func TestTokenize_ProductQtyUnit(t *testing.T) {
	tok := Tokenize("rice 10 kg")
	assert.Equal(t, PatternProdQtyUnit, tok.Pattern)
	assert.Equal(t, "rice", tok.ProductText)
}

func TestTokenize_BareProduct(t *testing.T) {
	tok := Tokenize("rice")
	assert.Equal(t, PatternBareProduct, tok.Pattern)
	assert.False(t, tok.HasQuantity)
}

func TestNormalizeUnit_DozenFactor(t *testing.T) {
	canon, qty, ok := NormalizeQuantity(decimal.NewFromInt(2), "dozen")
	require.True(t, ok)
	assert.Equal(t, "piece", canon)
	assert.True(t, qty.Equal(decimal.NewFromInt(24)))
}

func TestNormalizeUnit_GramToKg(t *testing.T) {
	canon, qty, ok := NormalizeQuantity(decimal.NewFromInt(500), "g")
	require.True(t, ok)
	assert.Equal(t, "kg", canon)
	assert.True(t, qty.Equal(decimal.NewFromFloat(0.5)))
}

func TestMatchProduct_ExactSKU(t *testing.T) {
	catalog := []CatalogEntry{{ProductID: "p1", SKU: "RICE-5KG", NormalizedName: "basmati rice"}}
	token := Token{SKU: "rice-5kg"}
	result := MatchProduct(token, catalog)
	assert.Equal(t, MatchExactSKU, result.Tier)
	assert.Equal(t, "p1", result.ProductID)
}

func TestMatchProduct_ExactAlias(t *testing.T) {
	catalog := []CatalogEntry{{ProductID: "p1", NormalizedName: "basmati rice", Aliases: []string{"chaal"}}}
	token := Token{ProductText: "chaal"}
	result := MatchProduct(token, catalog)
	assert.Equal(t, MatchExactAlias, result.Tier)
}

func TestMatchProduct_Fuzzy(t *testing.T) {
	catalog := []CatalogEntry{{ProductID: "p1", NormalizedName: "basmati rice"}}
	token := Token{ProductText: "basmati ricee"}
	result := MatchProduct(token, catalog)
	assert.Equal(t, MatchFuzzy, result.Tier)
	assert.GreaterOrEqual(t, result.Confidence, 50.0)
}

func TestMatchProduct_None(t *testing.T) {
	catalog := []CatalogEntry{{ProductID: "p1", NormalizedName: "basmati rice"}}
	token := Token{ProductText: "automobile tires"}
	result := MatchProduct(token, catalog)
	assert.Equal(t, MatchNone, result.Tier)
}

func TestOverallConfidence_PenalizesPendingClarifications(t *testing.T) {
	withNone := overallConfidence([]float64{90, 90}, 0)
	withTwo := overallConfidence([]float64{90, 90}, 2)
	assert.Equal(t, 90.0, withNone)
	assert.Equal(t, 70.0, withTwo)
}

func TestClassify_Thresholds(t *testing.T) {
	assert.Equal(t, DecisionAutoAccept, classify(85, 80, 50))
	assert.Equal(t, DecisionNeedsReview, classify(60, 80, 50))
	assert.Equal(t, DecisionReject, classify(30, 80, 50))
}
