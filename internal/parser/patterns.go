package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// PatternKind identifies which of the recognized line patterns
// produced a Token, each carrying its own base confidence weight.
type PatternKind string

const (
	PatternSKUQty       PatternKind = "SKU_QTY"
	PatternQtyUnitProd  PatternKind = "QTY_UNIT_PRODUCT"
	PatternProdQtyUnit  PatternKind = "PRODUCT_QTY_UNIT"
	PatternProdUnitQty  PatternKind = "PRODUCT_UNIT_QTY"
	PatternBareProduct  PatternKind = "BARE_PRODUCT"
	PatternFreeform     PatternKind = "FREEFORM"
)

// baseWeight is the pattern's starting confidence contribution before
// product-match confidence is folded in.
var baseWeight = map[PatternKind]float64{
	PatternSKUQty:      95,
	PatternQtyUnitProd: 88,
	PatternProdQtyUnit: 85,
	PatternProdUnitQty: 82,
	PatternBareProduct: 70,
	PatternFreeform:    75,
}

// Token is one recognized line before product matching.
type Token struct {
	Pattern     PatternKind
	BaseWeight  float64
	SKU         string
	ProductText string
	Quantity    decimal.Decimal
	Unit        string
	HasQuantity bool
	HasUnit     bool
}

var (
	reSKUQty      = regexp.MustCompile(`^([a-z0-9\-]{3,})\s*[x×]\s*(\d+(?:\.\d+)?)$`)
	reQtyUnitProd = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]+)\s+(.+)$`)
	reProdQtyUnit = regexp.MustCompile(`^(.+?)\s+(\d+(?:\.\d+)?)\s*([a-z]+)$`)
	reProdUnitQty = regexp.MustCompile(`^(.+?)\s+([a-z]+)\s+(\d+(?:\.\d+)?)$`)
)

// Tokenize recognizes a single normalized line against the patterns in
// a fixed priority order, returning the first match.
func Tokenize(line string) Token {
	line = strings.TrimSpace(line)

	if m := reSKUQty.FindStringSubmatch(line); m != nil {
		qty, _ := decimal.NewFromString(m[2])
		return Token{Pattern: PatternSKUQty, BaseWeight: baseWeight[PatternSKUQty], SKU: m[1], Quantity: qty, HasQuantity: true}
	}
	if m := reQtyUnitProd.FindStringSubmatch(line); m != nil {
		if _, _, ok := NormalizeUnit(m[2]); ok {
			qty, _ := decimal.NewFromString(m[1])
			return Token{Pattern: PatternQtyUnitProd, BaseWeight: baseWeight[PatternQtyUnitProd], Quantity: qty, Unit: m[2], ProductText: strings.TrimSpace(m[3]), HasQuantity: true, HasUnit: true}
		}
	}
	if m := reProdQtyUnit.FindStringSubmatch(line); m != nil {
		if _, _, ok := NormalizeUnit(m[3]); ok {
			qty, _ := decimal.NewFromString(m[2])
			return Token{Pattern: PatternProdQtyUnit, BaseWeight: baseWeight[PatternProdQtyUnit], ProductText: strings.TrimSpace(m[1]), Quantity: qty, Unit: m[3], HasQuantity: true, HasUnit: true}
		}
	}
	if m := reProdUnitQty.FindStringSubmatch(line); m != nil {
		if _, _, ok := NormalizeUnit(m[2]); ok {
			qty, _ := decimal.NewFromString(m[3])
			return Token{Pattern: PatternProdUnitQty, BaseWeight: baseWeight[PatternProdUnitQty], ProductText: strings.TrimSpace(m[1]), Quantity: qty, Unit: m[2], HasQuantity: true, HasUnit: true}
		}
	}
	if freeform, ok := tryFreeform(line); ok {
		return freeform
	}

	// Bare product: no recognizable quantity or unit at all. Parsed as-is,
	// always a candidate for a MISSING_QUANTITY clarification.
	return Token{Pattern: PatternBareProduct, BaseWeight: baseWeight[PatternBareProduct], ProductText: line}
}

// reFreeform matches loose natural-language fragments like "10 kg rice"
// embedded in a longer clause, distinct from the strict QTY_UNIT_PRODUCT
// anchor match. It differs from reQtyUnitProd only in that it tolerates
// filler words between quantity/unit and the product name (e.g. "about
// 10 kg of rice").
var reFreeform = regexp.MustCompile(`^(?:about|approx\.?|around)?\s*(\d+(?:\.\d+)?)\s*([a-z]+)\s+(?:of\s+)?(.+)$`)

func tryFreeform(line string) (Token, bool) {
	m := reFreeform.FindStringSubmatch(line)
	if m == nil {
		return Token{}, false
	}
	if _, _, ok := NormalizeUnit(m[2]); !ok {
		return Token{}, false
	}
	qty, err := decimal.NewFromString(m[1])
	if err != nil {
		return Token{}, false
	}
	return Token{
		Pattern: PatternFreeform, BaseWeight: baseWeight[PatternFreeform],
		Quantity: qty, Unit: m[2], ProductText: strings.TrimSpace(m[3]),
		HasQuantity: true, HasUnit: true,
	}, true
}

// ParseQuantityString is a small helper used by Clarify answers, which
// arrive as plain strings rather than pre-tokenized lines.
func ParseQuantityString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	return d, err == nil
}
