package parser

import "github.com/shopspring/decimal"

// UnitClass groups units that convert to a common canonical unit.
type UnitClass string

const (
	UnitClassWeight UnitClass = "weight"
	UnitClassVolume UnitClass = "volume"
	UnitClassCount  UnitClass = "count"
)

// unitDef describes one recognized unit spelling, its class, canonical
// unit, and the multiplicative factor to convert a quantity in this unit
// into the canonical unit.
type unitDef struct {
	class     UnitClass
	canonical string
	factor    decimal.Decimal
}

var unitTable = map[string]unitDef{
	"kg":    {UnitClassWeight, "kg", decimal.NewFromInt(1)},
	"kgs":   {UnitClassWeight, "kg", decimal.NewFromInt(1)},
	"kilo":  {UnitClassWeight, "kg", decimal.NewFromInt(1)},
	"kilos": {UnitClassWeight, "kg", decimal.NewFromInt(1)},
	"g":     {UnitClassWeight, "kg", decimal.NewFromFloat(0.001)},
	"gram":  {UnitClassWeight, "kg", decimal.NewFromFloat(0.001)},
	"grams": {UnitClassWeight, "kg", decimal.NewFromFloat(0.001)},

	"l":     {UnitClassVolume, "l", decimal.NewFromInt(1)},
	"lt":    {UnitClassVolume, "l", decimal.NewFromInt(1)},
	"litre": {UnitClassVolume, "l", decimal.NewFromInt(1)},
	"liter": {UnitClassVolume, "l", decimal.NewFromInt(1)},
	"ml":    {UnitClassVolume, "l", decimal.NewFromFloat(0.001)},

	"piece":  {UnitClassCount, "piece", decimal.NewFromInt(1)},
	"pieces": {UnitClassCount, "piece", decimal.NewFromInt(1)},
	"pc":     {UnitClassCount, "piece", decimal.NewFromInt(1)},
	"pcs":    {UnitClassCount, "piece", decimal.NewFromInt(1)},
	"unit":   {UnitClassCount, "piece", decimal.NewFromInt(1)},
	"units":  {UnitClassCount, "piece", decimal.NewFromInt(1)},
	"dozen":  {UnitClassCount, "piece", decimal.NewFromInt(12)},
	"dozens": {UnitClassCount, "piece", decimal.NewFromInt(12)},
}

// NormalizeUnit resolves a raw unit spelling to its canonical unit and
// conversion factor. ok is false for an unrecognized unit, which the
// caller should surface as an INVALID_UNIT clarification.
func NormalizeUnit(raw string) (canonical string, factor decimal.Decimal, ok bool) {
	def, found := unitTable[raw]
	if !found {
		return "", decimal.Zero, false
	}
	return def.canonical, def.factor, true
}

// NormalizeQuantity converts qty in the given raw unit to its canonical
// unit quantity: normalized_qty = qty * factor.
func NormalizeQuantity(qty decimal.Decimal, rawUnit string) (canonical string, normalizedQty decimal.Decimal, ok bool) {
	canon, factor, ok := NormalizeUnit(rawUnit)
	if !ok {
		return "", decimal.Zero, false
	}
	return canon, qty.Mul(factor), true
}
