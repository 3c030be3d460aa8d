package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicer/internal/money"
)

// DiscountKind tags the discount variant.
type DiscountKind string

const (
	DiscountNone       DiscountKind = "none"
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

var maxPercentage = decimal.NewFromInt(100)

// DiscountSpec is a closed variant: none, a percentage in [0, 100] or a fixed
// amount in minor units. Values are only built through the constructors below,
// so a kind without a value (or the reverse) cannot exist.
type DiscountSpec struct {
	kind  DiscountKind
	value decimal.Decimal
}

// NoDiscount returns the empty discount.
func NoDiscount() DiscountSpec {
	return DiscountSpec{kind: DiscountNone}
}

// PercentageDiscount builds a percentage discount.
func PercentageDiscount(pct decimal.Decimal) (DiscountSpec, error) {
	if pct.IsNegative() || pct.GreaterThan(maxPercentage) {
		return DiscountSpec{}, NewValidationError("discount.value", "out_of_range", "percentage must be between 0 and 100")
	}
	return DiscountSpec{kind: DiscountPercentage, value: pct}, nil
}

// FixedDiscount builds a fixed discount in minor units.
func FixedDiscount(amount int64) (DiscountSpec, error) {
	if amount < 0 {
		return DiscountSpec{}, NewValidationError("discount.value", "negative", "fixed discount must not be negative")
	}
	return DiscountSpec{kind: DiscountFixed, value: decimal.NewFromInt(amount)}, nil
}

// Kind returns the variant tag; the zero value reports DiscountNone.
func (d DiscountSpec) Kind() DiscountKind {
	if d.kind == "" {
		return DiscountNone
	}
	return d.kind
}

// Percentage returns the percentage value of a percentage discount.
func (d DiscountSpec) Percentage() decimal.Decimal {
	if d.kind != DiscountPercentage {
		return decimal.Zero
	}
	return d.value
}

// FixedAmount returns the amount of a fixed discount.
func (d DiscountSpec) FixedAmount() int64 {
	if d.kind != DiscountFixed {
		return 0
	}
	return d.value.IntPart()
}

// Columns returns the persisted (discount_type, discount_value) pair.
func (d DiscountSpec) Columns() (DiscountKind, decimal.Decimal) {
	if d.Kind() == DiscountNone {
		return DiscountNone, decimal.Zero
	}
	return d.kind, d.value
}

// DiscountInput is the wire form of a discount.
type DiscountInput struct {
	Type  string           `json:"type"`
	Value *decimal.Decimal `json:"value"`
}

// ParseDiscount turns wire input into a DiscountSpec. A nil input means no
// discount.
func ParseDiscount(in *DiscountInput) (DiscountSpec, error) {
	if in == nil {
		return NoDiscount(), nil
	}
	kind := DiscountKind(strings.ToLower(strings.TrimSpace(in.Type)))
	switch kind {
	case "", DiscountNone:
		if in.Value != nil && !in.Value.IsZero() {
			return DiscountSpec{}, NewValidationError("discount.type", "required", "discount type is required when a value is set")
		}
		return NoDiscount(), nil
	case DiscountPercentage:
		if in.Value == nil {
			return DiscountSpec{}, NewValidationError("discount.value", "required", "discount value is required")
		}
		return PercentageDiscount(*in.Value)
	case DiscountFixed:
		if in.Value == nil {
			return DiscountSpec{}, NewValidationError("discount.value", "required", "discount value is required")
		}
		if !in.Value.IsInteger() {
			return DiscountSpec{}, NewValidationError("discount.value", "invalid", "fixed discount must be a whole number of minor units")
		}
		amount, err := money.ToMinor(*in.Value)
		if err != nil {
			return DiscountSpec{}, NewValidationError("discount.value", "out_of_range", "fixed discount is too large")
		}
		return FixedDiscount(amount)
	default:
		return DiscountSpec{}, NewValidationError("discount.type", "invalid", "discount type must be percentage or fixed")
	}
}

// DiscountFromColumns rebuilds a stored discount.
func DiscountFromColumns(kind DiscountKind, value decimal.Decimal) (DiscountSpec, error) {
	switch kind {
	case "", DiscountNone:
		return NoDiscount(), nil
	case DiscountPercentage:
		return PercentageDiscount(value)
	case DiscountFixed:
		return FixedDiscount(value.IntPart())
	default:
		return DiscountSpec{}, NewValidationError("discount.type", "invalid", "unknown discount type")
	}
}

// MarshalJSON renders the discount as {"type": ..., "value": ...}.
func (d DiscountSpec) MarshalJSON() ([]byte, error) {
	if d.Kind() == DiscountNone {
		return json.Marshal(struct {
			Type DiscountKind `json:"type"`
		}{Type: DiscountNone})
	}
	return json.Marshal(struct {
		Type  DiscountKind    `json:"type"`
		Value decimal.Decimal `json:"value"`
	}{Type: d.kind, Value: d.value})
}
