package calc

import (
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/money"
)

// ApplyDiscount returns the discount amount for subtotal, always within
// [0, subtotal]. A fixed amount above the subtotal is clamped to it.
func ApplyDiscount(subtotal int64, discount invoicedomain.DiscountSpec) (int64, error) {
	var amount int64
	switch discount.Kind() {
	case invoicedomain.DiscountNone:
		return 0, nil
	case invoicedomain.DiscountPercentage:
		pct := discount.Percentage()
		if _, err := invoicedomain.PercentageDiscount(pct); err != nil {
			return 0, err
		}
		amount = money.Percent(subtotal, pct)
	case invoicedomain.DiscountFixed:
		amount = discount.FixedAmount()
		if amount < 0 {
			return 0, invoicedomain.NewValidationError("discount.value", "negative", "fixed discount must not be negative")
		}
	default:
		return 0, invoicedomain.NewValidationError("discount.type", "invalid", "unknown discount type")
	}
	return clamp(amount, 0, subtotal), nil
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
