// Package calc computes invoice totals. Everything here is pure: no clock, no
// locale, no storage.
package calc

import (
	"fmt"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/money"
	taxservice "github.com/smallbiznis/invoicer/internal/tax/service"
)

// Line is the calculator's view of a line item. UnitPrice is in minor units
// of the invoice currency and may carry sub-minor precision.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// LineAmount returns round(quantity * unit price), or ErrAmountOutOfRange when
// the product exceeds money.MaxAmount.
func LineAmount(l Line) (int64, error) {
	return money.ToMinor(l.Quantity.Mul(l.UnitPrice))
}

// Subtotal validates lines and sums their amounts. The returned slice holds
// each line's amount in input order. The sum is taken in decimal and range
// checked so it can never wrap.
func Subtotal(lines []Line) (int64, []int64, error) {
	verr := &invoicedomain.ValidationErrors{}
	if len(lines) == 0 {
		verr.Add("items", "required", "at least one line item is required")
		return 0, nil, verr
	}

	amounts := make([]int64, len(lines))
	sum := decimal.Zero
	for i, l := range lines {
		field := fmt.Sprintf("items[%d]", i)
		if !l.Quantity.IsPositive() {
			verr.Add(field+".quantity", "must_be_positive", "quantity must be greater than zero")
		}
		if l.UnitPrice.IsNegative() {
			verr.Add(field+".unit_price", "negative", "unit price must not be negative")
		}
		amount, err := LineAmount(l)
		if err != nil {
			verr.Add(field+".amount", "out_of_range", fmt.Sprintf("line amount must not exceed %d", money.MaxAmount))
			continue
		}
		amounts[i] = amount
		sum = sum.Add(decimal.NewFromInt(amount))
	}
	if err := verr.Err(); err != nil {
		return 0, nil, err
	}

	subtotal, err := money.ToMinor(sum)
	if err != nil {
		verr.Add("items", "out_of_range", fmt.Sprintf("subtotal must not exceed %d", money.MaxAmount))
		return 0, nil, verr
	}
	return subtotal, amounts, nil
}

// Compute runs the fixed pipeline: subtotal, discount, taxable base, tax,
// total.
func Compute(lines []Line, taxRate decimal.Decimal, discount invoicedomain.DiscountSpec) (invoicedomain.Totals, error) {
	subtotal, amounts, err := Subtotal(lines)
	if err != nil {
		return invoicedomain.Totals{}, err
	}
	if err := taxservice.ValidateRate(taxRate); err != nil {
		return invoicedomain.Totals{}, err
	}

	discountAmount, err := ApplyDiscount(subtotal, discount)
	if err != nil {
		return invoicedomain.Totals{}, err
	}

	base := subtotal - discountAmount
	tax := taxservice.ComputeTaxExclusive(base, taxRate)

	return invoicedomain.Totals{
		LineAmounts:    amounts,
		Subtotal:       subtotal,
		Discount:       discount,
		DiscountAmount: discountAmount,
		TaxableBase:    base,
		TaxRate:        taxRate,
		TaxAmount:      tax,
		Total:          base + tax,
	}, nil
}

// Equal reports whether two totals carry the same monetary figures.
func Equal(a, b invoicedomain.Totals) bool {
	return a.Subtotal == b.Subtotal &&
		a.DiscountAmount == b.DiscountAmount &&
		a.TaxAmount == b.TaxAmount &&
		a.Total == b.Total
}

// Verify recomputes totals from their inputs and compares them with a stored
// snapshot.
func Verify(stored invoicedomain.Totals, lines []Line, taxRate decimal.Decimal, discount invoicedomain.DiscountSpec) (invoicedomain.VerifyResult, error) {
	recomputed, err := Compute(lines, taxRate, discount)
	if err != nil {
		return invoicedomain.VerifyResult{}, err
	}
	return invoicedomain.VerifyResult{
		Consistent: Equal(stored, recomputed),
		Stored:     stored,
		Recomputed: recomputed,
	}, nil
}
