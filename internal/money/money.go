// Package money holds the rounding and currency primitives shared by the
// invoice calculator, the tax policy and the PDF renderer.
//
// Monetary values are int64 counts of a currency's minor unit. Quantities,
// rates and percentages are decimals so no binary floating point ever enters
// the computation path.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownCurrency  = errors.New("unknown_currency")
	ErrAmountOutOfRange = errors.New("amount_out_of_range")
)

// MaxAmount is the largest magnitude, in minor units, any line amount or
// invoice figure may take. Tax is at most 100% of a bounded base, so every
// derived figure stays well inside int64.
const MaxAmount int64 = 1_000_000_000_000_000

var (
	hundred   = decimal.NewFromInt(100)
	maxAmount = decimal.NewFromInt(MaxAmount)
)

// RoundHalfUp rounds d to a whole number of minor units. Halves round away
// from zero, which is half-up for the non-negative values invoices carry.
// Callers must keep d within MaxAmount; use ToMinor for unchecked input.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// ToMinor rounds d half-up and rejects results beyond MaxAmount.
func ToMinor(d decimal.Decimal) (int64, error) {
	rounded := d.Round(0)
	if rounded.Abs().GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, rounded.String())
	}
	return rounded.IntPart(), nil
}

// Mul multiplies an amount in minor units by factor and rounds the product.
func Mul(minor int64, factor decimal.Decimal) int64 {
	return RoundHalfUp(decimal.NewFromInt(minor).Mul(factor))
}

// Percent returns round(minor * pct / 100).
func Percent(minor int64, pct decimal.Decimal) int64 {
	return RoundHalfUp(decimal.NewFromInt(minor).Mul(pct).Div(hundred))
}

// MajorToMinor converts a major-unit price such as 29.285 USD into minor
// units (2928.5). Sub-minor precision is kept; rounding happens per line.
func MajorToMinor(major decimal.Decimal, code string) (decimal.Decimal, error) {
	cur, err := LookupCurrency(code)
	if err != nil {
		return decimal.Zero, err
	}
	return major.Shift(cur.Exponent), nil
}

// Format renders an amount for documents, e.g. "1,234.56 USD".
func Format(minor int64, code string) string {
	return FormatDecimal(decimal.NewFromInt(minor), code)
}

// FormatDecimal renders a possibly fractional minor-unit value such as a unit
// price of 2928.5 cents as "29.285 USD". At least the currency's own digits
// are shown.
func FormatDecimal(minor decimal.Decimal, code string) string {
	cur, err := LookupCurrency(code)
	if err != nil {
		return fmt.Sprintf("%s %s", minor.String(), strings.ToUpper(strings.TrimSpace(code)))
	}

	negative := minor.IsNegative()
	places := cur.Exponent
	if exp := minor.Exponent(); exp < 0 {
		places -= exp
	}
	digits := minor.Abs().Shift(-cur.Exponent).StringFixed(places)
	whole, frac, _ := strings.Cut(digits, ".")
	for int32(len(frac)) > cur.Exponent && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
	}

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	b.WriteByte(' ')
	b.WriteString(cur.Code)
	return b.String()
}
