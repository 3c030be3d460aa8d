package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func scenarioLines() []Line {
	return []Line{
		{Quantity: dec("1"), UnitPrice: dec("25000")},
		{Quantity: dec("1"), UnitPrice: dec("12000")},
		{Quantity: dec("2"), UnitPrice: dec("2928.5")},
	}
}

func TestComputeWithoutDiscount(t *testing.T) {
	totals, err := Compute(scenarioLines(), dec("0.05"), invoicedomain.NoDiscount())
	require.NoError(t, err)

	assert.Equal(t, []int64{25000, 12000, 5857}, totals.LineAmounts)
	assert.Equal(t, int64(42857), totals.Subtotal)
	assert.Equal(t, int64(0), totals.DiscountAmount)
	assert.Equal(t, int64(2143), totals.TaxAmount)
	assert.Equal(t, int64(45000), totals.Total)
}

func TestComputeWithPercentageDiscount(t *testing.T) {
	discount, err := invoicedomain.PercentageDiscount(dec("10"))
	require.NoError(t, err)

	totals, err := Compute(scenarioLines(), dec("0.05"), discount)
	require.NoError(t, err)

	assert.Equal(t, int64(42857), totals.Subtotal)
	assert.Equal(t, int64(4286), totals.DiscountAmount)
	assert.Equal(t, int64(38571), totals.TaxableBase)
	assert.Equal(t, int64(1929), totals.TaxAmount)
	assert.Equal(t, int64(40500), totals.Total)
}

func TestComputeClampsFixedDiscountToSubtotal(t *testing.T) {
	discount, err := invoicedomain.FixedDiscount(50000)
	require.NoError(t, err)

	lines := []Line{{Quantity: dec("1"), UnitPrice: dec("30000")}}
	totals, err := Compute(lines, dec("0.05"), discount)
	require.NoError(t, err)

	assert.Equal(t, int64(30000), totals.Subtotal)
	assert.Equal(t, int64(30000), totals.DiscountAmount)
	assert.Equal(t, int64(0), totals.TaxAmount)
	assert.Equal(t, int64(0), totals.Total)
}

func TestComputeRejectsEmptyItems(t *testing.T) {
	_, err := Compute(nil, dec("0.05"), invoicedomain.NoDiscount())
	require.Error(t, err)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidInput)

	var verr *invoicedomain.ValidationErrors
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "items", verr.Errors[0].Field)
}

func TestComputeRejectsInvalidLines(t *testing.T) {
	lines := []Line{
		{Quantity: dec("0"), UnitPrice: dec("100")},
		{Quantity: dec("-1"), UnitPrice: dec("100")},
		{Quantity: dec("1"), UnitPrice: dec("-5")},
	}
	_, err := Compute(lines, dec("0"), invoicedomain.NoDiscount())

	var verr *invoicedomain.ValidationErrors
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Errors))
	for _, e := range verr.Errors {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"items[0].quantity", "items[1].quantity", "items[2].unit_price"}, fields)
}

func TestComputeRejectsLineAmountBeyondRange(t *testing.T) {
	// 1e6 * 9223372036854 would wrap int64 if converted unchecked.
	lines := []Line{{Quantity: dec("1000000"), UnitPrice: dec("9223372036854")}}
	totals, err := Compute(lines, dec("0.05"), invoicedomain.NoDiscount())

	var verr *invoicedomain.ValidationErrors
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "items[0].amount", verr.Errors[0].Field)
	assert.Equal(t, "out_of_range", verr.Errors[0].Code)
	assert.Equal(t, invoicedomain.Totals{}, totals)
}

func TestComputeRejectsSubtotalBeyondRange(t *testing.T) {
	lines := []Line{
		{Quantity: dec("1"), UnitPrice: decimal.NewFromInt(money.MaxAmount)},
		{Quantity: dec("1"), UnitPrice: dec("1000")},
	}
	_, err := Compute(lines, dec("0"), invoicedomain.NoDiscount())

	var verr *invoicedomain.ValidationErrors
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "items", verr.Errors[0].Field)
	assert.Equal(t, "out_of_range", verr.Errors[0].Code)

	_, err = Compute([]Line{{Quantity: dec("1"), UnitPrice: dec("9223372036854775000")}, {Quantity: dec("1"), UnitPrice: dec("1000")}},
		dec("0"), invoicedomain.NoDiscount())
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidInput)
}

func TestComputeAtMaximumStaysNonNegative(t *testing.T) {
	lines := []Line{{Quantity: dec("1"), UnitPrice: decimal.NewFromInt(money.MaxAmount)}}
	totals, err := Compute(lines, dec("1"), invoicedomain.NoDiscount())
	require.NoError(t, err)

	assert.Equal(t, money.MaxAmount, totals.Subtotal)
	assert.Equal(t, 2*money.MaxAmount, totals.Total)
	assert.True(t, totals.Total >= 0)
}

func TestComputeRejectsTaxRateOutOfRange(t *testing.T) {
	for _, rate := range []string{"-0.01", "1.5"} {
		_, err := Compute(scenarioLines(), dec(rate), invoicedomain.NoDiscount())
		assert.ErrorIs(t, err, invoicedomain.ErrInvalidInput, rate)
	}
}

func TestComputeFractionalQuantityRoundsPerLine(t *testing.T) {
	lines := []Line{
		{Quantity: dec("1.5"), UnitPrice: dec("333")},
		{Quantity: dec("0.333"), UnitPrice: dec("1000")},
	}
	totals, err := Compute(lines, dec("0"), invoicedomain.NoDiscount())
	require.NoError(t, err)

	assert.Equal(t, []int64{500, 333}, totals.LineAmounts)
	assert.Equal(t, int64(833), totals.Subtotal)
}

func TestComputeIsDeterministic(t *testing.T) {
	discount, err := invoicedomain.PercentageDiscount(dec("12.5"))
	require.NoError(t, err)
	lines := []Line{
		{Quantity: dec("3"), UnitPrice: dec("1999")},
		{Quantity: dec("0.75"), UnitPrice: dec("12345")},
	}

	first, err := Compute(lines, dec("0.0825"), discount)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Compute(lines, dec("0.0825"), discount)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputeNonNegativeAndOrdered(t *testing.T) {
	rates := []string{"0", "0.05", "0.2", "1"}
	discounts := []invoicedomain.DiscountSpec{invoicedomain.NoDiscount()}
	for _, p := range []string{"0", "33.3", "100"} {
		d, err := invoicedomain.PercentageDiscount(dec(p))
		require.NoError(t, err)
		discounts = append(discounts, d)
	}
	for _, v := range []int64{0, 1, 999999999} {
		d, err := invoicedomain.FixedDiscount(v)
		require.NoError(t, err)
		discounts = append(discounts, d)
	}

	for _, rate := range rates {
		for _, discount := range discounts {
			for _, price := range []int64{0, 1, 7, 101, 987654} {
				lines := []Line{{Quantity: dec("2.5"), UnitPrice: decimal.NewFromInt(price)}}
				totals, err := Compute(lines, dec(rate), discount)
				require.NoError(t, err)

				assert.GreaterOrEqual(t, totals.Subtotal, int64(0))
				assert.GreaterOrEqual(t, totals.DiscountAmount, int64(0))
				assert.LessOrEqual(t, totals.DiscountAmount, totals.Subtotal)
				assert.GreaterOrEqual(t, totals.TaxAmount, int64(0))
				assert.Equal(t, totals.Subtotal-totals.DiscountAmount+totals.TaxAmount, totals.Total)
				assert.GreaterOrEqual(t, totals.Total, int64(0))
			}
		}
	}
}

func TestApplyDiscount(t *testing.T) {
	pct, err := invoicedomain.PercentageDiscount(dec("50"))
	require.NoError(t, err)
	fixed, err := invoicedomain.FixedDiscount(250)
	require.NoError(t, err)

	got, err := ApplyDiscount(1001, pct)
	require.NoError(t, err)
	assert.Equal(t, int64(501), got)

	got, err = ApplyDiscount(1000, fixed)
	require.NoError(t, err)
	assert.Equal(t, int64(250), got)

	got, err = ApplyDiscount(100, fixed)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)

	got, err = ApplyDiscount(100, invoicedomain.DiscountSpec{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestEqual(t *testing.T) {
	a, err := Compute(scenarioLines(), dec("0.05"), invoicedomain.NoDiscount())
	require.NoError(t, err)
	b := a
	assert.True(t, Equal(a, b))
	b.TaxAmount++
	assert.False(t, Equal(a, b))
}

func TestVerifyReportsDrift(t *testing.T) {
	stored, err := Compute(scenarioLines(), dec("0.05"), invoicedomain.NoDiscount())
	require.NoError(t, err)

	result, err := Verify(stored, scenarioLines(), dec("0.05"), invoicedomain.NoDiscount())
	require.NoError(t, err)
	assert.True(t, result.Consistent)

	stored.Total = 44999
	result, err = Verify(stored, scenarioLines(), dec("0.05"), invoicedomain.NoDiscount())
	require.NoError(t, err)
	assert.False(t, result.Consistent)
	assert.Equal(t, int64(45000), result.Recomputed.Total)
}
