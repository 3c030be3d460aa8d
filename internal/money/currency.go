package money

import (
	"fmt"
	"strings"
)

// Currency describes an ISO-4217 currency and its minor-unit exponent.
type Currency struct {
	Code     string
	Exponent int32
}

var currencies = map[string]Currency{
	"AUD": {Code: "AUD", Exponent: 2},
	"BHD": {Code: "BHD", Exponent: 3},
	"BRL": {Code: "BRL", Exponent: 2},
	"CAD": {Code: "CAD", Exponent: 2},
	"CHF": {Code: "CHF", Exponent: 2},
	"CNY": {Code: "CNY", Exponent: 2},
	"EUR": {Code: "EUR", Exponent: 2},
	"GBP": {Code: "GBP", Exponent: 2},
	"HKD": {Code: "HKD", Exponent: 2},
	"IDR": {Code: "IDR", Exponent: 0},
	"INR": {Code: "INR", Exponent: 2},
	"JPY": {Code: "JPY", Exponent: 0},
	"KRW": {Code: "KRW", Exponent: 0},
	"KWD": {Code: "KWD", Exponent: 3},
	"MXN": {Code: "MXN", Exponent: 2},
	"MYR": {Code: "MYR", Exponent: 2},
	"NZD": {Code: "NZD", Exponent: 2},
	"PHP": {Code: "PHP", Exponent: 2},
	"SEK": {Code: "SEK", Exponent: 2},
	"SGD": {Code: "SGD", Exponent: 2},
	"THB": {Code: "THB", Exponent: 2},
	"USD": {Code: "USD", Exponent: 2},
	"VND": {Code: "VND", Exponent: 0},
	"ZAR": {Code: "ZAR", Exponent: 2},
}

// LookupCurrency resolves a currency code case-insensitively.
func LookupCurrency(code string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	cur, ok := currencies[normalized]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return cur, nil
}

// IsSupported reports whether code is a known currency.
func IsSupported(code string) bool {
	_, err := LookupCurrency(code)
	return err == nil
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
