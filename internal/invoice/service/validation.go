package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicer/internal/invoice/calc"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/money"
	taxservice "github.com/smallbiznis/invoicer/internal/tax/service"
)

const maxNotesLength = 2000

// inputDefaults fill fields the caller left out.
type inputDefaults struct {
	Currency     string
	ExchangeRate decimal.Decimal
	DueDays      int
	TaxRate      *decimal.Decimal
}

type validatedItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	SortOrder   int
}

type validatedInput struct {
	ClientID     snowflake.ID
	Currency     string
	ExchangeRate decimal.Decimal
	IssueDate    time.Time
	DueDate      time.Time
	// TaxRate is nil when the business default should apply.
	TaxRate  *decimal.Decimal
	Discount invoicedomain.DiscountSpec
	Notes    *string
	Items    []validatedItem
}

func (v validatedInput) lines() []calc.Line {
	lines := make([]calc.Line, len(v.Items))
	for i, item := range v.Items {
		lines[i] = calc.Line{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	return lines
}

// validateInput collects every field error of an invoice payload at once.
func validateInput(in invoicedomain.InvoiceInput, defaults inputDefaults) (validatedInput, error) {
	verr := &invoicedomain.ValidationErrors{}
	out := validatedInput{TaxRate: defaults.TaxRate}

	rawClientID := strings.TrimSpace(in.ClientID)
	if rawClientID == "" {
		verr.Add("client_id", "required", "client_id is required")
	} else if id, err := snowflake.ParseString(rawClientID); err != nil || id <= 0 {
		verr.Add("client_id", "invalid", "client_id is not a valid id")
	} else {
		out.ClientID = id
	}

	currency := money.NormalizeCode(in.Currency)
	if currency == "" {
		currency = money.NormalizeCode(defaults.Currency)
	}
	if !money.IsSupported(currency) {
		verr.Add("currency", "unsupported", fmt.Sprintf("currency %q is not supported", currency))
	}
	out.Currency = currency

	out.ExchangeRate = decimal.NewFromInt(1)
	if !defaults.ExchangeRate.IsZero() {
		out.ExchangeRate = defaults.ExchangeRate
	}
	if in.ExchangeRateToBase != nil {
		out.ExchangeRate = *in.ExchangeRateToBase
	}
	if !out.ExchangeRate.IsPositive() {
		verr.Add("exchange_rate_to_base", "must_be_positive", "exchange rate must be greater than zero")
	}

	if in.IssueDate == nil || in.IssueDate.IsZero() {
		verr.Add("issue_date", "required", "issue_date is required")
	} else {
		out.IssueDate = dateOnly(*in.IssueDate)
		if in.DueDate != nil && !in.DueDate.IsZero() {
			out.DueDate = dateOnly(*in.DueDate)
		} else {
			out.DueDate = out.IssueDate.AddDate(0, 0, defaults.DueDays)
		}
		if out.DueDate.Before(out.IssueDate) {
			verr.Add("due_date", "before_issue_date", "due_date must not be before issue_date")
		}
	}

	if in.TaxRate != nil {
		if err := taxservice.ValidateRate(*in.TaxRate); err != nil {
			verr.Merge(err)
		}
		rate := *in.TaxRate
		out.TaxRate = &rate
	}

	discount, err := invoicedomain.ParseDiscount(in.Discount)
	if err != nil {
		verr.Merge(err)
	}
	out.Discount = discount

	if in.Notes != nil {
		notes := strings.TrimSpace(*in.Notes)
		if utf8.RuneCountInString(notes) > maxNotesLength {
			verr.Add("notes", "too_long", fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
		}
		if notes != "" {
			out.Notes = &notes
		}
	}

	out.Items = validateItems(in.Items, currency, verr)

	if err := verr.Err(); err != nil {
		return validatedInput{}, err
	}
	return out, nil
}

// validateItems checks each line and resolves its unit price to minor units.
// Line amounts and the subtotal are range checked by the calculator.
func validateItems(items []invoicedomain.LineItemInput, currency string, verr *invoicedomain.ValidationErrors) []validatedItem {
	if len(items) == 0 {
		verr.Add("items", "required", "at least one line item is required")
		return nil
	}

	out := make([]validatedItem, 0, len(items))
	seen := make(map[int]struct{}, len(items))
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)

		description := strings.TrimSpace(item.Description)
		if description == "" {
			verr.Add(field+".description", "required", "description is required")
		}
		if !item.Quantity.IsPositive() {
			verr.Add(field+".quantity", "must_be_positive", "quantity must be greater than zero")
		}

		unitPrice, ok := resolveUnitPrice(item, currency, field, verr)
		if ok && unitPrice.IsNegative() {
			verr.Add(field+".unit_price", "negative", "unit price must not be negative")
		}

		sortOrder := i
		if item.SortOrder != nil {
			sortOrder = *item.SortOrder
		}
		if _, dup := seen[sortOrder]; dup {
			verr.Add(field+".sort_order", "duplicate", "sort_order must be unique within the invoice")
		}
		seen[sortOrder] = struct{}{}

		out = append(out, validatedItem{
			Description: description,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			SortOrder:   sortOrder,
		})
	}
	return out
}

func resolveUnitPrice(item invoicedomain.LineItemInput, currency, field string, verr *invoicedomain.ValidationErrors) (decimal.Decimal, bool) {
	if item.UnitPriceMajor == nil {
		return item.UnitPrice, true
	}
	if !item.UnitPrice.IsZero() {
		verr.Add(field+".unit_price_major", "conflict", "set either unit_price or unit_price_major, not both")
		return decimal.Zero, false
	}
	minor, err := money.MajorToMinor(*item.UnitPriceMajor, currency)
	if err != nil {
		// Unknown currency is reported on the currency field.
		return decimal.Zero, false
	}
	return minor, true
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
