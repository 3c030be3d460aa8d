package render

import (
	"time"

	"github.com/shopspring/decimal"
)

// Renderer produces the HTML body of invoice emails.
type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
}

type RenderInput struct {
	Business BusinessView
	Client   ClientView
	Invoice  InvoiceView
	Items    []LineItemView
}

type BusinessView struct {
	Name    string
	Email   string
	Address string
}

type ClientView struct {
	Name    string
	Email   string
	Address string
}

type InvoiceView struct {
	Number         string
	Status         string
	Currency       string
	IssueDate      time.Time
	DueDate        time.Time
	Subtotal       int64
	DiscountAmount int64
	TaxAmount      int64
	Total          int64
	Notes          string
}

type LineItemView struct {
	Description string
	Quantity    string
	UnitPrice   decimal.Decimal
	Amount      int64
}
