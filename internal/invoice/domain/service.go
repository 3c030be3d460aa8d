package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicer/pkg/db/pagination"
)

// LineItemInput is a caller-supplied line. Amount is always derived.
// UnitPrice is in minor units and may be fractional (2928.5 cents);
// UnitPriceMajor is the same price in major units (29.285) and is converted
// with the invoice currency. Set one of the two.
type LineItemInput struct {
	Description    string           `json:"description"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	UnitPriceMajor *decimal.Decimal `json:"unit_price_major,omitempty"`
	SortOrder      *int             `json:"sort_order,omitempty"`
}

// InvoiceInput holds the editable fields shared by create and update.
type InvoiceInput struct {
	ClientID           string
	Currency           string
	ExchangeRateToBase *decimal.Decimal
	IssueDate          *time.Time
	DueDate            *time.Time
	TaxRate            *decimal.Decimal
	Discount           *DiscountInput
	Notes              *string
	Items              []LineItemInput
}

type CreateInvoiceRequest struct {
	InvoiceInput
}

type UpdateInvoiceRequest struct {
	ID              string
	ExpectedVersion *int64
	InvoiceInput
}

type ListInvoiceRequest struct {
	Page     int
	Limit    int
	Status   string
	ClientID string
	Search   string
}

type ListInvoiceResponse struct {
	pagination.OffsetPageInfo
	Invoices []Invoice `json:"invoices"`
}

type MarkPaidRequest struct {
	ID         string
	PaidAmount *int64
	PaidDate   *time.Time
}

type PreviewRequest struct {
	// Currency only matters for unit_price_major; empty means the configured
	// default.
	Currency string
	TaxRate  *decimal.Decimal
	Discount *DiscountInput
	Items    []LineItemInput
}

// Totals are the computed figures of an invoice.
type Totals struct {
	LineAmounts    []int64         `json:"line_amounts"`
	Subtotal       int64           `json:"subtotal"`
	Discount       DiscountSpec    `json:"discount"`
	DiscountAmount int64           `json:"discount_amount"`
	TaxableBase    int64           `json:"taxable_base"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      int64           `json:"tax_amount"`
	Total          int64           `json:"total"`
}

// VerifyResult reports whether stored totals still match a recomputation.
type VerifyResult struct {
	Consistent bool   `json:"consistent"`
	Stored     Totals `json:"stored"`
	Recomputed Totals `json:"recomputed"`
}

// PDFDocument is a rendered invoice document.
type PDFDocument struct {
	Filename string
	Content  []byte
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (InvoiceFull, error)
	Update(ctx context.Context, req UpdateInvoiceRequest) (InvoiceFull, error)
	Get(ctx context.Context, id string) (InvoiceFull, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	Delete(ctx context.Context, id string) error

	Send(ctx context.Context, id string) (InvoiceFull, error)
	MarkViewed(ctx context.Context, id string) (InvoiceFull, error)
	MarkPaid(ctx context.Context, req MarkPaidRequest) (InvoiceFull, error)
	Cancel(ctx context.Context, id string) (InvoiceFull, error)

	Preview(ctx context.Context, req PreviewRequest) (Totals, error)
	VerifyTotals(ctx context.Context, id string) (VerifyResult, error)
	RenderPDF(ctx context.Context, id string) (PDFDocument, error)

	// MarkOverdue moves up to limit past-due sent/viewed invoices to overdue
	// and returns how many were transitioned.
	MarkOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}
