package domain

import (
	"context"

	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
)

// PDFRenderer turns a persisted invoice snapshot into a document. It must
// never recompute totals.
type PDFRenderer interface {
	Render(ctx context.Context, invoice InvoiceFull, business businessdomain.Business, client clientdomain.Client) ([]byte, error)
}

// Notifier delivers the invoice to the client once it has been sent.
type Notifier interface {
	InvoiceSent(ctx context.Context, invoice InvoiceFull, business businessdomain.Business, client clientdomain.Client) error
}
