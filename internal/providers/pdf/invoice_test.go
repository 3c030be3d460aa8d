package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() invoicedomain.InvoiceFull {
	paid := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	notes := "  Thanks for your business  "
	return invoicedomain.InvoiceFull{
		Invoice: invoicedomain.Invoice{
			InvoiceNumber:  "INV-2024-00043",
			Status:         invoicedomain.InvoiceStatusPaid,
			Currency:       "USD",
			Subtotal:       42857,
			TaxRate:        decimal.RequireFromString("0.05"),
			TaxAmount:      1929,
			DiscountAmount: 4286,
			Total:          40500,
			PaidAmount:     40500,
			IssueDate:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			DueDate:        time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			PaidDate:       &paid,
			Notes:          &notes,
		},
		Items: []invoicedomain.InvoiceItem{
			{Description: "Design", Quantity: decimal.RequireFromString("1.5"), UnitPrice: decimal.RequireFromString("19524.25"), Amount: 29286},
		},
	}
}

func TestBuildInvoiceDataUsesStoredFigures(t *testing.T) {
	data := buildInvoiceData(sampleInvoice(),
		businessdomain.Business{Name: "Acme Studio"},
		clientdomain.Client{Name: "Globex"},
	)

	assert.Equal(t, "428.57 USD", data.Subtotal)
	assert.Equal(t, "42.86 USD", data.Discount)
	assert.Equal(t, "Tax (5%)", data.TaxLabel)
	assert.Equal(t, "405.00 USD", data.Total)
	assert.Equal(t, "0.00 USD", data.AmountDue)
	assert.Equal(t, "2024-03-20", data.PaidDate)
	assert.Equal(t, "Thanks for your business", data.Notes)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "1.5", data.Items[0].Qty)
	assert.Equal(t, "292.86 USD", data.Items[0].Amount)
}

func TestRenderProducesPDF(t *testing.T) {
	out, err := New().Render(context.Background(), sampleInvoice(),
		businessdomain.Business{Name: "Acme Studio", Email: "billing@acme.test"},
		clientdomain.Client{Name: "Globex", Email: "ap@globex.test"},
	)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Render(ctx, sampleInvoice(), businessdomain.Business{}, clientdomain.Client{})
	assert.ErrorIs(t, err, context.Canceled)
}
