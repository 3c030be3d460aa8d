package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/money"
)

const dateLayout = "2006-01-02"

type invoiceData struct {
	BusinessName    string
	BusinessAddress string
	BusinessEmail   string
	InvoiceNumber   string
	Status          string
	IssueDate       string
	DueDate         string
	PaidDate        string

	BillToName    string
	BillToAddress string
	BillToEmail   string

	Items []invoiceItem

	Subtotal  string
	Discount  string
	TaxLabel  string
	Tax       string
	Total     string
	AmountDue string
	Notes     string
}

type invoiceItem struct {
	Description string
	Qty         string
	UnitPrice   string
	Amount      string
}

// Render lays out the stored figures of an invoice. Nothing is recomputed.
func (r *Renderer) Render(ctx context.Context, invoice invoicedomain.InvoiceFull, business businessdomain.Business, client clientdomain.Client) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := buildInvoiceData(invoice, business, client)

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, strings.ToUpper(data.Status), props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	metaCol := col.New(6).Add(
		text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
		text.New("Date of issue: "+data.IssueDate, props.Text{Top: 4}),
		text.New("Date due: "+data.DueDate, props.Text{Top: 8}),
	)
	if data.PaidDate != "" {
		metaCol.Add(text.New("Date paid: "+data.PaidDate, props.Text{Top: 12}))
	}
	m.AddRow(20, metaCol, col.New(6))

	m.AddRow(30,
		col.New(6).Add(
			text.New(data.BusinessName, props.Text{Style: fontstyle.Bold}),
			text.New(data.BusinessAddress, props.Text{Top: 5}),
			text.New(data.BusinessEmail, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(data.BillToName, props.Text{Top: 5}),
			text.New(data.BillToAddress, props.Text{Top: 9}),
			text.New(data.BillToEmail, props.Text{Top: 19}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, data.AmountDue+" due "+data.DueDate, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		m.AddRow(10,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.Qty, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, data.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	if data.Discount != "" {
		m.AddRow(8,
			col.New(8),
			text.NewCol(2, "Discount", props.Text{Size: 9}),
			text.NewCol(2, "-"+data.Discount, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, data.TaxLabel, props.Text{Size: 9}),
		text.NewCol(2, data.Tax, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if data.Notes != "" {
		m.AddRow(20,
			text.NewCol(12, data.Notes, props.Text{Size: 8, Top: 8}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func buildInvoiceData(invoice invoicedomain.InvoiceFull, business businessdomain.Business, client clientdomain.Client) invoiceData {
	currency := invoice.Currency
	data := invoiceData{
		BusinessName:    business.Name,
		BusinessAddress: business.Address,
		BusinessEmail:   business.Email,
		InvoiceNumber:   invoice.InvoiceNumber,
		Status:          string(invoice.Status),
		IssueDate:       invoice.IssueDate.UTC().Format(dateLayout),
		DueDate:         invoice.DueDate.UTC().Format(dateLayout),
		BillToName:      client.Name,
		BillToAddress:   client.Address,
		BillToEmail:     client.Email,
		Subtotal:        money.Format(invoice.Subtotal, currency),
		TaxLabel:        "Tax (" + invoice.TaxRate.Shift(2).String() + "%)",
		Tax:             money.Format(invoice.TaxAmount, currency),
		Total:           money.Format(invoice.Total, currency),
		AmountDue:       money.Format(invoice.Total-invoice.PaidAmount, currency),
	}
	if invoice.DiscountAmount > 0 {
		data.Discount = money.Format(invoice.DiscountAmount, currency)
	}
	if invoice.PaidDate != nil {
		data.PaidDate = invoice.PaidDate.UTC().Format(dateLayout)
	}
	if invoice.Notes != nil {
		data.Notes = strings.TrimSpace(*invoice.Notes)
	}

	data.Items = make([]invoiceItem, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		data.Items = append(data.Items, invoiceItem{
			Description: item.Description,
			Qty:         item.Quantity.String(),
			UnitPrice:   money.FormatDecimal(item.UnitPrice, currency),
			Amount:      money.Format(item.Amount, currency),
		})
	}
	return data
}
