// Package notify delivers sent invoices to clients by email.
package notify

import (
	"context"
	"fmt"
	"strings"

	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/invoice/render"
	"github.com/smallbiznis/invoicer/internal/observability/metrics"
	"github.com/smallbiznis/invoicer/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Provider email.Provider
	Renderer render.Renderer
	Metrics  *metrics.Metrics `optional:"true"`
}

type EmailNotifier struct {
	log      *zap.Logger
	provider email.Provider
	renderer render.Renderer
	metrics  *metrics.Metrics
}

func NewEmailNotifier(p Params) invoicedomain.Notifier {
	return &EmailNotifier{
		log:      p.Log.Named("invoice.notify"),
		provider: p.Provider,
		renderer: p.Renderer,
		metrics:  p.Metrics,
	}
}

func (n *EmailNotifier) InvoiceSent(ctx context.Context, invoice invoicedomain.InvoiceFull, business businessdomain.Business, client clientdomain.Client) error {
	to := strings.TrimSpace(client.Email)
	if to == "" {
		n.log.Info("client has no email, skipping invoice delivery",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("client_id", client.ID.String()),
		)
		return nil
	}

	body, err := n.renderer.RenderHTML(BuildRenderInput(invoice, business, client))
	if err != nil {
		return fmt.Errorf("render invoice email: %w", err)
	}

	subject := fmt.Sprintf("Invoice %s from %s", invoice.InvoiceNumber, business.Name)
	err = n.provider.Send(ctx, []string{to}, subject, body)
	n.metrics.RecordEmailDelivery(ctx, n.provider.Name(), err == nil)
	if err != nil {
		return fmt.Errorf("send invoice email: %w", err)
	}
	return nil
}

// BuildRenderInput maps a stored invoice onto the email view.
func BuildRenderInput(invoice invoicedomain.InvoiceFull, business businessdomain.Business, client clientdomain.Client) render.RenderInput {
	input := render.RenderInput{
		Business: render.BusinessView{Name: business.Name, Email: business.Email, Address: business.Address},
		Client:   render.ClientView{Name: client.Name, Email: client.Email, Address: client.Address},
		Invoice: render.InvoiceView{
			Number:         invoice.InvoiceNumber,
			Status:         string(invoice.Status),
			Currency:       invoice.Currency,
			IssueDate:      invoice.IssueDate,
			DueDate:        invoice.DueDate,
			Subtotal:       invoice.Subtotal,
			DiscountAmount: invoice.DiscountAmount,
			TaxAmount:      invoice.TaxAmount,
			Total:          invoice.Total,
		},
		Items: make([]render.LineItemView, 0, len(invoice.Items)),
	}
	if invoice.Notes != nil {
		input.Invoice.Notes = *invoice.Notes
	}
	for _, item := range invoice.Items {
		input.Items = append(input.Items, render.LineItemView{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		})
	}
	return input
}
