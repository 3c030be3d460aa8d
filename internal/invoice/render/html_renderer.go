package render

import (
	"bytes"
	"html/template"
	"time"

	"github.com/smallbiznis/invoicer/internal/money"
)

const invoiceEmailTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.Number}}</title>
  <style>
    body { margin: 0; padding: 32px; font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; color: #1a1f36; background: #f7f9fc; }
    .card { background: #ffffff; max-width: 640px; margin: 0 auto; padding: 40px; border-radius: 4px; }
    .label { font-size: 11px; text-transform: uppercase; color: #8792a2; font-weight: 600; margin-bottom: 4px; }
    .amount { font-size: 28px; font-weight: 700; margin: 24px 0 4px; }
    table { width: 100%; border-collapse: collapse; margin: 24px 0; }
    th { text-align: left; font-size: 11px; color: #8792a2; border-bottom: 1px solid #e3e8ee; padding: 8px 0; }
    td { padding: 12px 0; border-bottom: 1px solid #e3e8ee; font-size: 14px; }
    .right { text-align: right; }
    .totals td { border-bottom: none; padding: 4px 0; }
    .final td { font-weight: 700; border-top: 1px solid #e3e8ee; }
    .notes { margin-top: 32px; font-size: 12px; color: #697386; }
  </style>
</head>
<body>
  <div class="card">
    <h1>Invoice {{.Invoice.Number}}</h1>
    <div class="label">From</div>
    <div><strong>{{.Business.Name}}</strong><br>{{.Business.Address}}<br>{{.Business.Email}}</div>
    <br>
    <div class="label">Bill to</div>
    <div><strong>{{.Client.Name}}</strong><br>{{.Client.Address}}<br>{{.Client.Email}}</div>

    <div class="amount">{{formatMoney .Invoice.Total .Invoice.Currency}}</div>
    <div>Issued {{formatDate .Invoice.IssueDate}}, due {{formatDate .Invoice.DueDate}}</div>

    <table>
      <thead>
        <tr>
          <th style="width: 50%;">Description</th>
          <th class="right">Qty</th>
          <th class="right">Unit price</th>
          <th class="right">Amount</th>
        </tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td>{{.Description}}</td>
          <td class="right">{{.Quantity}}</td>
          <td class="right">{{formatPrice .UnitPrice $.Invoice.Currency}}</td>
          <td class="right">{{formatMoney .Amount $.Invoice.Currency}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <table class="totals">
      <tr><td>Subtotal</td><td class="right">{{formatMoney .Invoice.Subtotal .Invoice.Currency}}</td></tr>
      {{if .Invoice.DiscountAmount}}<tr><td>Discount</td><td class="right">-{{formatMoney .Invoice.DiscountAmount .Invoice.Currency}}</td></tr>{{end}}
      <tr><td>Tax</td><td class="right">{{formatMoney .Invoice.TaxAmount .Invoice.Currency}}</td></tr>
      <tr class="final"><td>Total</td><td class="right">{{formatMoney .Invoice.Total .Invoice.Currency}}</td></tr>
    </table>

    {{if .Invoice.Notes}}<div class="notes">{{.Invoice.Notes}}</div>{{end}}
  </div>
</body>
</html>
`

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney": money.Format,
		"formatPrice": money.FormatDecimal,
		"formatDate":  formatDate,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceEmailTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	if input.Business.Name == "" {
		input.Business.Name = "Invoice"
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}
