package pdf

import (
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(
		fx.Annotate(New, fx.As(new(invoicedomain.PDFRenderer))),
	),
)

// Renderer lays out invoice snapshots with maroto.
type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}

var _ invoicedomain.PDFRenderer = (*Renderer)(nil)
