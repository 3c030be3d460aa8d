package invoice

import (
	"github.com/smallbiznis/invoicer/internal/invoice/notify"
	"github.com/smallbiznis/invoicer/internal/invoice/numbering"
	"github.com/smallbiznis/invoicer/internal/invoice/render"
	"github.com/smallbiznis/invoicer/internal/invoice/repository"
	"github.com/smallbiznis/invoicer/internal/invoice/service"
	"github.com/smallbiznis/invoicer/internal/tax"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	tax.Module,
	fx.Provide(repository.Provide),
	fx.Provide(numbering.New),
	fx.Provide(render.NewRenderer),
	fx.Provide(notify.NewEmailNotifier),
	fx.Provide(service.NewService),
)
