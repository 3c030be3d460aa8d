package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/invoicer/internal/audit"
	auditdomain "github.com/smallbiznis/invoicer/internal/audit/domain"
	"github.com/smallbiznis/invoicer/internal/business"
	"github.com/smallbiznis/invoicer/internal/client"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/smallbiznis/invoicer/internal/invoice"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/observability"
	obsmiddleware "github.com/smallbiznis/invoicer/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicer/internal/observability/metrics"
	obstracing "github.com/smallbiznis/invoicer/internal/observability/tracing"
	"github.com/smallbiznis/invoicer/internal/providers"
	"github.com/smallbiznis/invoicer/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Domains wires every service the HTTP API and the scheduler depend on.
var Domains = fx.Options(
	business.Module,
	client.Module,
	audit.Module,
	providers.Module,
	invoice.Module,
	ratelimit.Module,
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterAPIRoutes()
		s.RegisterFallback()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	invoiceSvc   invoicedomain.Service
	clientSvc    clientdomain.Service
	auditSvc     auditdomain.Service
	writeLimiter *ratelimit.WriteLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	InvoiceSvc   invoicedomain.Service
	ClientSvc    clientdomain.Service
	AuditSvc     auditdomain.Service
	WriteLimiter *ratelimit.WriteLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		invoiceSvc:   p.InvoiceSvc,
		clientSvc:    p.ClientSvc,
		auditSvc:     p.AuditSvc,
		writeLimiter: p.WriteLimiter,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", s.RequestTimeout(), s.BusinessContext())

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.WriteRateLimit(), s.CreateInvoice)
	api.POST("/invoices/preview", s.PreviewInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.PUT("/invoices/:id", s.WriteRateLimit(), s.UpdateInvoice)
	api.DELETE("/invoices/:id", s.WriteRateLimit(), s.DeleteInvoice)
	api.GET("/invoices/:id/pdf", s.DownloadInvoicePDF)
	api.GET("/invoices/:id/verify", s.VerifyInvoiceTotals)

	// -------- Lifecycle --------
	api.POST("/invoices/:id/send", s.WriteRateLimit(), s.SendInvoice)
	api.POST("/invoices/:id/view", s.MarkInvoiceViewed)
	api.POST("/invoices/:id/pay", s.WriteRateLimit(), s.MarkInvoicePaid)
	api.POST("/invoices/:id/cancel", s.WriteRateLimit(), s.CancelInvoice)

	// -------- Clients --------
	api.GET("/clients", s.ListClients)
	api.GET("/clients/:id", s.GetClientByID)

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) RegisterFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
