package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes invoicing instruments.
type Metrics struct {
	invoicesCreated    metric.Int64Counter
	invoiceTransitions metric.Int64Counter
	allocationRetries  metric.Int64Counter
	allocationFailures metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
	emailDeliveries    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "invoicer"
	}
	meter := provider.Meter(name)

	invoicesCreated, err := meter.Int64Counter("invoices_created_total")
	if err != nil {
		return nil, err
	}
	invoiceTransitions, err := meter.Int64Counter("invoice_transitions_total")
	if err != nil {
		return nil, err
	}
	allocationRetries, err := meter.Int64Counter("invoice_number_allocation_retries_total")
	if err != nil {
		return nil, err
	}
	allocationFailures, err := meter.Int64Counter("invoice_number_allocation_failures_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("invoicer_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	emailDeliveries, err := meter.Int64Counter("invoice_email_deliveries_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invoicesCreated:    invoicesCreated,
		invoiceTransitions: invoiceTransitions,
		allocationRetries:  allocationRetries,
		allocationFailures: allocationFailures,
		rateLimitDenied:    rateLimitDenied,
		emailDeliveries:    emailDeliveries,
	}, nil
}

// RecordInvoiceCreated increments created invoice counts.
func (m *Metrics) RecordInvoiceCreated(ctx context.Context, currency string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("currency", strings.ToUpper(strings.TrimSpace(currency))))
	m.invoicesCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInvoiceTransition increments status transition counts.
func (m *Metrics) RecordInvoiceTransition(ctx context.Context, from, to, trigger string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", from),
		attribute.String("to_status", to),
		attribute.String("trigger", trigger),
	)
	m.invoiceTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNumberAllocationRetry counts allocator retries after transient failures.
func (m *Metrics) RecordNumberAllocationRetry(ctx context.Context, attempt int) {
	if m == nil {
		return
	}
	m.allocationRetries.Add(ctx, 1, metric.WithAttributes(
		FilterAttributes(attribute.Int("attempt", attempt))...,
	))
}

// RecordNumberAllocationFailure counts allocations that gave up.
func (m *Metrics) RecordNumberAllocationFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.allocationFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmailDelivery counts invoice email attempts by provider and outcome.
func (m *Metrics) RecordEmailDelivery(ctx context.Context, provider string, ok bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", outcome),
	)
	m.emailDeliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"currency":    {},
	"from_status": {},
	"to_status":   {},
	"trigger":     {},
	"attempt":     {},
	"endpoint":    {},
	"status_code": {},
	"provider":    {},
	"outcome":     {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
