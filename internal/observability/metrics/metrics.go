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

// Metrics exposes application-level instruments.
type Metrics struct {
	salesCreated     metric.Int64Counter
	paymentEvents    metric.Int64Counter
	reconciliations  metric.Int64Counter
	deliveries       metric.Int64Counter
	gatewayRequests  metric.Int64Counter
	gatewayLatency   metric.Float64Histogram
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
	locks            metric.Int64Counter
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
		name = "pixbot"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.salesCreated, err = meter.Int64Counter("pixbot_sales_created_total"); err != nil {
		return nil, err
	}
	if m.paymentEvents, err = meter.Int64Counter("pixbot_payment_events_total"); err != nil {
		return nil, err
	}
	if m.reconciliations, err = meter.Int64Counter("pixbot_reconciliation_outcomes_total"); err != nil {
		return nil, err
	}
	if m.deliveries, err = meter.Int64Counter("pixbot_deliveries_total"); err != nil {
		return nil, err
	}
	if m.gatewayRequests, err = meter.Int64Counter("pixbot_gateway_requests_total"); err != nil {
		return nil, err
	}
	if m.gatewayLatency, err = meter.Float64Histogram("pixbot_gateway_request_duration_seconds", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.rateLimitAllowed, err = meter.Int64Counter("pixbot_rate_limit_allowed_total"); err != nil {
		return nil, err
	}
	if m.rateLimitDenied, err = meter.Int64Counter("pixbot_rate_limit_denied_total"); err != nil {
		return nil, err
	}
	if m.locks, err = meter.Int64Counter("pixbot_locks_total"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordSaleCreated increments created sale counts by product kind.
func (m *Metrics) RecordSaleCreated(ctx context.Context, productKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("product_kind", strings.TrimSpace(productKind)))
	m.salesCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentEvent increments payment event counts.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconciliation increments reconciliation outcome counts.
func (m *Metrics) RecordReconciliation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.reconciliations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDelivery increments delivery attempts by status (sent, failed).
func (m *Metrics) RecordDelivery(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.deliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGatewayRequest records one outbound payment provider call.
func (m *Metrics) RecordGatewayRequest(ctx context.Context, provider, operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.gatewayRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.gatewayLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLock counts lock operations (acquire, release) by result.
func (m *Metrics) RecordLock(ctx context.Context, operation, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.locks.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"endpoint":     {},
	"status":       {},
	"status_code":  {},
	"provider":     {},
	"operation":    {},
	"event_type":   {},
	"outcome":      {},
	"product_kind": {},
	"reason":       {},
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
