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
	declarationTransitions metric.Int64Counter
	periodTransitions      metric.Int64Counter
	reconciliations        metric.Int64Counter
	minimumHoursRejected   metric.Int64Counter
	notifications          metric.Int64Counter
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
		name = "turnos"
	}
	meter := provider.Meter(name)

	declarationTransitions, err := meter.Int64Counter("turnos_declaration_transitions_total")
	if err != nil {
		return nil, err
	}
	periodTransitions, err := meter.Int64Counter("turnos_period_transitions_total")
	if err != nil {
		return nil, err
	}
	reconciliations, err := meter.Int64Counter("turnos_reconciliations_total")
	if err != nil {
		return nil, err
	}
	minimumHoursRejected, err := meter.Int64Counter("turnos_minimum_hours_rejected_total")
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("turnos_notifications_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		declarationTransitions: declarationTransitions,
		periodTransitions:      periodTransitions,
		reconciliations:        reconciliations,
		minimumHoursRejected:   minimumHoursRejected,
		notifications:          notifications,
	}, nil
}

// RecordDeclarationTransition counts declaration state changes.
func (m *Metrics) RecordDeclarationTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_state", strings.TrimSpace(from)),
		attribute.String("to_state", strings.TrimSpace(to)),
	)
	m.declarationTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPeriodTransition counts control period state changes.
func (m *Metrics) RecordPeriodTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_state", strings.TrimSpace(from)),
		attribute.String("to_state", strings.TrimSpace(to)),
	)
	m.periodTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconciliation counts reconciliation outcomes by status.
func (m *Metrics) RecordReconciliation(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.reconciliations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMinimumHoursRejected counts submissions refused for insufficient hours.
func (m *Metrics) RecordMinimumHoursRejected(ctx context.Context, regimeID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("regime_id", strings.TrimSpace(regimeID)))
	m.minimumHoursRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotification counts dispatched notifications by event type.
func (m *Metrics) RecordNotification(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"from_state":  {},
	"to_state":    {},
	"status":      {},
	"regime_id":   {},
	"event_type":  {},
	"outcome":     {},
	"endpoint":    {},
	"status_code": {},
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
