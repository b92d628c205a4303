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

// Metrics exposes the domain counters exported over OTLP.
type Metrics struct {
	taxCalculations metric.Int64Counter
	settingsCache   metric.Int64Counter
	settingsUpdates metric.Int64Counter
	eventsPublished metric.Int64Counter
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
		name = "shopdesk"
	}
	meter := provider.Meter(name)

	taxCalculations, err := meter.Int64Counter("shopdesk_tax_calculations_total",
		metric.WithDescription("Tax calculations by method and outcome."))
	if err != nil {
		return nil, err
	}
	settingsCache, err := meter.Int64Counter("shopdesk_tax_settings_cache_total",
		metric.WithDescription("Tax settings lookups by cache result."))
	if err != nil {
		return nil, err
	}
	settingsUpdates, err := meter.Int64Counter("shopdesk_tax_settings_updates_total")
	if err != nil {
		return nil, err
	}
	eventsPublished, err := meter.Int64Counter("shopdesk_events_published_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		taxCalculations: taxCalculations,
		settingsCache:   settingsCache,
		settingsUpdates: settingsUpdates,
		eventsPublished: eventsPublished,
	}, nil
}

// RecordTaxCalculation counts one calculation. outcome is taxed, exempt or loading.
func (m *Metrics) RecordTaxCalculation(ctx context.Context, method, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("calculation_method", strings.TrimSpace(method)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.taxCalculations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSettingsCache counts a settings lookup: hit, miss, created or stale.
func (m *Metrics) RecordSettingsCache(ctx context.Context, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.settingsCache.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSettingsUpdate(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.settingsUpdates.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordEventPublished(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.eventsPublished.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"calculation_method": {},
	"outcome":            {},
	"result":             {},
	"event_type":         {},
	"status_code":        {},
	"route":              {},
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
