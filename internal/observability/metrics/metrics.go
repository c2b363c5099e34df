package metrics

import (
	"context"
	"errors"
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

// Metrics exposes the checkout instruments.
type Metrics struct {
	ordersCreated   metric.Int64Counter
	ordersPaid      metric.Int64Counter
	ordersCancelled metric.Int64Counter
	checkoutReject  metric.Int64Counter
	pointsEarned    metric.Int64Counter
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
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tillpoint"
	}
	meter := provider.Meter(name)

	ordersCreated, err := meter.Int64Counter("tillpoint_orders_created_total")
	if err != nil {
		return nil, err
	}
	ordersPaid, err := meter.Int64Counter("tillpoint_orders_paid_total")
	if err != nil {
		return nil, err
	}
	ordersCancelled, err := meter.Int64Counter("tillpoint_orders_cancelled_total")
	if err != nil {
		return nil, err
	}
	checkoutReject, err := meter.Int64Counter("tillpoint_checkout_rejections_total")
	if err != nil {
		return nil, err
	}
	pointsEarned, err := meter.Int64Counter("tillpoint_loyalty_points_earned_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ordersCreated:   ordersCreated,
		ordersPaid:      ordersPaid,
		ordersCancelled: ordersCancelled,
		checkoutReject:  checkoutReject,
		pointsEarned:    pointsEarned,
	}, nil
}

func (m *Metrics) RecordOrderCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1)
}

func (m *Metrics) RecordOrderPaid(ctx context.Context, method string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("method", strings.TrimSpace(method)))
	m.ordersPaid.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordOrderCancelled(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersCancelled.Add(ctx, 1)
}

// RecordCheckoutRejection counts business-rule rejections by reason.
func (m *Metrics) RecordCheckoutRejection(ctx context.Context, operation, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.checkoutReject.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPointsEarned(ctx context.Context, points int64) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsEarned.Add(ctx, points)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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
	"method":    {},
	"operation": {},
	"reason":    {},
	"job":       {},
}

// FilterAttributes strips labels outside the allow-list; product, order and
// customer identifiers must never become label values.
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

// RejectionReason returns the first known sentinel err matches, or "internal".
func RejectionReason(err error, known ...error) string {
	for _, sentinel := range known {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal"
}
