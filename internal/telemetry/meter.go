package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the custom metrics instruments for the application.
type Metrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	CachedTasks     metric.Int64ObservableGauge
	AIAttempts      metric.Int64Counter
	cachedTaskCount func() int64
}

// InitMeterProvider initializes the OpenTelemetry meter provider with a
// periodic OTLP gRPC exporter and installs it as the global provider.
func InitMeterProvider(ctx context.Context, serviceName, otlpEndpoint, environment string) (*sdkmetric.MeterProvider, error) {
	conn, err := newConn(otlpEndpoint)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := newResource(serviceName, environment)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(10*time.Second),
		)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}

// NewMetrics creates the instruments. cachedTaskCount reports the size of
// the task store cache and is read on every collection.
func NewMetrics(meter metric.Meter, cachedTaskCount func() int64) (*Metrics, error) {
	m := &Metrics{
		cachedTaskCount: cachedTaskCount,
	}

	var err error

	m.RequestCounter, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	m.CachedTasks, err = meter.Int64ObservableGauge(
		"store_cached_tasks",
		metric.WithDescription("Tasks currently held by the task store"),
		metric.WithUnit("{task}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.cachedTaskCount())
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cached tasks gauge: %w", err)
	}

	m.AIAttempts, err = meter.Int64Counter(
		"ai_attempts_total",
		metric.WithDescription("AI task-creation attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI attempts counter: %w", err)
	}

	return m, nil
}

// RecordRequest adds one finished HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("http.status_code", strconv.Itoa(status)),
	)
	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordAIAttempt adds one AI attempt with its outcome label.
func (m *Metrics) RecordAIAttempt(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.AIAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
