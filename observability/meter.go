package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/skillsenselab/faultkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds OpenTelemetry instruments for guarded call observability.
type Metrics struct {
	callTotal          metric.Int64Counter
	callDuration       metric.Float64Histogram
	callInflight       metric.Int64UpDownCounter
	retryTotal         metric.Int64Counter
	rejectionTotal     metric.Int64Counter
	breakerTransitions metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	callTotal, err := meter.Int64Counter("guard.call.total",
		metric.WithDescription("Total number of guarded calls by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guard.call.total counter: %w", err)
	}

	callDuration, err := meter.Float64Histogram("guard.call.duration",
		metric.WithDescription("Duration of guarded calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guard.call.duration histogram: %w", err)
	}

	callInflight, err := meter.Int64UpDownCounter("guard.call.inflight",
		metric.WithDescription("Number of guarded calls currently in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guard.call.inflight gauge: %w", err)
	}

	retryTotal, err := meter.Int64Counter("guard.retry.total",
		metric.WithDescription("Total retry attempts after a failed first try"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guard.retry.total counter: %w", err)
	}

	rejectionTotal, err := meter.Int64Counter("guard.rejection.total",
		metric.WithDescription("Calls rejected before execution, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guard.rejection.total counter: %w", err)
	}

	breakerTransitions, err := meter.Int64Counter("guard.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guard.breaker.transitions counter: %w", err)
	}

	return &Metrics{
		callTotal:          callTotal,
		callDuration:       callDuration,
		callInflight:       callInflight,
		retryTotal:         retryTotal,
		rejectionTotal:     rejectionTotal,
		breakerTransitions: breakerTransitions,
	}, nil
}

// RecordCallStart increments the in-flight call count.
func (m *Metrics) RecordCallStart(ctx context.Context) {
	m.callInflight.Add(ctx, 1)
}

// RecordCallEnd decrements in-flight calls and records the completed call.
func (m *Metrics) RecordCallEnd(ctx context.Context, guard, operation, outcome string, duration time.Duration) {
	m.callInflight.Add(ctx, -1)
	m.callTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("guard", guard),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
	m.callDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("guard", guard),
		attribute.String("operation", operation),
	))
}

// RecordRetry records a retry attempt for a guard.
func (m *Metrics) RecordRetry(ctx context.Context, guard string, attempt int) {
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("guard", guard),
		attribute.Int("attempt", attempt),
	))
}

// RecordRejection records a call rejected before execution.
// Reason is one of "circuit_open", "bulkhead_full" or "rate_limited".
func (m *Metrics) RecordRejection(ctx context.Context, guard, reason string) {
	m.rejectionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("guard", guard),
		attribute.String("reason", reason),
	))
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, guard, from, to string) {
	m.breakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("guard", guard),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
