// Package observability wires OpenTelemetry metrics and tracing for
// guarded calls.
//
// It provides:
//   - InitMeter / InitTracer: OTLP HTTP exporter setup with service metadata
//   - Metrics: instruments for call outcomes, breaker transitions and rejections
//   - CallContext: per-call span and metric recording
//   - ServiceHealth: aggregation of component health for reporting endpoints
package observability
