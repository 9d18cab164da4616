// Package logger wraps zerolog with structured fields for guard and
// resilience events: circuit state transitions, retry attempts, bulkhead
// rejections, and health probe results all log through this package.
package logger
