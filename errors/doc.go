// Package errors provides the coded error surface for guard boundaries.
// It converts the resilience package's sentinel failures (circuit open,
// bulkhead full, timeout, aborted) into structured errors with
// machine-readable codes, retryability, and HTTP status mapping, so callers
// and dashboards can pattern-match on failure kind instead of error strings.
package errors
