// Package server provides the HTTP surface for a faultkit application:
// a Gin engine with HTTP/2 cleartext support exposing health, guard stats
// and version endpoints.
//
// The server implements the component lifecycle and registers in the same
// component.Registry whose health it reports.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - RequestLogger: request/response logging with duration tracking
//
// # Endpoints
//
//   - GET  /health: component health aggregation
//   - GET  /stats: snapshot of every guard's breaker and bulkhead
//   - GET  /version: build version information
//   - POST /guards/:name/reset: force a guard's circuit closed
package server
