// Package guard provides named resilience wrappers around downstream
// dependencies.
//
// A Guard binds one dependency name to a composed resilience pipeline
// (timeout, circuit breaker, bulkhead, retry) plus structured logging and
// OpenTelemetry metrics. On top of the plain Guard:
//
//   - Registry: explicit lookup-by-name store, create on first use,
//     owned by the composition root
//   - ServiceGuard: adds periodic health probing and availability state
//   - RealtimeGuard: maintains a long-lived connection with guarded
//     reconnects and up/down notifications
//   - LoaderGuard: per-module breakers for dynamic loading with a cache
//     fallback
package guard
