// Package component provides lifecycle management for long-lived pieces of
// infrastructure: guards, probers, and the stats server all implement
// Component and register with a Registry owned by the composition root.
// Components start in registration order and stop in reverse, which is how
// shared breakers and bulkheads get disposed when their owning service
// shuts down.
package component
