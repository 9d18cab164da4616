// Package middleware provides the Gin middleware used by the faultkit
// HTTP server: panic recovery, request-ID propagation and request logging.
package middleware
