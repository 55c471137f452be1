// Package httpserver runs the service's http.Handler with graceful shutdown.
//
// Run blocks until the context is cancelled or SIGINT/SIGTERM arrives, then
// drains in-flight requests within the configured shutdown timeout. CORS wraps
// a handler with rs/cors using the origins from Config, and HealthCheckHandler
// serves liveness and readiness probes.
package httpserver
