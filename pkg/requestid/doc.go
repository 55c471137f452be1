// Package requestid attaches a correlation id to every HTTP request.
//
// Middleware reuses a well-formed incoming X-Request-ID header or generates a
// UUID, stores it in the request context, and echoes it in the response.
// LoggerExtractor feeds the id into logger.WithContextExtractors so every log
// line written while serving the request carries it.
package requestid
