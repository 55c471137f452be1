package tenant

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrorHandler writes a tenant resolution failure.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type config struct {
	resolvers    []Resolver
	cache        Cache
	cacheTTL     time.Duration
	errorHandler ErrorHandler
	exempt       []func(path string) bool
	logger       *slog.Logger
}

// Option configures Middleware.
type Option func(*config)

// WithResolvers replaces the default resolver chain (headers, then host).
func WithResolvers(resolvers ...Resolver) Option {
	return func(c *config) {
		c.resolvers = resolvers
	}
}

// WithCache sets the lookup cache. Nil disables caching.
func WithCache(cache Cache) Option {
	return func(c *config) {
		if cache == nil {
			cache = NopCache{}
		}
		c.cache = cache
	}
}

// WithCacheTTL sets how long a resolved tenant stays cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithLogger sets the logger for the middleware.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func prefixMatcher(prefix string) func(string) bool {
	return func(path string) bool { return strings.HasPrefix(path, prefix) }
}

func defaultExempt() []func(string) bool {
	return []func(string) bool{
		prefixMatcher("/api/tenants"),
		prefixMatcher("/admin/super"),
		func(path string) bool { return strings.Contains(path, "/super-admin") },
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTenantNotSpecified):
		http.Error(w, "Tenant not specified or invalid", http.StatusBadRequest)
	case errors.Is(err, ErrTenantSuspended):
		http.Error(w, "Tenant is suspended or inactive", http.StatusForbidden)
	case errors.Is(err, ErrAccessDenied):
		http.Error(w, "Access denied for this tenant", http.StatusForbidden)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
