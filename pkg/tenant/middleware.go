package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/leveledu/pkg/logger"
)

// Middleware resolves the tenant of each request and stores it in the
// request context.
//
// Resolvers run in order and an identifier the provider does not know falls
// through to the next one; the authenticated principal's tenant is tried
// last. Requests resolving no tenant are rejected with
// ErrTenantNotSpecified unless the path is exempt or the principal is a
// super-admin. Tenants that are neither active nor on trial are rejected
// with ErrTenantSuspended, except for super-admins.
func Middleware(provider Provider, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		resolvers:    []Resolver{HeaderResolver{}, NewHostResolver()},
		cache:        NopCache{},
		cacheTTL:     5 * time.Minute,
		errorHandler: defaultErrorHandler,
		exempt:       defaultExempt(),
		logger:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, _ := PrincipalFromContext(ctx)

			info, err := cfg.resolve(ctx, provider, r, principal)
			if err != nil {
				cfg.logger.ErrorContext(ctx, "tenant lookup failed",
					logger.Component("tenant"),
					logger.Error(err),
				)
				cfg.errorHandler(w, r, err)
				return
			}

			if info == nil {
				if principal.SuperAdmin || cfg.isExempt(r.URL.Path) {
					next.ServeHTTP(w, r)
					return
				}
				cfg.errorHandler(w, r, ErrTenantNotSpecified)
				return
			}

			if !info.Status.Operational() && !principal.SuperAdmin {
				cfg.logger.WarnContext(ctx, "request for non-operational tenant",
					logger.Component("tenant"),
					logger.TenantID(info.ID.Hex()),
					slog.String("status", string(info.Status)),
				)
				cfg.errorHandler(w, r, ErrTenantSuspended)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(ctx, info)))
		})
	}
}

func (c *config) resolve(ctx context.Context, provider Provider, r *http.Request, principal Principal) (*Info, error) {
	lookups := make([]Lookup, 0, len(c.resolvers)+1)
	for _, res := range c.resolvers {
		lookups = append(lookups, res.Resolve(r))
	}
	if !principal.TenantID.IsZero() {
		lookups = append(lookups, Lookup{ID: principal.TenantID})
	}

	seen := make(map[string]struct{}, len(lookups))
	for _, l := range lookups {
		if l.IsZero() {
			continue
		}
		key := l.cacheKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		info, err := c.load(ctx, provider, l)
		if errors.Is(err, ErrTenantNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return info, nil
	}
	return nil, nil
}

func (c *config) load(ctx context.Context, provider Provider, l Lookup) (*Info, error) {
	key := l.cacheKey()
	if info, ok := c.cache.Get(ctx, key); ok {
		return info, nil
	}

	var (
		info *Info
		err  error
	)
	if !l.ID.IsZero() {
		info, err = provider.GetByID(ctx, l.ID)
	} else {
		info, err = provider.GetBySubdomain(ctx, l.Subdomain)
	}
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrTenantNotFound
	}

	for _, k := range CacheKeys(info) {
		c.cache.Set(ctx, k, info, c.cacheTTL)
	}
	return info, nil
}

func (c *config) isExempt(path string) bool {
	for _, match := range c.exempt {
		if match(path) {
			return true
		}
	}
	return false
}
