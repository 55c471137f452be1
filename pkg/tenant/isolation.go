package tenant

import "net/http"

// RequireIsolation rejects requests that cannot be confined to a tenant.
// Callers without a super-admin principal need a resolved tenant or a
// principal tenant, and an authenticated caller bound to one tenant may not
// act on another. Both failures are reported as ErrAccessDenied.
func RequireIsolation(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, authenticated := PrincipalFromContext(ctx)
			if authenticated && principal.SuperAdmin {
				next.ServeHTTP(w, r)
				return
			}

			if _, err := ScopeFrom(ctx); err != nil {
				errorHandler(w, r, ErrAccessDenied)
				return
			}

			if info, ok := FromContext(ctx); ok && authenticated &&
				!principal.TenantID.IsZero() && principal.TenantID != info.ID {
				errorHandler(w, r, ErrAccessDenied)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
