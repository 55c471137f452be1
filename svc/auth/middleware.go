package auth

import (
	"net/http"

	"github.com/dmitrymomot/leveledu/pkg/jwt"
	"github.com/dmitrymomot/leveledu/pkg/rbac"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// ErrorHandler writes authentication failures.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware verifies the bearer token, loads the user it names and stores
// the user, role and tenant affiliation in the request context. Token
// failures and missing users are passed to errorHandler.
func Middleware(svc *Service, tokens *jwt.Service, errorHandler ErrorHandler) func(http.Handler) http.Handler {
	verify := jwt.Middleware(tokens, jwt.WithErrorHandler(jwt.ErrorHandler(errorHandler)))

	return func(next http.Handler) http.Handler {
		load := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := jwt.ClaimsFromContext(r.Context())
			if !ok {
				errorHandler(w, r, jwt.ErrMissingToken)
				return
			}
			user, err := svc.Authenticate(r.Context(), claims)
			if err != nil {
				errorHandler(w, r, err)
				return
			}

			ctx := SetUserToContext(r.Context(), user)
			ctx = tenant.WithPrincipal(ctx, user.Principal())
			ctx = rbac.SetRoleToContext(ctx, user.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		return verify(load)
	}
}
