package rbac

import (
	"errors"
	"net/http"
)

// ErrorHandler writes authorization failures.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// RequireRoles lets the request through only when the caller's role is one
// of roles. A nil errorHandler answers 401 or 403 with an empty body.
func RequireRoles(errorHandler ErrorHandler, roles ...Role) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}
	required := append([]Role(nil), roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Check(r.Context(), required...); err != nil {
				errorHandler(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, ErrRoleNotInContext) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusForbidden)
}
