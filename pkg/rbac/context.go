package rbac

import "context"

type roleCtxKey struct{}

// SetRoleToContext stores the caller's role in ctx.
func SetRoleToContext(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleCtxKey{}, role)
}

// GetRoleFromContext returns the caller's role.
func GetRoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(roleCtxKey{}).(Role)
	return role, ok && role != ""
}

// Check reports whether the role in ctx is one of roles.
func Check(ctx context.Context, roles ...Role) error {
	role, ok := GetRoleFromContext(ctx)
	if !ok {
		return ErrRoleNotInContext
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return &DeniedError{Required: roles, Actual: role}
}
