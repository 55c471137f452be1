package rbac

import (
	"errors"
	"fmt"
)

var (
	ErrRoleNotInContext        = errors.New("rbac: role not in context")
	ErrInsufficientPermissions = errors.New("rbac: insufficient permissions")
	ErrInvalidRole             = errors.New("rbac: invalid role")
)

// DeniedError reports a role mismatch. It matches ErrInsufficientPermissions.
type DeniedError struct {
	Required []Role
	Actual   Role
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("rbac: role %q is not one of %v", e.Actual, e.Required)
}

func (e *DeniedError) Unwrap() error { return ErrInsufficientPermissions }
