package tenant

import "errors"

var (
	ErrTenantNotFound     = errors.New("tenant: not found")
	ErrTenantNotSpecified = errors.New("tenant: not specified or invalid")
	ErrTenantSuspended    = errors.New("tenant: suspended or inactive")
	ErrAccessDenied       = errors.New("tenant: access denied")
)
