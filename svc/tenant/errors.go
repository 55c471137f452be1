package tenant

import "errors"

var (
	ErrSubdomainTaken   = errors.New("tenant: subdomain already in use")
	ErrInvalidStatus    = errors.New("tenant: invalid status")
	ErrInvalidPlan      = errors.New("tenant: unknown plan")
	ErrInvalidTenantID  = errors.New("tenant: invalid id")
	ErrCustomerMismatch = errors.New("tenant: subdomain billed to another customer")
)
