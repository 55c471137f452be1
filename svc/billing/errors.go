package billing

import "errors"

var (
	ErrPriceNotConfigured   = errors.New("billing: price not configured for plan")
	ErrInvalidPlan          = errors.New("billing: plan is not available for purchase")
	ErrInvalidInterval      = errors.New("billing: invalid billing interval")
	ErrSubdomainUnavailable = errors.New("billing: subdomain unavailable")
	ErrNoBillingAccount     = errors.New("billing: tenant has no billing account")
	ErrNotCancelable        = errors.New("billing: subscription cannot be canceled")
	ErrNotReactivatable     = errors.New("billing: subscription is not scheduled for cancellation")
	ErrSessionNotFound      = errors.New("billing: checkout session not found")
)
