package limits

import (
	"errors"
	"fmt"
)

var (
	ErrPlanNotFound               = errors.New("limits: plan not found")
	ErrInvalidPlanConfiguration   = errors.New("limits: invalid plan configuration")
	ErrFailedToLoadPlans          = errors.New("limits: failed to load plans")
	ErrInvalidResource            = errors.New("limits: invalid resource")
	ErrNoCounterRegistered        = errors.New("limits: no counter registered")
	ErrFailedToCountResourceUsage = errors.New("limits: failed to count resource usage")
	ErrLimitExceeded              = errors.New("limits: resource limit exceeded")
	ErrFeatureNotAvailable        = errors.New("limits: feature not available")
)

// LimitError describes a refused creation. It matches ErrLimitExceeded.
type LimitError struct {
	Resource Resource
	Current  int64
	Limit    int64
	Plan     string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limits: %s limit reached for plan %s (%d/%d)", e.Resource, e.Plan, e.Current, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// FeatureError describes a feature missing from the tenant's plan. It
// matches ErrFeatureNotAvailable.
type FeatureError struct {
	Feature Feature
	Plan    string
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("limits: feature %q not available on plan %s", e.Feature, e.Plan)
}

func (e *FeatureError) Unwrap() error { return ErrFeatureNotAvailable }
