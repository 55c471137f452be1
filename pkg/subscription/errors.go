package subscription

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription: not found")
	ErrSubscriptionRequired = errors.New("subscription: active subscription required")
	ErrSubscriptionExpired  = errors.New("subscription: expired")
	ErrSubscriptionCanceled = errors.New("subscription: canceled or unpaid")

	ErrMissingWebhookSecret = errors.New("subscription: webhook secret not configured")
	ErrMissingSignature     = errors.New("subscription: missing stripe signature")
	ErrInvalidSignature     = errors.New("subscription: invalid stripe signature")
	ErrMissingPriceID       = errors.New("subscription: price id is required")
	ErrMissingCustomerID    = errors.New("subscription: customer id is required")
	ErrProviderFailure      = errors.New("subscription: payment provider request failed")
)

// GateError is a refusal by the subscription gate. It matches the sentinel
// in Reason.
type GateError struct {
	Reason    error
	TenantID  bson.ObjectID
	Status    string
	ExpiredAt *time.Time
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%v (tenant %s, status %s)", e.Reason, e.TenantID.Hex(), e.Status)
}

func (e *GateError) Unwrap() error { return e.Reason }
