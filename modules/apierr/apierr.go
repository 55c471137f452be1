// Package apierr maps domain errors to the HTTP errors rendered by the API.
package apierr

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/pkg/jwt"
	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/ratelimiter"
	"github.com/dmitrymomot/leveledu/pkg/rbac"
	"github.com/dmitrymomot/leveledu/pkg/slug"
	"github.com/dmitrymomot/leveledu/pkg/subscription"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	"github.com/dmitrymomot/leveledu/svc/auth"
	"github.com/dmitrymomot/leveledu/svc/billing"
	"github.com/dmitrymomot/leveledu/svc/school"
	tenantsvc "github.com/dmitrymomot/leveledu/svc/tenant"
)

var (
	ErrTenantNotSpecified   = handler.NewHTTPError(http.StatusBadRequest, "TENANT_NOT_SPECIFIED", "Tenant not specified or invalid")
	ErrTenantSuspended      = handler.NewHTTPError(http.StatusForbidden, "TENANT_SUSPENDED", "Tenant is suspended or inactive")
	ErrSubscriptionRequired = handler.NewHTTPError(http.StatusForbidden, "SUBSCRIPTION_REQUIRED", "An active subscription is required")
	ErrSubscriptionExpired  = handler.NewHTTPError(http.StatusForbidden, "SUBSCRIPTION_EXPIRED", "Subscription expired")
	ErrSubscriptionCanceled = handler.NewHTTPError(http.StatusForbidden, "SUBSCRIPTION_CANCELED", "Subscription canceled or unpaid")
	ErrLimitExceeded        = handler.NewHTTPError(http.StatusForbidden, "RESOURCE_LIMIT_EXCEEDED", "Plan limit reached")
	ErrFeatureNotAvailable  = handler.NewHTTPError(http.StatusForbidden, "FEATURE_NOT_AVAILABLE", "Feature not available on the current plan")
	ErrPaymentProvider      = handler.NewHTTPError(http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "Payment provider request failed")
	ErrRateLimited          = handler.NewHTTPError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many attempts, try again later")
)

// sentinels maps plain domain errors to a status and code. The message is
// the error text without its package prefix.
var sentinels = []struct {
	err  error
	base handler.HTTPError
}{
	{tenant.ErrTenantNotSpecified, ErrTenantNotSpecified},
	{tenant.ErrTenantSuspended, ErrTenantSuspended},
	{tenant.ErrAccessDenied, handler.ErrAccessDenied},
	{tenant.ErrTenantNotFound, handler.ErrNotFound},

	{jwt.ErrMissingToken, handler.ErrUnauthenticated},
	{jwt.ErrInvalidToken, handler.ErrUnauthenticated},
	{jwt.ErrExpiredToken, handler.ErrUnauthenticated},
	{jwt.ErrRevokedToken, handler.ErrUnauthenticated},
	{jwt.ErrMissingSubject, handler.ErrUnauthenticated},
	{auth.ErrUnauthenticated, handler.ErrUnauthenticated},
	{rbac.ErrRoleNotInContext, handler.ErrUnauthenticated},

	{auth.ErrUserNotFound, handler.ErrNotFound},
	{auth.ErrEmailAlreadyExists, handler.ErrConflict},
	{auth.ErrInvalidCredentials, handler.ErrBadRequest},
	{auth.ErrInvalidRole, handler.ErrBadRequest},
	{auth.ErrTenantRequired, handler.ErrBadRequest},
	{auth.ErrUnknownClassroom, handler.ErrBadRequest},
	{auth.ErrWeakPassword, handler.ErrBadRequest},
	{auth.ErrEmailDelivery, handler.ErrInternal},

	{tenantsvc.ErrSubdomainTaken, handler.ErrConflict},
	{tenantsvc.ErrCustomerMismatch, handler.ErrConflict},
	{tenantsvc.ErrInvalidStatus, handler.ErrBadRequest},
	{tenantsvc.ErrInvalidPlan, handler.ErrBadRequest},
	{tenantsvc.ErrInvalidTenantID, handler.ErrBadRequest},
	{slug.ErrSubdomainTooShort, handler.ErrBadRequest},
	{slug.ErrSubdomainTooLong, handler.ErrBadRequest},
	{slug.ErrSubdomainInvalid, handler.ErrBadRequest},
	{slug.ErrSubdomainReserved, handler.ErrBadRequest},

	{billing.ErrPriceNotConfigured, handler.ErrBadRequest},
	{billing.ErrInvalidPlan, handler.ErrBadRequest},
	{billing.ErrInvalidInterval, handler.ErrBadRequest},
	{billing.ErrSubdomainUnavailable, handler.ErrBadRequest},
	{billing.ErrNotCancelable, handler.ErrBadRequest},
	{billing.ErrNotReactivatable, handler.ErrBadRequest},
	{billing.ErrNoBillingAccount, handler.ErrNotFound},
	{billing.ErrSessionNotFound, handler.ErrNotFound},
	{subscription.ErrSubscriptionNotFound, handler.ErrNotFound},
	{subscription.ErrMissingSignature, handler.ErrBadRequest},
	{subscription.ErrInvalidSignature, handler.ErrBadRequest},
	{subscription.ErrProviderFailure, ErrPaymentProvider},

	{school.ErrStudentNotFound, handler.ErrNotFound},
	{school.ErrClassNotFound, handler.ErrNotFound},
	{school.ErrMissionNotFound, handler.ErrNotFound},
	{school.ErrAttitudeNotFound, handler.ErrNotFound},
	{school.ErrAssignmentNotFound, handler.ErrNotFound},
	{school.ErrProductNotFound, handler.ErrNotFound},
	{school.ErrPurchaseNotFound, handler.ErrNotFound},
	{school.ErrMissionNotAllowed, handler.ErrForbidden},
	{school.ErrDuplicateClassCode, handler.ErrConflict},
	{school.ErrAlreadyAllowed, handler.ErrBadRequest},
	{school.ErrMissionCompleted, handler.ErrBadRequest},
	{school.ErrAlreadyClaimed, handler.ErrBadRequest},
	{school.ErrStudentWithoutClass, handler.ErrBadRequest},
	{school.ErrOutOfStock, handler.ErrBadRequest},
	{school.ErrInsufficientCoins, handler.ErrBadRequest},
	{school.ErrPurchaseLimit, handler.ErrBadRequest},
	{school.ErrAlreadyDelivered, handler.ErrBadRequest},
	{school.ErrInvalidID, handler.ErrBadRequest},
}

// Map is a handler.ErrorMapper for every domain package of the API.
func Map(err error) (handler.HTTPError, bool) {
	if he, ok := mapTyped(err); ok {
		return he, true
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.base.WithMessage(message(s.err)), true
		}
	}
	return handler.HTTPError{}, false
}

func mapTyped(err error) (handler.HTTPError, bool) {
	var limitErr *limits.LimitError
	if errors.As(err, &limitErr) {
		return ErrLimitExceeded.
			WithMessagef("Limit of %d %ss reached for plan %s", limitErr.Limit, limitErr.Resource, limitErr.Plan).
			WithData(map[string]any{
				"resourceType": limitErr.Resource,
				"current":      limitErr.Current,
				"limit":        limitErr.Limit,
				"plan":         limitErr.Plan,
			}), true
	}

	var featureErr *limits.FeatureError
	if errors.As(err, &featureErr) {
		return ErrFeatureNotAvailable.WithData(map[string]any{
			"feature":         featureErr.Feature,
			"planType":        featureErr.Plan,
			"upgradeRequired": true,
		}), true
	}

	var denied *rbac.DeniedError
	if errors.As(err, &denied) {
		return handler.ErrForbidden.WithData(map[string]any{
			"requiredRoles": denied.Required,
			"userRole":      denied.Actual,
		}), true
	}

	var limited *ratelimiter.LimitedError
	if errors.As(err, &limited) {
		return ErrRateLimited.WithData(map[string]any{
			"retryAfter": int(limited.RetryAfter.Seconds()),
		}), true
	}

	var gate *subscription.GateError
	if errors.As(err, &gate) {
		data := map[string]any{"tenantId": gate.TenantID.Hex()}
		switch {
		case errors.Is(gate.Reason, subscription.ErrSubscriptionRequired):
			data["subscriptionStatus"] = "inactive"
			return ErrSubscriptionRequired.WithData(data), true
		case errors.Is(gate.Reason, subscription.ErrSubscriptionExpired):
			data["subscriptionStatus"] = "expired"
			if gate.ExpiredAt != nil {
				data["expiredAt"] = gate.ExpiredAt.UTC().Format(time.RFC3339)
			}
			return ErrSubscriptionExpired.WithData(data), true
		default:
			data["subscriptionStatus"] = gate.Status
			return ErrSubscriptionCanceled.WithData(data), true
		}
	}
	return handler.HTTPError{}, false
}

// message turns "school: insufficient coins" into "Insufficient coins".
func message(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, ": "); ok {
		msg = rest
	}
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// NewResponder returns the error responder shared by all API modules.
func NewResponder(log *slog.Logger) *handler.ErrorResponder {
	return handler.NewErrorResponder(log, Map)
}
