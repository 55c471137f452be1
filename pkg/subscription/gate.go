package subscription

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// Mode selects how strictly the gate treats a tenant's subscription.
type Mode int

const (
	// Strict requires a current, unexpired subscription.
	Strict Mode = iota
	// Lenient only refuses canceled or unpaid subscriptions.
	Lenient
)

func (m Mode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// ErrorHandler writes a gate failure.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Gate checks a tenant's subscription before protected handlers run.
type Gate struct {
	store   Store
	tenants tenant.Provider
	logger  *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the gate's logger.
func WithGateLogger(log *slog.Logger) GateOption {
	return func(g *Gate) {
		if log != nil {
			g.logger = log
		}
	}
}

// NewGate creates a gate reading subscriptions from store. tenants is used
// when the tenant was not already resolved into the request context.
func NewGate(store Store, tenants tenant.Provider, opts ...GateOption) *Gate {
	g := &Gate{
		store:   store,
		tenants: tenants,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates the tenant's subscription under mode. The returned
// subscription is nil when a lenient check finds none.
func (g *Gate) Check(ctx context.Context, tenantID bson.ObjectID, mode Mode) (*Subscription, error) {
	if mode == Lenient {
		return g.lenient(ctx, tenantID)
	}
	return g.strict(ctx, tenantID)
}

func (g *Gate) strict(ctx context.Context, tenantID bson.ObjectID) (*Subscription, error) {
	sub, err := g.store.Current(ctx, tenantID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, &GateError{Reason: ErrSubscriptionRequired, TenantID: tenantID, Status: "inactive"}
	}
	if err != nil {
		return nil, err
	}
	if sub.ExpiredAt(time.Now()) {
		return nil, &GateError{
			Reason:    ErrSubscriptionExpired,
			TenantID:  tenantID,
			Status:    "expired",
			ExpiredAt: sub.CurrentPeriodEnd,
		}
	}
	return sub, nil
}

func (g *Gate) lenient(ctx context.Context, tenantID bson.ObjectID) (*Subscription, error) {
	sub, err := g.store.Latest(ctx, tenantID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sub.Status.Terminated() {
		return nil, &GateError{Reason: ErrSubscriptionCanceled, TenantID: tenantID, Status: string(sub.Status)}
	}
	return sub, nil
}

// Middleware runs the check for the request's tenant and stores the result
// with WithSubscription. Failures go to errorHandler.
func (g *Gate) Middleware(mode Mode, errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			info, err := g.tenantOf(ctx)
			if err != nil {
				errorHandler(w, r, err)
				return
			}

			sub, err := g.Check(ctx, info.ID, mode)
			if err != nil {
				var gateErr *GateError
				if errors.As(err, &gateErr) {
					g.logger.InfoContext(ctx, "subscription gate refused request",
						logger.TenantID(info.ID.Hex()),
						slog.String("mode", mode.String()),
						slog.String("status", gateErr.Status))
				} else {
					g.logger.ErrorContext(ctx, "subscription lookup failed",
						logger.TenantID(info.ID.Hex()),
						logger.Error(err))
				}
				errorHandler(w, r, err)
				return
			}

			ctx = WithSubscription(ctx, sub)
			if _, ok := tenant.FromContext(ctx); !ok {
				ctx = tenant.WithTenant(ctx, info)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g *Gate) tenantOf(ctx context.Context) (*tenant.Info, error) {
	if info, ok := tenant.FromContext(ctx); ok {
		return info, nil
	}
	scope, err := tenant.ScopeFrom(ctx)
	if err != nil {
		return nil, tenant.ErrTenantNotSpecified
	}
	id, err := scope.Tenant()
	if err != nil {
		return nil, err
	}
	info, err := g.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, tenant.ErrTenantNotFound
	}
	return info, nil
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, tenant.ErrTenantNotSpecified):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tenant.ErrTenantNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrSubscriptionRequired),
		errors.Is(err, ErrSubscriptionExpired),
		errors.Is(err, ErrSubscriptionCanceled):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
