// Package billing serves the plan catalog, Stripe checkout and the tenant
// admin's subscription management, plus the Stripe webhook endpoints. The
// router is mounted at /api.
package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/rbac"
	"github.com/dmitrymomot/leveledu/pkg/subscription"
	billingsvc "github.com/dmitrymomot/leveledu/svc/billing"
)

// maxWebhookBody caps a Stripe delivery.
const maxWebhookBody = 1 << 20

// RouterOptions wires the billing module. Authenticate must load the
// caller's role and tenant scope.
type RouterOptions struct {
	Billing      *billingsvc.Service
	Authenticate func(http.Handler) http.Handler
	Logger       *slog.Logger
}

type api struct {
	kit     rest.Kit
	billing *billingsvc.Service
	logger  *slog.Logger
}

// Router builds the /api/billing, /api/subscriptions and /api/webhooks
// routes.
func Router(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	a := &api{
		kit:     rest.NewKit(log),
		billing: opts.Billing,
		logger:  log.With(logger.Component("billing")),
	}

	r := chi.NewRouter()

	r.Route("/billing", func(r chi.Router) {
		r.Get("/plans", rest.Handle(a.kit, a.plans))
		r.Post("/webhook", a.webhook)

		r.Group(func(r chi.Router) {
			r.Use(opts.Authenticate)
			r.Use(rbac.RequireRoles(a.kit.Write, rbac.RoleTenantAdmin))
			r.Get("/subscription", rest.Handle(a.kit, a.subscription))
			r.Post("/portal", rest.Handle(a.kit, a.portal))
			r.Post("/cancel", rest.Handle(a.kit, a.cancel))
			r.Post("/reactivate", rest.Handle(a.kit, a.reactivate))
		})
	})

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/create-checkout", rest.Handle(a.kit, a.createCheckout))
		r.Get("/verify-session/{sessionId}", rest.Handle(a.kit, a.verifySession))
	})

	r.Post("/webhooks/stripe", a.webhook)
	return r
}

func (a *api) plans(_ handler.Context, _ rest.Empty) handler.Response {
	return handler.JSON(a.billing.Plans(), handler.WithJSONMeta(map[string]any{"currency": "BRL"}))
}

func (a *api) createCheckout(ctx handler.Context, req billingsvc.CheckoutInput) handler.Response {
	link, err := a.billing.CreateCheckout(ctx, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(link)
}

type sessionRequest struct {
	SessionID string `path:"sessionId" json:"-" validate:"required,max=255"`
}

func (a *api) verifySession(ctx handler.Context, req sessionRequest) handler.Response {
	st, err := a.billing.VerifySession(ctx, req.SessionID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(st)
}

func (a *api) subscription(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	overview, err := a.billing.Overview(ctx, tenantID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(overview)
}

func (a *api) portal(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	link, err := a.billing.Portal(ctx, tenantID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(link)
}

func (a *api) cancel(ctx handler.Context, req billingsvc.CancelInput) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	sub, err := a.billing.Cancel(ctx, tenantID, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(sub)
}

func (a *api) reactivate(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	sub, err := a.billing.Reactivate(ctx, tenantID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(sub)
}

// webhook reads the raw body, which signature verification needs byte for
// byte. Processing failures are acknowledged; only deliveries that fail
// verification are rejected.
func (a *api) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		a.kit.Write(w, r, handler.ErrBadRequest.WithMessage("Unable to read request body"))
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		a.kit.Write(w, r, subscription.ErrMissingSignature)
		return
	}

	if err := a.billing.HandleWebhook(r.Context(), payload, sig); err != nil {
		if errors.Is(err, subscription.ErrMissingWebhookSecret) {
			a.logger.ErrorContext(r.Context(), "stripe webhook secret is not configured")
			a.kit.Write(w, r, err)
			return
		}
		a.logger.WarnContext(r.Context(), "stripe webhook rejected", logger.Error(err))
		a.kit.Write(w, r, handler.ErrBadRequest.WithMessage("Webhook signature verification failed"))
		return
	}
	if err := handler.JSON(map[string]bool{"received": true}).Render(w, r); err != nil {
		a.logger.ErrorContext(r.Context(), "write webhook response", logger.Error(err))
	}
}
