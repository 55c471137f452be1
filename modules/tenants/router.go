// Package tenants serves /api/tenants: public subdomain lookups for the
// signup and login pages, and tenant management for super-admins.
package tenants

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/rbac"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	tenantsvc "github.com/dmitrymomot/leveledu/svc/tenant"
)

// RouterOptions wires the tenants module. Authenticate must load the
// caller's role; it guards the super-admin routes.
type RouterOptions struct {
	Tenants      *tenantsvc.Service
	Authenticate func(http.Handler) http.Handler
	Logger       *slog.Logger
}

type api struct {
	kit     rest.Kit
	tenants *tenantsvc.Service
}

// Router builds the /api/tenants routes.
func Router(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	a := &api{kit: rest.NewKit(log), tenants: opts.Tenants}

	r := chi.NewRouter()
	r.Get("/check-subdomain/{subdomain}", rest.Handle(a.kit, a.checkSubdomain))
	r.Get("/public/{subdomain}", rest.Handle(a.kit, a.public))

	r.Group(func(r chi.Router) {
		r.Use(opts.Authenticate)
		r.Use(rbac.RequireRoles(a.kit.Write, rbac.RoleSuperAdmin))

		r.Post("/", rest.Handle(a.kit, a.create))
		r.Get("/", rest.Handle(a.kit, a.list))
		r.Get("/{id}", rest.Handle(a.kit, a.get))
		r.Patch("/{id}", rest.Handle(a.kit, a.update))
		r.Patch("/{id}/status", rest.Handle(a.kit, a.setStatus))
		r.Post("/{id}/update-stats", rest.Handle(a.kit, a.updateStats))
		r.Get("/{id}/metrics", rest.Handle(a.kit, a.metrics))
	})
	return r
}

type subdomainRequest struct {
	Subdomain string `path:"subdomain" json:"-" validate:"required,max=63"`
}

func (a *api) checkSubdomain(ctx handler.Context, req subdomainRequest) handler.Response {
	avail, err := a.tenants.CheckSubdomain(ctx, req.Subdomain)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(avail)
}

func (a *api) public(ctx handler.Context, req subdomainRequest) handler.Response {
	view, err := a.tenants.Public(ctx, req.Subdomain)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(view)
}

func (a *api) create(ctx handler.Context, req tenantsvc.CreateInput) handler.Response {
	req.Source = "super_admin"
	t, err := a.tenants.Create(ctx, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.Created(t)
}

type listRequest struct {
	Page   int64         `query:"page" json:"-" validate:"gte=0"`
	Limit  int64         `query:"limit" json:"-" validate:"gte=0,lte=100"`
	Status tenant.Status `query:"status" json:"-" validate:"omitempty,oneof=trial active suspended inactive"`
	Plan   string        `query:"plan" json:"-"`
	Search string        `query:"search" json:"-" validate:"max=100"`
}

func (a *api) list(ctx handler.Context, req listRequest) handler.Response {
	res, err := a.tenants.List(ctx, tenantsvc.ListFilter{
		Page:   req.Page,
		Limit:  req.Limit,
		Status: req.Status,
		Plan:   req.Plan,
		Search: req.Search,
	})
	if err != nil {
		return a.kit.Fail(err)
	}
	return handler.JSON(res.Tenants, handler.WithJSONMeta(map[string]any{
		"currentPage":  res.Page,
		"itemsPerPage": res.Limit,
		"totalItems":   res.Total,
		"totalPages":   res.TotalPages,
	}))
}

func (a *api) get(ctx handler.Context, _ rest.Empty) handler.Response {
	id, err := rest.ID(ctx, "id")
	if err != nil {
		return a.kit.Fail(err)
	}
	t, err := a.tenants.Get(ctx, id)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(t)
}

func (a *api) update(ctx handler.Context, req tenantsvc.UpdateInput) handler.Response {
	id, err := rest.ID(ctx, "id")
	if err != nil {
		return a.kit.Fail(err)
	}
	t, err := a.tenants.Update(ctx, id, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(t)
}

type statusRequest struct {
	Status tenant.Status `json:"status" validate:"required,oneof=trial active suspended inactive"`
	Reason string        `json:"reason,omitempty" validate:"max=500"`
}

func (a *api) setStatus(ctx handler.Context, req statusRequest) handler.Response {
	id, err := rest.ID(ctx, "id")
	if err != nil {
		return a.kit.Fail(err)
	}
	t, err := a.tenants.SetStatus(ctx, id, req.Status, req.Reason)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(t)
}

func (a *api) updateStats(ctx handler.Context, _ rest.Empty) handler.Response {
	id, err := rest.ID(ctx, "id")
	if err != nil {
		return a.kit.Fail(err)
	}
	stats, err := a.tenants.RefreshStats(ctx, id)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(stats)
}

func (a *api) metrics(ctx handler.Context, _ rest.Empty) handler.Response {
	id, err := rest.ID(ctx, "id")
	if err != nil {
		return a.kit.Fail(err)
	}
	m, err := a.tenants.Metrics(ctx, id)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(m)
}
