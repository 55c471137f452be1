// Package admin serves the school administration API mounted at /admin.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/pkg/jwt"
	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/ratelimiter"
	"github.com/dmitrymomot/leveledu/pkg/rbac"
	"github.com/dmitrymomot/leveledu/pkg/subscription"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	"github.com/dmitrymomot/leveledu/svc/auth"
	"github.com/dmitrymomot/leveledu/svc/school"
	tenantsvc "github.com/dmitrymomot/leveledu/svc/tenant"
)

// Middleware is a standard net/http middleware.
type Middleware = func(http.Handler) http.Handler

// RouterOptions wires the admin module. Tenant resolves the request's
// tenant after authentication; Gate, when set, applies the lenient
// subscription check to the school resources. Throttle, when set, limits
// login and password reset attempts per client address.
type RouterOptions struct {
	Auth     *auth.Service
	Tokens   *jwt.Service
	School   *school.Service
	Tenants  *tenantsvc.Service
	Limits   *limits.Enforcer
	Gate     *subscription.Gate
	Tenant   Middleware
	Throttle *ratelimiter.Bucket
	Logger   *slog.Logger
}

type api struct {
	kit     rest.Kit
	auth    *auth.Service
	school  *school.Service
	tenants *tenantsvc.Service
	limits  *limits.Enforcer
}

// staff are the roles allowed on school resources. Super-admins reach a
// tenant's resources by naming it in x-tenant-id.
var staff = []rbac.Role{rbac.RoleTenantAdmin, rbac.RoleTeacher, rbac.RoleSuperAdmin}

// Router builds the /admin routes.
func Router(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	a := &api{
		kit:     rest.NewKit(log),
		auth:    opts.Auth,
		school:  opts.School,
		tenants: opts.Tenants,
		limits:  opts.Limits,
	}

	authenticated := []Middleware{auth.Middleware(opts.Auth, opts.Tokens, a.kit.Write)}
	if opts.Tenant != nil {
		authenticated = append(authenticated, opts.Tenant)
	}
	authenticated = append(authenticated, tenant.RequireIsolation(a.kit.Write))

	var public []Middleware
	if opts.Throttle != nil {
		public = append(public, ratelimiter.Middleware(opts.Throttle, ratelimiter.ByClientIP("admin-auth"), a.kit.Write, log))
	}

	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.With(public...).Post("/login", rest.Handle(a.kit, a.login))
		r.With(public...).Post("/reset-password", rest.Handle(a.kit, a.resetPassword))
		r.Group(func(r chi.Router) {
			r.Use(authenticated...)
			r.Post("/logout", rest.Handle(a.kit, a.logout))
			r.Get("/me", rest.Handle(a.kit, a.me))
			r.With(rbac.RequireRoles(a.kit.Write, rbac.RoleTenantAdmin)).
				Post("/register", rest.Handle(a.kit, a.register))
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticated...)
		r.Use(rbac.RequireRoles(a.kit.Write, staff...))
		if opts.Gate != nil {
			r.Use(opts.Gate.Middleware(subscription.Lenient, a.kit.Write))
		}

		r.Get("/home", rest.Handle(a.kit, a.home))
		r.Get("/ranking/{by}", rest.Handle(a.kit, a.ranking))
		r.Get("/usage", rest.Handle(a.kit, a.usage))
		r.With(rbac.RequireRoles(a.kit.Write, rbac.RoleTenantAdmin, rbac.RoleSuperAdmin)).
			Put("/branding", rest.Handle(a.kit, a.branding))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", rest.Handle(a.kit, a.listStudents))
			r.Post("/", rest.Handle(a.kit, a.createStudent))
			r.Get("/{id}", rest.Handle(a.kit, a.getStudent))
			r.Put("/{id}", rest.Handle(a.kit, a.updateStudent))
			r.Delete("/{id}", rest.Handle(a.kit, a.deleteStudent))
			r.Get("/{id}/qrcode", a.studentBadge)
		})
		r.Route("/classes", func(r chi.Router) {
			r.Get("/", rest.Handle(a.kit, a.listClasses))
			r.Post("/", rest.Handle(a.kit, a.createClass))
			r.Get("/{id}", rest.Handle(a.kit, a.getClass))
			r.Put("/{id}", rest.Handle(a.kit, a.updateClass))
			r.Delete("/{id}", rest.Handle(a.kit, a.deleteClass))
		})
		r.Route("/missions", func(r chi.Router) {
			r.Get("/", rest.Handle(a.kit, a.listMissions))
			r.Post("/", rest.Handle(a.kit, a.createMission))
			r.Get("/{id}", rest.Handle(a.kit, a.getMission))
			r.Put("/{id}", rest.Handle(a.kit, a.updateMission))
			r.Delete("/{id}", rest.Handle(a.kit, a.deleteMission))
			r.Put("/{id}/allow", rest.Handle(a.kit, a.allowMission))
		})
		r.Route("/attitudes", func(r chi.Router) {
			r.Get("/", rest.Handle(a.kit, a.listAttitudes))
			r.Post("/", rest.Handle(a.kit, a.createAttitude))
			r.Post("/reward", rest.Handle(a.kit, a.rewardAttitude))
			r.Get("/{id}", rest.Handle(a.kit, a.getAttitude))
			r.Put("/{id}", rest.Handle(a.kit, a.updateAttitude))
			r.Delete("/{id}", rest.Handle(a.kit, a.deleteAttitude))
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", rest.Handle(a.kit, a.listProducts))
			r.Post("/", rest.Handle(a.kit, a.createProduct))
			r.Get("/{id}", rest.Handle(a.kit, a.getProduct))
			r.Put("/{id}", rest.Handle(a.kit, a.updateProduct))
			r.Delete("/{id}", rest.Handle(a.kit, a.deleteProduct))
		})
		r.Get("/purchases/pending", rest.Handle(a.kit, a.pendingPurchases))
		r.Put("/purchases/{id}/deliver", rest.Handle(a.kit, a.deliverPurchase))
	})

	return r
}
