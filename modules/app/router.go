// Package app serves the student mobile API mounted at /app.
//
// Students authenticate by scanning their QR badge; there is no bearer
// token. Every request names its school in x-tenant-id and every student
// looked up must belong to it.
package app

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/ratelimiter"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	"github.com/dmitrymomot/leveledu/svc/school"
)

// RouterOptions wires the mobile module. Throttle limits badge logins.
type RouterOptions struct {
	School   *school.Service
	Tenants  tenant.Provider
	Cache    tenant.Cache
	Throttle *ratelimiter.Bucket
	Logger   *slog.Logger
}

type api struct {
	kit    rest.Kit
	school *school.Service
}

// Router builds the /app routes.
func Router(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	a := &api{kit: rest.NewKit(log), school: opts.School}

	tenantOpts := []tenant.Option{
		tenant.WithResolvers(tenant.HeaderResolver{}),
		tenant.WithErrorHandler(a.kit.Write),
		tenant.WithLogger(log),
	}
	if opts.Cache != nil {
		tenantOpts = append(tenantOpts, tenant.WithCache(opts.Cache))
	}

	r := chi.NewRouter()
	r.Use(tenant.Middleware(opts.Tenants, tenantOpts...))
	r.Use(tenant.RequireIsolation(a.kit.Write))

	if opts.Throttle != nil {
		r.With(ratelimiter.Middleware(opts.Throttle, ratelimiter.ByClientIP("app-login"), a.kit.Write, log)).
			Post("/login", rest.Handle(a.kit, a.login))
	} else {
		r.Post("/login", rest.Handle(a.kit, a.login))
	}
	r.Get("/users/{userId}/revalidate", rest.Handle(a.kit, a.revalidate))
	r.Get("/users/{userId}/qrcode", rest.Handle(a.kit, a.badge))

	r.Get("/missions/{userId}/available", rest.Handle(a.kit, a.availableMissions))
	r.Put("/missions/{userId}/{missionId}/complete", rest.Handle(a.kit, a.completeMission))

	r.Get("/attitudes/{userId}", rest.Handle(a.kit, a.attitudes))
	r.Put("/attitudes/{userId}/{attitudeId}/claim", rest.Handle(a.kit, a.claimAttitude))

	r.Get("/products/{userId}", rest.Handle(a.kit, a.products))
	r.Post("/purchases", rest.Handle(a.kit, a.purchase))

	r.Get("/ranking/{by}", rest.Handle(a.kit, a.ranking))
	return r
}
