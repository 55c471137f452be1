// Package tenant manages school tenants: creation with a trial plan,
// subdomain availability, super-admin listing and updates, status changes,
// branding and the billing and plan snapshot kept in sync by the Stripe
// reconciler.
//
// Service implements pkg/tenant.Provider, so the request middleware resolves
// tenants through it, and PlanOf satisfies limits.PlanResolver. Every write
// that changes what the middleware sees drops the tenant from the resolver
// cache.
package tenant
