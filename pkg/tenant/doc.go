// Package tenant resolves the school a request belongs to and scopes data
// access to it.
//
// Middleware walks its resolvers in order (the X-Tenant-ID header, which may
// carry an ObjectID or a subdomain, then X-Tenant-Subdomain, then the request
// host, then the authenticated user's own tenant) and loads the first
// identifier the Provider knows. Only tenants in the active or trial status
// pass. Requests that resolve nothing fail with ErrTenantNotSpecified unless
// the path is exempt (tenant management and super-admin routes) or the
// caller is a super-admin.
//
// Downstream code reads the result through ScopeFrom:
//
//	scope, err := tenant.ScopeFrom(ctx)
//	if err != nil {
//		return err
//	}
//	filter := scope.Apply(bson.M{"_id": id})
//
// A super-admin scope leaves filters untouched; any other scope adds the
// tenantId condition. Scope.Owns answers the same question for documents
// fetched by global id.
//
// Lookups are cached for a short TTL in process memory or, when configured,
// in Redis so every instance shares invalidations.
package tenant
