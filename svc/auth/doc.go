// Package auth manages platform (admin) users: tenant administrators,
// teachers and super-admins.
//
// Service covers login, registration under the tenant's staff quota,
// password reset by email, logout through token revocation and the
// provisioning of a tenant's first administrator after checkout.
// Middleware turns a bearer token into an authenticated User and publishes
// the caller's role and tenant affiliation for the rbac and tenant
// packages.
package auth
