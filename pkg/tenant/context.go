package tenant

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type (
	tenantKey    struct{}
	principalKey struct{}
)

// WithTenant stores the resolved tenant in ctx.
func WithTenant(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, tenantKey{}, info)
}

// FromContext returns the resolved tenant.
func FromContext(ctx context.Context) (*Info, bool) {
	info, ok := ctx.Value(tenantKey{}).(*Info)
	return info, ok && info != nil
}

// WithPrincipal stores the authenticated caller's tenant affiliation in ctx.
// Identity middleware calls it after validating a credential.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Scope restricts data access to one tenant. A super-admin scope is
// unrestricted; its TenantID is the resolved tenant, if any.
type Scope struct {
	TenantID   bson.ObjectID
	SuperAdmin bool
}

// ScopeFrom builds the data-access scope for ctx. Without a super-admin
// principal, a resolved tenant or a principal tenant it returns
// ErrAccessDenied.
func ScopeFrom(ctx context.Context) (Scope, error) {
	p, hasPrincipal := PrincipalFromContext(ctx)
	info, hasTenant := FromContext(ctx)

	var s Scope
	switch {
	case hasTenant:
		s.TenantID = info.ID
	case hasPrincipal:
		s.TenantID = p.TenantID
	}
	s.SuperAdmin = hasPrincipal && p.SuperAdmin

	if !s.SuperAdmin && s.TenantID.IsZero() {
		return Scope{}, ErrAccessDenied
	}
	return s, nil
}

// Apply returns filter restricted to the scope. The input map is not
// modified; a nil filter is treated as empty.
func (s Scope) Apply(filter bson.M) bson.M {
	out := make(bson.M, len(filter)+1)
	for k, v := range filter {
		out[k] = v
	}
	if !s.SuperAdmin {
		out["tenantId"] = s.TenantID
	}
	return out
}

// Owns reports whether a record belonging to tenantID is visible in the scope.
func (s Scope) Owns(tenantID bson.ObjectID) bool {
	return s.SuperAdmin || (!s.TenantID.IsZero() && s.TenantID == tenantID)
}

// Tenant returns the tenant new records are written to. Super-admins
// without a resolved tenant get ErrTenantNotSpecified.
func (s Scope) Tenant() (bson.ObjectID, error) {
	if s.TenantID.IsZero() {
		return bson.ObjectID{}, ErrTenantNotSpecified
	}
	return s.TenantID, nil
}

// LoggerExtractor adds "tenant_id" to log records written with a request
// context.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if info, ok := FromContext(ctx); ok {
			return slog.String("tenant_id", info.ID.Hex()), true
		}
		return slog.Attr{}, false
	}
}
