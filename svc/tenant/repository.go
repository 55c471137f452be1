package tenant

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// Repository persists tenants. Finders return tenant.ErrTenantNotFound when
// nothing matches; Insert returns ErrSubdomainTaken on a duplicate subdomain.
type Repository interface {
	Insert(ctx context.Context, t *Tenant) error
	FindByID(ctx context.Context, id bson.ObjectID) (*Tenant, error)
	FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	FindByCustomerID(ctx context.Context, customerID string) (*Tenant, error)
	List(ctx context.Context, filter ListFilter) ([]Tenant, int64, error)
	Replace(ctx context.Context, t *Tenant) error
	UpdateBilling(ctx context.Context, id bson.ObjectID, billing Billing) error
	UpdatePlan(ctx context.Context, id bson.ObjectID, plan PlanInfo) error
	UpdateStatus(ctx context.Context, id bson.ObjectID, status tenant.Status, reason string) error
	UpdateStats(ctx context.Context, id bson.ObjectID, stats Stats) error
	CountByStatus(ctx context.Context) (map[tenant.Status]int64, error)
}

// ListFilter selects a page of tenants, newest first.
type ListFilter struct {
	Page   int64
	Limit  int64
	Status tenant.Status
	Plan   string
	Search string // case-insensitive match on name, subdomain or admin email
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

func (f ListFilter) normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	return f
}

func (f ListFilter) skip() int64 {
	return (f.Page - 1) * f.Limit
}
