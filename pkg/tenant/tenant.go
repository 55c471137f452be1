package tenant

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Status is the lifecycle state of a tenant.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusSuspended, StatusInactive:
		return true
	}
	return false
}

// Operational reports whether requests for the tenant may proceed.
func (s Status) Operational() bool {
	return s == StatusActive || s == StatusTrial
}

// Info is the request-scoped view of a tenant.
type Info struct {
	ID        bson.ObjectID `json:"id"`
	Subdomain string        `json:"subdomain"`
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Plan      string        `json:"plan"`
}

// Provider loads tenants. Both methods return ErrTenantNotFound when
// nothing matches.
type Provider interface {
	GetByID(ctx context.Context, id bson.ObjectID) (*Info, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*Info, error)
}
