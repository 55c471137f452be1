package limits

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Counter counts the active records of one resource for a tenant.
// Repositories implement it.
type Counter interface {
	Count(ctx context.Context, tenantID bson.ObjectID) (int64, error)
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(ctx context.Context, tenantID bson.ObjectID) (int64, error)

func (f CounterFunc) Count(ctx context.Context, tenantID bson.ObjectID) (int64, error) {
	return f(ctx, tenantID)
}

// CounterRegistry maps resources to counters. Register everything at
// startup; the registry is not safe for concurrent writes.
type CounterRegistry map[Resource]Counter

// NewRegistry returns an empty registry.
func NewRegistry() CounterRegistry {
	return make(CounterRegistry)
}

// Register sets the counter for res. It panics on a nil counter or an
// unknown resource.
func (r CounterRegistry) Register(res Resource, c Counter) {
	if c == nil {
		panic(fmt.Sprintf("limits: counter for resource %q cannot be nil", res))
	}
	if !res.Valid() {
		panic(fmt.Sprintf("limits: unknown resource %q", res))
	}
	r[res] = c
}
