package subscription

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store reads subscription records. Both methods return
// ErrSubscriptionNotFound when nothing matches.
type Store interface {
	// Current returns the tenant's active or trialing subscription.
	Current(ctx context.Context, tenantID bson.ObjectID) (*Subscription, error)
	// Latest returns the tenant's most recently created subscription.
	Latest(ctx context.Context, tenantID bson.ObjectID) (*Subscription, error)
}
