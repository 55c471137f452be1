package limits

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongodb "github.com/dmitrymomot/leveledu/pkg/mongo"
)

// QuotaLocksCollection holds one document per tenant resource that every
// reservation writes to.
const QuotaLocksCollection = "quota_locks"

// MongoTransactor serializes reservations with a MongoDB transaction. Each
// reservation increments the tenant's quota_locks document before counting,
// so two concurrent transactions conflict on that write and one of them is
// retried by the driver against the committed count.
type MongoTransactor struct {
	client *mongo.Client
	locks  *mongo.Collection
}

// NewMongoTransactor creates a transactor. Transactions require a replica
// set or sharded cluster.
func NewMongoTransactor(client *mongo.Client, db *mongo.Database) *MongoTransactor {
	return &MongoTransactor{client: client, locks: db.Collection(QuotaLocksCollection)}
}

func (t *MongoTransactor) WithinQuota(ctx context.Context, tenantID bson.ObjectID, res Resource, fn func(ctx context.Context) error) error {
	return mongodb.Transaction(ctx, t.client, func(ctx context.Context) error {
		_, err := t.locks.UpdateOne(ctx,
			bson.M{"_id": tenantID.Hex() + ":" + string(res)},
			bson.M{
				"$inc": bson.M{"version": 1},
				"$set": bson.M{"tenantId": tenantID, "resource": string(res), "updatedAt": time.Now().UTC()},
			},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			return err
		}
		return fn(ctx)
	})
}
