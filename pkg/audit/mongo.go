package audit

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongodb "github.com/dmitrymomot/leveledu/pkg/mongo"
)

// Collection holds audit events.
const Collection = "audit_events"

// MongoStorage stores events in MongoDB.
type MongoStorage struct {
	coll *mongo.Collection
}

func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{coll: db.Collection(Collection)}
}

// Indexes returns the indexes queries rely on.
func Indexes() mongodb.IndexSet {
	return mongodb.IndexSet{
		Collection: Collection,
		Models: []mongo.IndexModel{
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "action", Value: 1}}},
		},
	}
}

func (s *MongoStorage) Store(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	docs := make([]any, 0, len(events))
	for _, e := range events {
		if err := e.validate(); err != nil {
			return err
		}
		docs = append(docs, e)
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return errors.Join(ErrStorageFailure, fmt.Errorf("insert audit events: %w", err))
	}
	return nil
}

func (s *MongoStorage) Query(ctx context.Context, c Criteria) ([]Event, error) {
	filter := bson.M{}
	if c.TenantID != "" {
		filter["tenantId"] = c.TenantID
	}
	if c.UserID != "" {
		filter["userId"] = c.UserID
	}
	if c.Action != "" {
		filter["action"] = c.Action
	}
	if !c.Since.IsZero() {
		filter["createdAt"] = bson.M{"$gte": c.Since}
	}

	cur, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(c.limit())))
	if err != nil {
		return nil, errors.Join(ErrStorageFailure, fmt.Errorf("find audit events: %w", err))
	}
	events := make([]Event, 0)
	if err := cur.All(ctx, &events); err != nil {
		return nil, errors.Join(ErrStorageFailure, fmt.Errorf("decode audit events: %w", err))
	}
	return events, nil
}
