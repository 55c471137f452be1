package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// IndexSet lists the indexes a repository needs on one collection.
type IndexSet struct {
	Collection string
	Models     []mongo.IndexModel
}

// EnsureIndexes creates every index in sets. Existing identical indexes are a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database, sets ...IndexSet) error {
	for _, set := range sets {
		if len(set.Models) == 0 {
			continue
		}
		if _, err := db.Collection(set.Collection).Indexes().CreateMany(ctx, set.Models); err != nil {
			return errors.Join(ErrIndexCreation, fmt.Errorf("%s: %w", set.Collection, err))
		}
	}
	return nil
}
