package auth

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongodb "github.com/dmitrymomot/leveledu/pkg/mongo"
	"github.com/dmitrymomot/leveledu/pkg/rbac"
)

// MongoRepository stores admin users in MongoDB.
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(Collection)}
}

// Indexes returns the indexes the repository relies on.
func Indexes() mongodb.IndexSet {
	return mongodb.IndexSet{
		Collection: Collection,
		Models: []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "role", Value: 1}}},
		},
	}
}

func (r *MongoRepository) Insert(ctx context.Context, u *User) error {
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	if u.Classrooms == nil {
		u.Classrooms = []bson.ObjectID{}
	}
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongodb.IsDuplicateKey(err) {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("insert admin user: %w", err)
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if mongodb.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find admin user: %w", err)
	}
	return &u, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) UpdatePassword(ctx context.Context, id bson.ObjectID, hash string) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"password": hash}})
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *MongoRepository) CountByRole(ctx context.Context, tenantID bson.ObjectID, role rbac.Role) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"tenantId": tenantID, "role": role})
	if err != nil {
		return 0, fmt.Errorf("count admin users: %w", err)
	}
	return n, nil
}
