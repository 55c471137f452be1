package tenant

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongodb "github.com/dmitrymomot/leveledu/pkg/mongo"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// MongoRepository stores tenants in MongoDB.
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
			{Keys: bson.D{{Key: "subdomain", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "billing.customerId", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
}

func (r *MongoRepository) Insert(ctx context.Context, t *Tenant) error {
	if t.ID.IsZero() {
		t.ID = bson.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, t); err != nil {
		if mongodb.IsDuplicateKey(err) {
			return ErrSubdomainTaken
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*Tenant, error) {
	var t Tenant
	if err := r.coll.FindOne(ctx, filter).Decode(&t); err != nil {
		if mongodb.IsNotFound(err) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return &t, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id bson.ObjectID) (*Tenant, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	return r.findOne(ctx, bson.M{"subdomain": subdomain})
}

func (r *MongoRepository) FindByCustomerID(ctx context.Context, customerID string) (*Tenant, error) {
	if customerID == "" {
		return nil, tenant.ErrTenantNotFound
	}
	return r.findOne(ctx, bson.M{"billing.customerId": customerID})
}

func (r *MongoRepository) List(ctx context.Context, f ListFilter) ([]Tenant, int64, error) {
	f = f.normalized()

	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Plan != "" {
		filter["plan.type"] = f.Plan
	}
	if f.Search != "" {
		re := bson.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"subdomain": re},
			bson.M{"contact.adminEmail": re},
		}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(f.skip()).
		SetLimit(f.Limit).
		SetProjection(bson.M{"metadata.notes": 0}))
	if err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	items := make([]Tenant, 0, f.Limit)
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("decode tenants: %w", err)
	}
	return items, total, nil
}

func (r *MongoRepository) Replace(ctx context.Context, t *Tenant) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": t.ID}, t)
	if err != nil {
		return fmt.Errorf("replace tenant: %w", err)
	}
	if res.MatchedCount == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

func (r *MongoRepository) set(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	fields["updatedAt"] = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if res.MatchedCount == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

func (r *MongoRepository) UpdateBilling(ctx context.Context, id bson.ObjectID, billing Billing) error {
	return r.set(ctx, id, bson.M{"billing": billing})
}

func (r *MongoRepository) UpdatePlan(ctx context.Context, id bson.ObjectID, plan PlanInfo) error {
	return r.set(ctx, id, bson.M{"plan": plan})
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, id bson.ObjectID, status tenant.Status, reason string) error {
	return r.set(ctx, id, bson.M{"status": status, "metadata.suspensionReason": reason})
}

func (r *MongoRepository) UpdateStats(ctx context.Context, id bson.ObjectID, stats Stats) error {
	return r.set(ctx, id, bson.M{"stats": stats})
}

func (r *MongoRepository) CountByStatus(ctx context.Context) (map[tenant.Status]int64, error) {
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count tenants by status: %w", err)
	}
	var rows []struct {
		Status tenant.Status `bson:"_id"`
		Count  int64         `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode status counts: %w", err)
	}
	out := make(map[tenant.Status]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
