package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongodb "github.com/dmitrymomot/leveledu/pkg/mongo"
	"github.com/dmitrymomot/leveledu/pkg/subscription"
)

// MongoSubscriptions stores subscriptions in MongoDB.
type MongoSubscriptions struct {
	coll *mongo.Collection
}

func NewMongoSubscriptions(db *mongo.Database) *MongoSubscriptions {
	return &MongoSubscriptions{coll: db.Collection(SubscriptionsCollection)}
}

// Indexes returns the indexes billing relies on.
func Indexes() []mongodb.IndexSet {
	return []mongodb.IndexSet{
		{
			Collection: SubscriptionsCollection,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "stripeSubscriptionId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "createdAt", Value: -1}}},
			},
		},
		{
			Collection: LedgerCollection,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "processedAt", Value: -1}}},
			},
		},
	}
}

var newestFirst = options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

func (r *MongoSubscriptions) findOne(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOneOptions]) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	if err := r.coll.FindOne(ctx, filter, opts...).Decode(&sub); err != nil {
		if mongodb.IsNotFound(err) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return &sub, nil
}

func (r *MongoSubscriptions) Current(ctx context.Context, tenantID bson.ObjectID) (*subscription.Subscription, error) {
	return r.findOne(ctx, bson.M{
		"tenantId": tenantID,
		"status":   bson.M{"$in": bson.A{subscription.StatusActive, subscription.StatusTrialing}},
	}, newestFirst)
}

func (r *MongoSubscriptions) Latest(ctx context.Context, tenantID bson.ObjectID) (*subscription.Subscription, error) {
	return r.findOne(ctx, bson.M{"tenantId": tenantID}, newestFirst)
}

func (r *MongoSubscriptions) FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*subscription.Subscription, error) {
	return r.findOne(ctx, bson.M{"stripeSubscriptionId": stripeSubscriptionID})
}

func (r *MongoSubscriptions) Upsert(ctx context.Context, snap Snapshot, at time.Time) (*subscription.Subscription, error) {
	sub, err := r.upsert(ctx, snap, at)
	if mongodb.IsDuplicateKey(err) {
		// lost an insert race on the unique stripe id; the retry updates
		sub, err = r.upsert(ctx, snap, at)
	}
	return sub, err
}

func (r *MongoSubscriptions) upsert(ctx context.Context, snap Snapshot, at time.Time) (*subscription.Subscription, error) {
	existing, err := r.FindByStripeID(ctx, snap.StripeSubscriptionID)
	if err != nil && !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, err
	}

	set := bson.M{
		"status":            snap.Status,
		"cancelAtPeriodEnd": snap.CancelAtPeriodEnd,
		"updatedAt":         at,
	}
	setIf := func(key, v string) {
		if v != "" {
			set[key] = v
		}
	}
	setIf("stripeCustomerId", snap.StripeCustomerID)
	setIf("stripePriceId", snap.StripePriceID)
	setIf("plan", snap.Plan)
	setIf("planName", snap.PlanName)
	setIf("currency", snap.Currency)
	if snap.PriceMonthly > 0 {
		set["priceMonthly"] = snap.PriceMonthly
	}
	if !snap.TenantID.IsZero() {
		set["tenantId"] = snap.TenantID
	}
	for key, v := range map[string]*time.Time{
		"currentPeriodStart": snap.CurrentPeriodStart,
		"currentPeriodEnd":   snap.CurrentPeriodEnd,
		"trialStart":         snap.TrialStart,
		"trialEnd":           snap.TrialEnd,
		"canceledAt":         snap.CanceledAt,
	} {
		if v != nil {
			set[key] = *v
		}
	}

	update := bson.M{"$set": set}
	switch {
	case existing == nil:
		update["$setOnInsert"] = bson.M{
			"createdAt":    at,
			"totalRevenue": int64(0),
			"planHistory":  bson.A{subscription.PlanChange{Plan: snap.Plan, ChangedAt: at, Reason: "created"}},
		}
	case snap.Plan != "" && snap.Plan != existing.Plan:
		update["$push"] = bson.M{"planHistory": subscription.PlanChange{Plan: snap.Plan, ChangedAt: at, Reason: "plan_changed"}}
	}

	var sub subscription.Subscription
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"stripeSubscriptionId": snap.StripeSubscriptionID},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&sub)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	return &sub, nil
}

func (r *MongoSubscriptions) update(ctx context.Context, stripeSubscriptionID string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"stripeSubscriptionId": stripeSubscriptionID}, update)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

func (r *MongoSubscriptions) AssignTenant(ctx context.Context, stripeSubscriptionID string, tenantID bson.ObjectID) error {
	return r.update(ctx, stripeSubscriptionID, bson.M{"$set": bson.M{"tenantId": tenantID}})
}

func (r *MongoSubscriptions) MarkCanceled(ctx context.Context, stripeSubscriptionID string, at time.Time) error {
	return r.update(ctx, stripeSubscriptionID, bson.M{"$set": bson.M{
		"status":     subscription.StatusCanceled,
		"canceledAt": at,
		"updatedAt":  at,
	}})
}

func (r *MongoSubscriptions) ScheduleCancel(ctx context.Context, stripeSubscriptionID string, cancel bool, reason string, at time.Time) error {
	set := bson.M{"cancelAtPeriodEnd": cancel, "updatedAt": at}
	if reason != "" {
		set["cancellationReason"] = reason
	}
	return r.update(ctx, stripeSubscriptionID, bson.M{"$set": set})
}

func (r *MongoSubscriptions) RecordPayment(ctx context.Context, stripeSubscriptionID string, amount int64, at time.Time) error {
	return r.update(ctx, stripeSubscriptionID, bson.M{
		"$inc": bson.M{"totalRevenue": amount},
		"$set": bson.M{"lastPaymentAt": at, "updatedAt": at},
	})
}

func (r *MongoSubscriptions) MarkPastDue(ctx context.Context, stripeSubscriptionID string, nextAttempt *time.Time, at time.Time) error {
	set := bson.M{"status": subscription.StatusPastDue, "updatedAt": at}
	if nextAttempt != nil {
		set["nextPaymentAttempt"] = *nextAttempt
	}
	return r.update(ctx, stripeSubscriptionID, bson.M{"$set": set})
}

// MongoLedger records webhook deliveries in MongoDB.
type MongoLedger struct {
	coll *mongo.Collection
}

func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{coll: db.Collection(LedgerCollection)}
}

func (l *MongoLedger) Claim(ctx context.Context, key, eventType string, at time.Time) error {
	_, err := l.coll.InsertOne(ctx, LedgerEntry{ID: key, Type: eventType, ProcessedAt: at, Outcome: OutcomeProcessing})
	switch {
	case mongodb.IsDuplicateKey(err):
		return ErrAlreadyProcessed
	case err != nil:
		return fmt.Errorf("claim webhook event: %w", err)
	}
	return nil
}

func (l *MongoLedger) Complete(ctx context.Context, key, outcome string, cause error) error {
	set := bson.M{"outcome": outcome}
	if cause != nil {
		set["error"] = cause.Error()
	}
	if _, err := l.coll.UpdateByID(ctx, key, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("complete webhook event: %w", err)
	}
	return nil
}
