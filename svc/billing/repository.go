package billing

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/subscription"
)

const (
	SubscriptionsCollection = "subscriptions"
	LedgerCollection        = "processed_webhook_events"
)

// ErrAlreadyProcessed is returned by Ledger.Claim for a known key.
var ErrAlreadyProcessed = errors.New("billing: event already processed")

// Snapshot is the Stripe side of a subscription as carried by a webhook.
// Nil times are left untouched on update.
type Snapshot struct {
	TenantID             bson.ObjectID
	StripeCustomerID     string
	StripeSubscriptionID string
	StripePriceID        string
	Plan                 string
	PlanName             string
	PriceMonthly         int64
	Currency             string
	Status               subscription.Status
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	TrialStart           *time.Time
	TrialEnd             *time.Time
	CancelAtPeriodEnd    bool
	CanceledAt           *time.Time
}

// Subscriptions persists subscription records. It serves the subscription
// gate through subscription.Store.
type Subscriptions interface {
	subscription.Store

	FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*subscription.Subscription, error)
	// Upsert writes the snapshot keyed by stripe subscription ID. A plan
	// different from the stored one is appended to the plan history.
	Upsert(ctx context.Context, snap Snapshot, at time.Time) (*subscription.Subscription, error)
	AssignTenant(ctx context.Context, stripeSubscriptionID string, tenantID bson.ObjectID) error
	MarkCanceled(ctx context.Context, stripeSubscriptionID string, at time.Time) error
	ScheduleCancel(ctx context.Context, stripeSubscriptionID string, cancel bool, reason string, at time.Time) error
	RecordPayment(ctx context.Context, stripeSubscriptionID string, amount int64, at time.Time) error
	MarkPastDue(ctx context.Context, stripeSubscriptionID string, nextAttempt *time.Time, at time.Time) error
}

// Ledger outcomes.
const (
	OutcomeProcessing = "processing"
	OutcomeProcessed  = "processed"
	OutcomeIgnored    = "ignored"
	OutcomeFailed     = "failed"
)

// LedgerEntry is one processed webhook key.
type LedgerEntry struct {
	ID          string    `bson:"_id" json:"id"`
	Type        string    `bson:"type" json:"type"`
	ProcessedAt time.Time `bson:"processedAt" json:"processedAt"`
	Outcome     string    `bson:"outcome" json:"outcome"`
	Error       string    `bson:"error,omitempty" json:"error,omitempty"`
}

// Ledger is the durable idempotency record of webhook deliveries. Claim
// inserts the key and fails with ErrAlreadyProcessed when it exists, so
// concurrent deliveries of the same key race on a unique insert.
type Ledger interface {
	Claim(ctx context.Context, key, eventType string, at time.Time) error
	Complete(ctx context.Context, key, outcome string, cause error) error
}
