package subscription

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Status is the Stripe subscription status.
type Status string

const (
	StatusActive            Status = "active"
	StatusTrialing          Status = "trialing"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusPaused            Status = "paused"
)

// Current reports whether the status grants access under the strict gate.
func (s Status) Current() bool {
	return s == StatusActive || s == StatusTrialing
}

// Terminated reports whether the lenient gate refuses the status.
func (s Status) Terminated() bool {
	return s == StatusCanceled || s == StatusUnpaid
}

// PlanChange is one entry of a subscription's plan history.
type PlanChange struct {
	Plan      string    `bson:"plan" json:"plan"`
	ChangedAt time.Time `bson:"changedAt" json:"changedAt"`
	Reason    string    `bson:"reason" json:"reason"`
}

// Subscription is the local record of a Stripe subscription.
type Subscription struct {
	ID                   bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID             bson.ObjectID `bson:"tenantId" json:"tenantId"`
	StripeCustomerID     string        `bson:"stripeCustomerId" json:"stripeCustomerId"`
	StripeSubscriptionID string        `bson:"stripeSubscriptionId" json:"stripeSubscriptionId"`
	StripePriceID        string        `bson:"stripePriceId,omitempty" json:"stripePriceId,omitempty"`
	Plan                 string        `bson:"plan" json:"plan"`
	PlanName             string        `bson:"planName,omitempty" json:"planName,omitempty"`
	PriceMonthly         int64         `bson:"priceMonthly" json:"priceMonthly"`
	Currency             string        `bson:"currency" json:"currency"`
	Status               Status        `bson:"status" json:"status"`
	CurrentPeriodStart   *time.Time    `bson:"currentPeriodStart,omitempty" json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd     *time.Time    `bson:"currentPeriodEnd,omitempty" json:"currentPeriodEnd,omitempty"`
	TrialStart           *time.Time    `bson:"trialStart,omitempty" json:"trialStart,omitempty"`
	TrialEnd             *time.Time    `bson:"trialEnd,omitempty" json:"trialEnd,omitempty"`
	CancelAtPeriodEnd    bool          `bson:"cancelAtPeriodEnd" json:"cancelAtPeriodEnd"`
	CanceledAt           *time.Time    `bson:"canceledAt,omitempty" json:"canceledAt,omitempty"`
	CancellationReason   string        `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	PlanHistory          []PlanChange  `bson:"planHistory" json:"planHistory"`
	TotalRevenue         int64         `bson:"totalRevenue" json:"totalRevenue"`
	NextPaymentAttempt   *time.Time    `bson:"nextPaymentAttempt,omitempty" json:"nextPaymentAttempt,omitempty"`
	LastPaymentAt        *time.Time    `bson:"lastPaymentAt,omitempty" json:"lastPaymentAt,omitempty"`
	CreatedAt            time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// ExpiredAt reports whether the current period ended before now.
func (s *Subscription) ExpiredAt(now time.Time) bool {
	return s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.Before(now)
}

// TrialDaysRemainingAt returns the whole days left in the trial, rounding
// partial days up. It is 0 outside a trial.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) int {
	if s.Status != StatusTrialing || s.TrialEnd == nil {
		return 0
	}
	remaining := s.TrialEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}
