package subscription

import (
	"encoding/json"
	"fmt"
	"time"
)

// Webhook event types handled by the billing reconciler.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

// CheckoutSessionEvent is the subset of a checkout session object the
// reconciler reads.
type CheckoutSessionEvent struct {
	ID              string `json:"id"`
	Mode            string `json:"mode"`
	Customer        string `json:"customer"`
	Subscription    string `json:"subscription"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

// Email returns the customer email, preferring the collected details.
func (c CheckoutSessionEvent) Email() string {
	if c.CustomerDetails.Email != "" {
		return c.CustomerDetails.Email
	}
	return c.CustomerEmail
}

// SubscriptionEvent is the subset of a subscription object the reconciler
// reads. Timestamps are unix seconds; zero means absent.
type SubscriptionEvent struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             Status `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         int64  `json:"canceled_at"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	TrialStart         int64  `json:"trial_start"`
	TrialEnd           int64  `json:"trial_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID         string `json:"id"`
				Currency   string `json:"currency"`
				UnitAmount int64  `json:"unit_amount"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// FirstPriceID returns the price of the first subscription item.
func (s SubscriptionEvent) FirstPriceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// PeriodStart returns the current period start, falling back to the first
// item's period for API versions that moved it there.
func (s SubscriptionEvent) PeriodStart() *time.Time {
	if s.CurrentPeriodStart == 0 && len(s.Items.Data) > 0 {
		return Epoch(s.Items.Data[0].CurrentPeriodStart)
	}
	return Epoch(s.CurrentPeriodStart)
}

// PeriodEnd is the end counterpart of PeriodStart.
func (s SubscriptionEvent) PeriodEnd() *time.Time {
	if s.CurrentPeriodEnd == 0 && len(s.Items.Data) > 0 {
		return Epoch(s.Items.Data[0].CurrentPeriodEnd)
	}
	return Epoch(s.CurrentPeriodEnd)
}

// InvoiceEvent is the subset of an invoice object the reconciler reads.
type InvoiceEvent struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Subscription       string `json:"subscription"`
	AmountPaid         int64  `json:"amount_paid"`
	Currency           string `json:"currency"`
	NextPaymentAttempt int64  `json:"next_payment_attempt"`
	Parent             struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID returns the invoice's subscription, looking in the parent
// object used by newer API versions.
func (i InvoiceEvent) SubscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription
	}
	return i.Parent.SubscriptionDetails.Subscription
}

// Decode unmarshals the event object into v.
func (e *WebhookEvent) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s event %s: %w", e.Type, e.ID, err)
	}
	return nil
}

// Epoch converts unix seconds to a time, returning nil for zero or negative
// values.
func Epoch(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
