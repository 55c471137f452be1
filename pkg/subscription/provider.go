package subscription

import (
	"context"
	"encoding/json"
	"time"
)

// BillingProvider is the payment provider surface used by the billing
// service.
type BillingProvider interface {
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	GetCustomerPortalLink(ctx context.Context, customerID, returnURL string) (*PortalLink, error)
	CancelSubscription(ctx context.Context, subscriptionID, reason string, immediately bool) error
	ReactivateSubscription(ctx context.Context, subscriptionID string) error
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutRequest describes a hosted subscription checkout.
type CheckoutRequest struct {
	PriceID    string
	CustomerID string // reuse an existing customer; Email is ignored when set
	Email      string
	SuccessURL string
	CancelURL  string
	TrialDays  int64
	Metadata   map[string]string
}

// CheckoutLink is a created checkout session.
type CheckoutLink struct {
	SessionID string    `json:"sessionId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CheckoutSession is the state of a checkout session as read back from the
// provider.
type CheckoutSession struct {
	ID             string
	Status         string
	PaymentStatus  string
	CustomerID     string
	CustomerEmail  string
	SubscriptionID string
	Metadata       map[string]string
}

// PortalLink is a billing portal session URL.
type PortalLink struct {
	URL string `json:"url"`
}

// WebhookEvent is a verified provider event. Data holds the raw event
// object for the decoders in events.go.
type WebhookEvent struct {
	ID      string
	Type    string
	Created time.Time
	Data    json.RawMessage
}
