package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/leveledu/pkg/logger"
)

// StripeConfig holds Stripe credentials.
type StripeConfig struct {
	SecretKey      string `env:"STRIPE_SECRET_KEY"`
	PublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret  string `env:"STRIPE_WEBHOOK_SECRET"`
}

// stripeAPI groups the SDK calls so tests can replace them.
type stripeAPI struct {
	createCheckout func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getCheckout    func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	createPortal   func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	updateSub      func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	cancelSub      func(id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
}

// StripeProvider implements BillingProvider on top of stripe-go.
type StripeProvider struct {
	cfg    StripeConfig
	api    stripeAPI
	logger *slog.Logger
}

// StripeOption configures a StripeProvider.
type StripeOption func(*StripeProvider)

// WithStripeLogger sets the provider's logger.
func WithStripeLogger(log *slog.Logger) StripeOption {
	return func(p *StripeProvider) {
		if log != nil {
			p.logger = log
		}
	}
}

// NewStripeProvider configures the global stripe key and returns a provider.
func NewStripeProvider(cfg StripeConfig, opts ...StripeOption) *StripeProvider {
	stripe.Key = strings.TrimSpace(cfg.SecretKey)
	p := &StripeProvider{
		cfg: cfg,
		api: stripeAPI{
			createCheckout: checkoutsession.New,
			getCheckout:    checkoutsession.Get,
			createPortal:   portalsession.New,
			updateSub:      stripesub.Update,
			cancelSub:      stripesub.Cancel,
		},
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateCheckoutLink opens a subscription checkout session.
func (p *StripeProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if strings.TrimSpace(req.PriceID) == "" {
		return nil, ErrMissingPriceID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		},
		Metadata: req.Metadata,
	}
	params.Context = ctx
	switch {
	case req.CustomerID != "":
		params.Customer = stripe.String(req.CustomerID)
	case req.Email != "":
		params.CustomerEmail = stripe.String(req.Email)
	}
	if req.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(req.TrialDays)
	}

	session, err := p.api.createCheckout(params)
	if err != nil || session == nil || strings.TrimSpace(session.URL) == "" {
		p.logger.ErrorContext(ctx, "stripe checkout session creation failed",
			slog.String("price_id", req.PriceID),
			logger.Error(err))
		return nil, errors.Join(ErrProviderFailure, err)
	}

	link := &CheckoutLink{SessionID: session.ID, URL: session.URL}
	if session.ExpiresAt > 0 {
		link.ExpiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return link, nil
}

// GetCheckoutSession reads a checkout session back from Stripe.
func (p *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := p.api.getCheckout(sessionID, params)
	if err != nil || session == nil {
		return nil, errors.Join(ErrProviderFailure, err)
	}

	out := &CheckoutSession{
		ID:            session.ID,
		Status:        string(session.Status),
		PaymentStatus: string(session.PaymentStatus),
		CustomerEmail: session.CustomerEmail,
		Metadata:      session.Metadata,
	}
	if session.Customer != nil {
		out.CustomerID = session.Customer.ID
	}
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		out.CustomerEmail = session.CustomerDetails.Email
	}
	if session.Subscription != nil {
		out.SubscriptionID = session.Subscription.ID
	}
	return out, nil
}

// GetCustomerPortalLink opens a billing portal session for the customer.
func (p *StripeProvider) GetCustomerPortalLink(ctx context.Context, customerID, returnURL string) (*PortalLink, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrMissingCustomerID
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	session, err := p.api.createPortal(params)
	if err != nil || session == nil {
		return nil, errors.Join(ErrProviderFailure, err)
	}
	return &PortalLink{URL: session.URL}, nil
}

// CancelSubscription cancels immediately or at the end of the current
// period. The reason is stored in the subscription metadata.
func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID, reason string, immediately bool) error {
	if immediately {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		if reason != "" {
			params.AddMetadata("cancellation_reason", reason)
		}
		if _, err := p.api.cancelSub(subscriptionID, params); err != nil {
			return fmt.Errorf("cancel subscription %s: %w", subscriptionID, errors.Join(ErrProviderFailure, err))
		}
		return nil
	}

	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	if reason != "" {
		params.AddMetadata("cancellation_reason", reason)
	}
	if _, err := p.api.updateSub(subscriptionID, params); err != nil {
		return fmt.Errorf("schedule cancel %s: %w", subscriptionID, errors.Join(ErrProviderFailure, err))
	}
	return nil
}

// ReactivateSubscription clears a scheduled cancellation.
func (p *StripeProvider) ReactivateSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(false)}
	params.Context = ctx
	if _, err := p.api.updateSub(subscriptionID, params); err != nil {
		return fmt.Errorf("reactivate %s: %w", subscriptionID, errors.Join(ErrProviderFailure, err))
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header against the endpoint
// secret and returns the event.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	secret := strings.TrimSpace(p.cfg.WebhookSecret)
	if secret == "" {
		return nil, ErrMissingWebhookSecret
	}
	if strings.TrimSpace(signature) == "" {
		return nil, ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	out := &WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data != nil {
		out.Data = event.Data.Raw
	}
	return out, nil
}
