package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/leveledu/pkg/logger"
)

// newTestProvider skips NewStripeProvider so parallel tests never write the
// global stripe key.
func newTestProvider(secret string) *StripeProvider {
	unexpected := errors.New("unexpected stripe call")
	return &StripeProvider{
		cfg: StripeConfig{WebhookSecret: secret},
		api: stripeAPI{
			createCheckout: func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) { return nil, unexpected },
			getCheckout:    func(string, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) { return nil, unexpected },
			createPortal:   func(*stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) { return nil, unexpected },
			updateSub:      func(string, *stripe.SubscriptionParams) (*stripe.Subscription, error) { return nil, unexpected },
			cancelSub:      func(string, *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) { return nil, unexpected },
		},
		logger: logger.Discard(),
	}
}

func TestStripeProvider_CreateCheckoutLink(t *testing.T) {
	t.Parallel()

	t.Run("builds subscription checkout", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider("")
		var got *stripe.CheckoutSessionParams
		p.api.createCheckout = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			got = params
			return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.test/cs_1", ExpiresAt: 1767225600}, nil
		}

		link, err := p.CreateCheckoutLink(context.Background(), CheckoutRequest{
			PriceID:    "price_starter",
			Email:      "dir@escola.test",
			SuccessURL: "https://app.test/ok",
			CancelURL:  "https://app.test/cancel",
			TrialDays:  30,
			Metadata:   map[string]string{"signupFlow": "true", "subdomain": "escola"},
		})
		require.NoError(t, err)
		assert.Equal(t, "cs_1", link.SessionID)
		assert.Equal(t, "https://checkout.stripe.test/cs_1", link.URL)
		assert.Equal(t, time.Unix(1767225600, 0).UTC(), link.ExpiresAt)

		require.NotNil(t, got)
		assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *got.Mode)
		assert.Equal(t, "dir@escola.test", *got.CustomerEmail)
		assert.Nil(t, got.Customer)
		require.Len(t, got.LineItems, 1)
		assert.Equal(t, "price_starter", *got.LineItems[0].Price)
		assert.Equal(t, int64(30), *got.SubscriptionData.TrialPeriodDays)
		assert.Equal(t, "escola", got.Metadata["subdomain"])
		assert.Equal(t, "true", got.SubscriptionData.Metadata["signupFlow"])
	})

	t.Run("prefers existing customer", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider("")
		var got *stripe.CheckoutSessionParams
		p.api.createCheckout = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			got = params
			return &stripe.CheckoutSession{ID: "cs_2", URL: "https://checkout.stripe.test/cs_2"}, nil
		}

		_, err := p.CreateCheckoutLink(context.Background(), CheckoutRequest{PriceID: "price_x", CustomerID: "cus_1", Email: "x@y.test"})
		require.NoError(t, err)
		assert.Equal(t, "cus_1", *got.Customer)
		assert.Nil(t, got.CustomerEmail)
		assert.Nil(t, got.SubscriptionData.TrialPeriodDays)
	})

	t.Run("requires price", func(t *testing.T) {
		t.Parallel()
		_, err := newTestProvider("").CreateCheckoutLink(context.Background(), CheckoutRequest{})
		require.ErrorIs(t, err, ErrMissingPriceID)
	})

	t.Run("wraps sdk failure", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider("")
		p.api.createCheckout = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			return nil, errors.New("card_declined")
		}
		_, err := p.CreateCheckoutLink(context.Background(), CheckoutRequest{PriceID: "price_x"})
		require.ErrorIs(t, err, ErrProviderFailure)
	})
}

func TestStripeProvider_GetCheckoutSession(t *testing.T) {
	t.Parallel()

	p := newTestProvider("")
	p.api.getCheckout = func(id string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return &stripe.CheckoutSession{
			ID:              id,
			Status:          stripe.CheckoutSessionStatusComplete,
			PaymentStatus:   stripe.CheckoutSessionPaymentStatusPaid,
			Customer:        &stripe.Customer{ID: "cus_9"},
			Subscription:    &stripe.Subscription{ID: "sub_9"},
			CustomerDetails: &stripe.CheckoutSessionCustomerDetails{Email: "dir@escola.test"},
			Metadata:        map[string]string{"subdomain": "escola"},
		}, nil
	}

	session, err := p.GetCheckoutSession(context.Background(), "cs_9")
	require.NoError(t, err)
	assert.Equal(t, "cs_9", session.ID)
	assert.Equal(t, "complete", session.Status)
	assert.Equal(t, "paid", session.PaymentStatus)
	assert.Equal(t, "cus_9", session.CustomerID)
	assert.Equal(t, "sub_9", session.SubscriptionID)
	assert.Equal(t, "dir@escola.test", session.CustomerEmail)
	assert.Equal(t, "escola", session.Metadata["subdomain"])
}

func TestStripeProvider_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("at period end", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider("")
		var got *stripe.SubscriptionParams
		p.api.updateSub = func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
			got = params
			return &stripe.Subscription{ID: id}, nil
		}
		p.api.cancelSub = func(string, *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
			t.Fatal("immediate cancel must not be called")
			return nil, nil
		}

		require.NoError(t, p.CancelSubscription(context.Background(), "sub_1", "too expensive", false))
		assert.True(t, *got.CancelAtPeriodEnd)
		assert.Equal(t, "too expensive", got.Metadata["cancellation_reason"])
	})

	t.Run("immediately", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider("")
		var called string
		p.api.cancelSub = func(id string, _ *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
			called = id
			return &stripe.Subscription{ID: id}, nil
		}

		require.NoError(t, p.CancelSubscription(context.Background(), "sub_2", "", true))
		assert.Equal(t, "sub_2", called)
	})

	t.Run("reactivate clears flag", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider("")
		var got *stripe.SubscriptionParams
		p.api.updateSub = func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
			got = params
			return &stripe.Subscription{ID: id}, nil
		}

		require.NoError(t, p.ReactivateSubscription(context.Background(), "sub_3"))
		assert.False(t, *got.CancelAtPeriodEnd)
	})
}

func TestStripeProvider_Portal(t *testing.T) {
	t.Parallel()

	p := newTestProvider("")
	p.api.createPortal = func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
		assert.Equal(t, "cus_1", *params.Customer)
		return &stripe.BillingPortalSession{URL: "https://billing.stripe.test/p"}, nil
	}

	link, err := p.GetCustomerPortalLink(context.Background(), "cus_1", "https://app.test/billing")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/p", link.URL)

	_, err = p.GetCustomerPortalLink(context.Background(), "", "https://app.test/billing")
	require.ErrorIs(t, err, ErrMissingCustomerID)
}

func TestStripeProvider_ParseWebhook(t *testing.T) {
	t.Parallel()

	const secret = "whsec_test"
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "customer.subscription.updated",
		"created": 1767225600,
		"data": {"object": {
			"id": "sub_1",
			"customer": "cus_1",
			"status": "active",
			"current_period_end": 1769904000,
			"items": {"data": [{"price": {"id": "price_growth", "currency": "brl", "unit_amount": 99900}}]},
			"metadata": {"tenantId": "abc"}
		}}
	}`)

	sign := func(secret string) string {
		return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    secret,
			Timestamp: time.Now(),
			Scheme:    "v1",
		}).Header
	}

	t.Run("valid signature", func(t *testing.T) {
		t.Parallel()
		event, err := newTestProvider(secret).ParseWebhook(payload, sign(secret))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, EventSubscriptionUpdated, event.Type)

		var sub SubscriptionEvent
		require.NoError(t, event.Decode(&sub))
		assert.Equal(t, "sub_1", sub.ID)
		assert.Equal(t, StatusActive, sub.Status)
		assert.Equal(t, "price_growth", sub.FirstPriceID())
		assert.Nil(t, sub.PeriodStart())
		require.NotNil(t, sub.PeriodEnd())
		assert.Equal(t, int64(1769904000), sub.PeriodEnd().Unix())
		assert.Equal(t, "abc", sub.Metadata["tenantId"])
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		_, err := newTestProvider(secret).ParseWebhook(payload, sign("whsec_other"))
		require.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		_, err := newTestProvider(secret).ParseWebhook(payload, "")
		require.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Parallel()
		_, err := newTestProvider("").ParseWebhook(payload, sign(secret))
		require.ErrorIs(t, err, ErrMissingWebhookSecret)
	})
}

func TestEventDecoders(t *testing.T) {
	t.Parallel()

	t.Run("checkout prefers customer details email", func(t *testing.T) {
		t.Parallel()
		event := &WebhookEvent{ID: "evt", Type: EventCheckoutCompleted, Data: []byte(`{
			"id": "cs_1", "customer_email": "a@x.test",
			"customer_details": {"email": "b@x.test"},
			"metadata": {"signupFlow": "true"}
		}`)}
		var cs CheckoutSessionEvent
		require.NoError(t, event.Decode(&cs))
		assert.Equal(t, "b@x.test", cs.Email())
		assert.Equal(t, "true", cs.Metadata["signupFlow"])
	})

	t.Run("invoice subscription from parent", func(t *testing.T) {
		t.Parallel()
		event := &WebhookEvent{ID: "evt", Type: EventInvoicePaymentSucceeded, Data: []byte(`{
			"id": "in_1", "amount_paid": 29900,
			"parent": {"subscription_details": {"subscription": "sub_7"}}
		}`)}
		var inv InvoiceEvent
		require.NoError(t, event.Decode(&inv))
		assert.Equal(t, "sub_7", inv.SubscriptionID())
		assert.Equal(t, int64(29900), inv.AmountPaid)
	})

	t.Run("bad payload", func(t *testing.T) {
		t.Parallel()
		event := &WebhookEvent{ID: "evt_x", Type: EventInvoicePaymentFailed, Data: []byte(`{`)}
		var inv InvoiceEvent
		require.Error(t, event.Decode(&inv))
	})

	t.Run("epoch", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, Epoch(0))
		assert.Nil(t, Epoch(-5))
		assert.Equal(t, int64(10), Epoch(10).Unix())
	})
}
