package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/leveledu/pkg/subscription"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	"github.com/dmitrymomot/leveledu/svc/billing"
	tenantsvc "github.com/dmitrymomot/leveledu/svc/tenant"
)

func event(t *testing.T, id, typ string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"id": id, "type": typ, "data": data})
	require.NoError(t, err)
	return raw
}

func signupSession(id string) map[string]any {
	return map[string]any{
		"id":           id,
		"mode":         "subscription",
		"customer":     "cus_new",
		"subscription": "sub_new",
		"metadata": map[string]string{
			"signupFlow":      "true",
			"tenantSubdomain": "newschool",
			"plan":            "starter",
			"adminEmail":      "a@b.com",
		},
	}
}

func subscriptionObject(status string, price string) map[string]any {
	return map[string]any{
		"id":                   "sub_new",
		"customer":             "cus_new",
		"status":               status,
		"current_period_start": fixedNow.Unix(),
		"current_period_end":   fixedNow.AddDate(0, 1, 0).Unix(),
		"items": map[string]any{"data": []any{
			map[string]any{"price": map[string]any{"id": price, "currency": "brl", "unit_amount": 19900}},
		}},
	}
}

func TestHandleWebhook_Signature(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "forged")
	assert.ErrorIs(t, err, subscription.ErrInvalidSignature)
	assert.Equal(t, []string{":error"}, f.observer.webhooks)
}

func TestHandleWebhook_SignupCheckout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	payload := event(t, "evt_1", subscription.EventCheckoutCompleted, signupSession("cs_1"))
	require.NoError(t, f.svc.HandleWebhook(ctx, payload, "valid"))

	tn, err := f.tenants.GetBySubdomain(ctx, "newschool")
	require.NoError(t, err)
	assert.Equal(t, "Escola Newschool", tn.Name)
	assert.Equal(t, tenant.StatusActive, tn.Status)
	assert.Equal(t, "starter", tn.Plan)
	assert.Equal(t, 1, f.admins.count())
	assert.Equal(t, tn.ID, f.admins.admins["a@b.com"])

	stored, err := f.tenants.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_new", stored.Billing.CustomerID)
	assert.Equal(t, "stripe_checkout", stored.Metadata.Source)

	t.Run("redelivery of the same event", func(t *testing.T) {
		require.NoError(t, f.svc.HandleWebhook(ctx, payload, "valid"))
		assert.Equal(t, 1, f.admins.count())
		assert.Contains(t, f.observer.webhooks, subscription.EventCheckoutCompleted+":duplicate")
	})

	t.Run("same session under a new event id", func(t *testing.T) {
		again := event(t, "evt_2", subscription.EventCheckoutCompleted, signupSession("cs_1"))
		require.NoError(t, f.svc.HandleWebhook(ctx, again, "valid"))
		assert.Equal(t, 1, f.admins.count())
		entry, ok := f.ledger.Entry("evt_2")
		require.True(t, ok)
		assert.Equal(t, billing.OutcomeIgnored, entry.Outcome)
	})

	entry, ok := f.ledger.Entry("checkout:cs_1")
	require.True(t, ok)
	assert.Equal(t, billing.OutcomeProcessed, entry.Outcome)
	assert.Equal(t, []string{"created"}, f.observer.provs)
}

func TestHandleWebhook_NonSignupCheckoutIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := signupSession("cs_9")
	sess["metadata"] = map[string]string{}
	require.NoError(t, f.svc.HandleWebhook(context.Background(), event(t, "evt_9", subscription.EventCheckoutCompleted, sess), "valid"))

	_, err := f.tenants.GetBySubdomain(context.Background(), "newschool")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	entry, _ := f.ledger.Entry("evt_9")
	assert.Equal(t, billing.OutcomeIgnored, entry.Outcome)
}

func TestHandleWebhook_ProvisioningFailureStillAcknowledged(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.admins.fail = errors.New("mongo down")

	err := f.svc.HandleWebhook(context.Background(), event(t, "evt_1", subscription.EventCheckoutCompleted, signupSession("cs_1")), "valid")
	require.NoError(t, err)

	entry, ok := f.ledger.Entry("evt_1")
	require.True(t, ok)
	assert.Equal(t, billing.OutcomeFailed, entry.Outcome)
	assert.Contains(t, entry.Error, "mongo down")
	assert.Contains(t, f.observer.webhooks, subscription.EventCheckoutCompleted+":error")
	assert.Equal(t, []string{"failed"}, f.observer.provs)
}

func TestHandleWebhook_SubscriptionBeforeCheckout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	created := event(t, "evt_s1", subscription.EventSubscriptionCreated, subscriptionObject("trialing", "price_pro_m"))
	require.NoError(t, f.svc.HandleWebhook(ctx, created, "valid"))
	sub, err := f.subs.FindByStripeID(ctx, "sub_new")
	require.NoError(t, err)
	assert.True(t, sub.TenantID.IsZero())

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_c1", subscription.EventCheckoutCompleted, signupSession("cs_1")), "valid"))

	sub, err = f.subs.FindByStripeID(ctx, "sub_new")
	require.NoError(t, err)
	assert.False(t, sub.TenantID.IsZero())

	stored, err := f.tenants.Get(ctx, sub.TenantID)
	require.NoError(t, err)
	assert.Equal(t, "trialing", stored.Billing.SubscriptionStatus)
	assert.Equal(t, "sub_new", stored.Billing.SubscriptionID)
}

func TestHandleWebhook_SubscriptionLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_c1", subscription.EventCheckoutCompleted, signupSession("cs_1")), "valid"))
	info, err := f.tenants.GetBySubdomain(ctx, "newschool")
	require.NoError(t, err)

	for i, id := range []string{"evt_s1", "evt_s2", "evt_s3"} {
		typ := subscription.EventSubscriptionUpdated
		if i == 0 {
			typ = subscription.EventSubscriptionCreated
		}
		require.NoError(t, f.svc.HandleWebhook(ctx, event(t, id, typ, subscriptionObject("active", "price_starter_m")), "valid"))
	}
	assert.Equal(t, 1, f.subs.Len())

	sub, err := f.subs.FindByStripeID(ctx, "sub_new")
	require.NoError(t, err)
	assert.Equal(t, info.ID, sub.TenantID)
	assert.Equal(t, "starter", sub.Plan)
	assert.Equal(t, "Starter", sub.PlanName)
	assert.Equal(t, int64(19900), sub.PriceMonthly)
	assert.Len(t, sub.PlanHistory, 1)

	t.Run("upgrade changes tenant plan", func(t *testing.T) {
		require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_up", subscription.EventSubscriptionUpdated, subscriptionObject("active", "price_pro_y")), "valid"))
		sub, err := f.subs.FindByStripeID(ctx, "sub_new")
		require.NoError(t, err)
		assert.Equal(t, "professional", sub.Plan)
		assert.Equal(t, int64(19900/12), sub.PriceMonthly)
		require.Len(t, sub.PlanHistory, 2)
		assert.Equal(t, "plan_changed", sub.PlanHistory[1].Reason)

		stored, err := f.tenants.Get(ctx, info.ID)
		require.NoError(t, err)
		assert.Equal(t, "professional", stored.Plan.Type)
		assert.Equal(t, int64(500), stored.Plan.Limits.Students)
	})

	t.Run("payment failed then succeeded", func(t *testing.T) {
		failed := map[string]any{"id": "in_1", "subscription": "sub_new", "next_payment_attempt": fixedNow.AddDate(0, 0, 3).Unix()}
		require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_f1", subscription.EventInvoicePaymentFailed, failed), "valid"))
		sub, err := f.subs.FindByStripeID(ctx, "sub_new")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPastDue, sub.Status)
		require.NotNil(t, sub.NextPaymentAttempt)
		stored, err := f.tenants.Get(ctx, info.ID)
		require.NoError(t, err)
		assert.Equal(t, "past_due", stored.Billing.SubscriptionStatus)

		paid := map[string]any{
			"id":          "in_2",
			"amount_paid": 19900,
			"parent":      map[string]any{"subscription_details": map[string]any{"subscription": "sub_new"}},
		}
		require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_p1", subscription.EventInvoicePaymentSucceeded, paid), "valid"))
		sub, err = f.subs.FindByStripeID(ctx, "sub_new")
		require.NoError(t, err)
		assert.Equal(t, int64(19900), sub.TotalRevenue)
		require.NotNil(t, sub.LastPaymentAt)
		stored, err = f.tenants.Get(ctx, info.ID)
		require.NoError(t, err)
		assert.Equal(t, "active", stored.Billing.SubscriptionStatus)
	})

	t.Run("deleted", func(t *testing.T) {
		require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_d1", subscription.EventSubscriptionDeleted, subscriptionObject("canceled", "price_pro_y")), "valid"))
		sub, err := f.subs.FindByStripeID(ctx, "sub_new")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, sub.Status)
		require.NotNil(t, sub.CanceledAt)
		stored, err := f.tenants.Get(ctx, info.ID)
		require.NoError(t, err)
		assert.Equal(t, "canceled", stored.Billing.SubscriptionStatus)
	})
}

func TestHandleWebhook_UnknownEventIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.NoError(t, f.svc.HandleWebhook(context.Background(), event(t, "evt_x", "customer.created", map[string]any{"id": "cus_1"}), "valid"))
	entry, ok := f.ledger.Entry("evt_x")
	require.True(t, ok)
	assert.Equal(t, billing.OutcomeIgnored, entry.Outcome)
	assert.Equal(t, []string{"customer.created:ignored"}, f.observer.webhooks)
}

func TestHandleWebhook_BillingKeepsSuspension(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_c1", subscription.EventCheckoutCompleted, signupSession("cs_1")), "valid"))
	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_s1", subscription.EventSubscriptionCreated, subscriptionObject("active", "price_starter_m")), "valid"))
	info, err := f.tenants.GetBySubdomain(ctx, "newschool")
	require.NoError(t, err)

	_, err = f.tenants.SetStatus(ctx, info.ID, tenant.StatusSuspended, "abuse")
	require.NoError(t, err)

	paid := map[string]any{
		"id":          "in_1",
		"amount_paid": 19900,
		"parent":      map[string]any{"subscription_details": map[string]any{"subscription": "sub_new"}},
	}
	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_p1", subscription.EventInvoicePaymentSucceeded, paid), "valid"))
	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_s2", subscription.EventSubscriptionUpdated, subscriptionObject("active", "price_starter_m")), "valid"))

	stored, err := f.tenants.Get(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusSuspended, stored.Status)
	assert.Equal(t, "active", stored.Billing.SubscriptionStatus)
}

func TestHandleWebhook_CheckoutActivatesTrialTenant(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	existing, err := f.tenants.Create(ctx, tenantsvc.CreateInput{Name: "Escola Nova", Subdomain: "newschool"})
	require.NoError(t, err)
	require.Equal(t, tenant.StatusTrial, existing.Status)

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_c1", subscription.EventCheckoutCompleted, signupSession("cs_1")), "valid"))

	stored, err := f.tenants.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusActive, stored.Status)
	assert.Equal(t, "cus_new", stored.Billing.CustomerID)
	assert.Equal(t, 1, f.admins.count())
}

func TestHandleWebhook_CheckoutForSubdomainOfAnotherCustomer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	existing, err := f.tenants.Create(ctx, tenantsvc.CreateInput{
		Name:      "Escola Nova",
		Subdomain: "newschool",
		Status:    tenant.StatusActive,
		Billing:   tenantsvc.Billing{CustomerID: "cus_other", SubscriptionID: "sub_other", SubscriptionStatus: "active"},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleWebhook(ctx, event(t, "evt_c1", subscription.EventCheckoutCompleted, signupSession("cs_1")), "valid"))

	entry, ok := f.ledger.Entry("evt_c1")
	require.True(t, ok)
	assert.Equal(t, billing.OutcomeFailed, entry.Outcome)
	assert.Contains(t, entry.Error, tenantsvc.ErrCustomerMismatch.Error())
	assert.Equal(t, 0, f.admins.count())

	stored, err := f.tenants.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_other", stored.Billing.CustomerID)
}
