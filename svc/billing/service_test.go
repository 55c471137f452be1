package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/subscription"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	"github.com/dmitrymomot/leveledu/svc/auth"
	"github.com/dmitrymomot/leveledu/svc/billing"
	tenantsvc "github.com/dmitrymomot/leveledu/svc/tenant"
)

var fixedNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

// fakeProvider verifies a webhook when the signature is "valid" and the
// payload is {"id","type","data"}.
type fakeProvider struct {
	mu        sync.Mutex
	checkouts []subscription.CheckoutRequest
	sessions  map[string]*subscription.CheckoutSession
	canceled  map[string]bool
	resumed   []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions: make(map[string]*subscription.CheckoutSession),
		canceled: make(map[string]bool),
	}
}

func (p *fakeProvider) CreateCheckoutLink(_ context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkouts = append(p.checkouts, req)
	return &subscription.CheckoutLink{SessionID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (p *fakeProvider) GetCheckoutSession(_ context.Context, id string) (*subscription.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	return s, nil
}

func (p *fakeProvider) GetCustomerPortalLink(_ context.Context, customerID, returnURL string) (*subscription.PortalLink, error) {
	return &subscription.PortalLink{URL: "https://billing.stripe.test/" + customerID + "?return=" + returnURL}, nil
}

func (p *fakeProvider) CancelSubscription(_ context.Context, id, _ string, immediately bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceled[id] = immediately
	return nil
}

func (p *fakeProvider) ReactivateSubscription(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumed = append(p.resumed, id)
	return nil
}

func (p *fakeProvider) ParseWebhook(payload []byte, signature string) (*subscription.WebhookEvent, error) {
	if signature != "valid" {
		return nil, subscription.ErrInvalidSignature
	}
	var ev struct {
		ID   string          `json:"id"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &subscription.WebhookEvent{ID: ev.ID, Type: ev.Type, Data: ev.Data}, nil
}

// fakeAdmins provisions one admin per email and tenant.
type fakeAdmins struct {
	mu     sync.Mutex
	admins map[string]bson.ObjectID
	fail   error
}

func (a *fakeAdmins) ProvisionTenantAdmin(_ context.Context, info *tenant.Info, email, name string) (*auth.Provisioned, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return nil, a.fail
	}
	if a.admins == nil {
		a.admins = make(map[string]bson.ObjectID)
	}
	if _, ok := a.admins[email]; ok {
		return &auth.Provisioned{User: &auth.User{Email: email, TenantID: info.ID}}, nil
	}
	a.admins[email] = info.ID
	return &auth.Provisioned{User: &auth.User{Email: email, Name: name, TenantID: info.ID}, Created: true, EmailSent: true}, nil
}

func (a *fakeAdmins) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.admins)
}

type recordingObserver struct {
	mu       sync.Mutex
	webhooks []string
	provs    []string
}

func (o *recordingObserver) ObserveWebhook(eventType, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.webhooks = append(o.webhooks, eventType+":"+status)
}

func (o *recordingObserver) ObserveProvisioning(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.provs = append(o.provs, outcome)
}

type fixture struct {
	svc      *billing.Service
	provider *fakeProvider
	subs     *billing.MemorySubscriptions
	ledger   *billing.MemoryLedger
	tenants  *tenantsvc.Service
	repo     *tenantsvc.MemoryRepository
	admins   *fakeAdmins
	observer *recordingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := limits.MustDefaultCatalog()
	repo := tenantsvc.NewMemoryRepository()
	f := &fixture{
		provider: newFakeProvider(),
		subs:     billing.NewMemorySubscriptions(),
		ledger:   billing.NewMemoryLedger(),
		repo:     repo,
		tenants:  tenantsvc.NewService(repo, catalog, tenantsvc.WithClock(func() time.Time { return fixedNow })),
		admins:   &fakeAdmins{},
		observer: &recordingObserver{},
	}
	cfg := billing.Config{
		FrontendURL:         "https://app.leveledu.test/",
		TrialDays:           7,
		StarterMonthly:      "price_starter_m",
		ProfessionalMonthly: "price_pro_m",
		ProfessionalYearly:  "price_pro_y",
	}
	f.svc = billing.NewService(cfg, billing.Deps{
		Provider:      f.provider,
		Subscriptions: f.subs,
		Ledger:        f.ledger,
		Tenants:       f.tenants,
		Admins:        f.admins,
		Catalog:       catalog,
	},
		billing.WithObserver(f.observer),
		billing.WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

func TestService_CreateCheckout(t *testing.T) {
	t.Parallel()

	t.Run("builds signup metadata", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		link, err := f.svc.CreateCheckout(context.Background(), billing.CheckoutInput{
			Plan:            "professional",
			Interval:        billing.Yearly,
			Email:           " Owner@School.com ",
			TenantSubdomain: "NewSchool",
			CustomerName:    "Maria",
		})
		require.NoError(t, err)
		assert.Equal(t, "cs_test_1", link.SessionID)

		require.Len(t, f.provider.checkouts, 1)
		req := f.provider.checkouts[0]
		assert.Equal(t, "price_pro_y", req.PriceID)
		assert.Equal(t, "owner@school.com", req.Email)
		assert.Equal(t, int64(7), req.TrialDays)
		assert.Equal(t, "https://app.leveledu.test/signup/success?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
		assert.Equal(t, "https://app.leveledu.test/pricing", req.CancelURL)
		assert.Equal(t, map[string]string{
			"signupFlow":      "true",
			"tenantSubdomain": "newschool",
			"plan":            "professional",
			"interval":        "yearly",
			"adminEmail":      "owner@school.com",
			"customerName":    "Maria",
		}, req.Metadata)
	})

	t.Run("rejects private plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.CreateCheckout(context.Background(), billing.CheckoutInput{
			Plan: "trial", Interval: billing.Monthly, Email: "a@b.com", TenantSubdomain: "escola",
		})
		assert.ErrorIs(t, err, billing.ErrInvalidPlan)
	})

	t.Run("price not configured", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.CreateCheckout(context.Background(), billing.CheckoutInput{
			Plan: "growth", Interval: billing.Monthly, Email: "a@b.com", TenantSubdomain: "escola",
		})
		assert.ErrorIs(t, err, billing.ErrPriceNotConfigured)
	})

	t.Run("subdomain taken", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.tenants.Create(context.Background(), tenantsvc.CreateInput{Name: "Escola", Subdomain: "escola"})
		require.NoError(t, err)

		_, err = f.svc.CreateCheckout(context.Background(), billing.CheckoutInput{
			Plan: "starter", Interval: billing.Monthly, Email: "a@b.com", TenantSubdomain: "escola",
		})
		assert.ErrorIs(t, err, billing.ErrSubdomainUnavailable)
		assert.Empty(t, f.provider.checkouts)
	})
}

func TestService_VerifySession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.provider.sessions["cs_1"] = &subscription.CheckoutSession{
		ID:            "cs_1",
		Status:        "complete",
		PaymentStatus: "paid",
		Metadata:      map[string]string{"tenantSubdomain": "newschool", "plan": "starter"},
	}

	st, err := f.svc.VerifySession(ctx, "cs_1")
	require.NoError(t, err)
	assert.False(t, st.TenantReady)
	assert.Empty(t, st.LoginURL)

	_, err = f.tenants.Create(ctx, tenantsvc.CreateInput{Name: "New", Subdomain: "newschool"})
	require.NoError(t, err)

	st, err = f.svc.VerifySession(ctx, "cs_1")
	require.NoError(t, err)
	assert.True(t, st.TenantReady)
	assert.Equal(t, "https://app.leveledu.test/login", st.LoginURL)
	assert.Equal(t, "starter", st.Plan)

	_, err = f.svc.VerifySession(ctx, "cs_missing")
	assert.ErrorIs(t, err, billing.ErrSessionNotFound)
}

func seedSubscribedTenant(t *testing.T, f *fixture, status subscription.Status) *tenantsvc.Tenant {
	t.Helper()
	ctx := context.Background()
	tn, err := f.tenants.Create(ctx, tenantsvc.CreateInput{Name: "Escola", Subdomain: "escola", Plan: "starter", Status: tenant.StatusActive})
	require.NoError(t, err)
	require.NoError(t, f.tenants.SyncBilling(ctx, tn.ID, tenantsvc.Billing{CustomerID: "cus_1", SubscriptionID: "sub_1", SubscriptionStatus: string(status)}))
	end := fixedNow.AddDate(0, 0, 3)
	f.subs.Put(subscription.Subscription{
		TenantID:             tn.ID,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Plan:                 "starter",
		Status:               status,
		TrialEnd:             &end,
		CreatedAt:            fixedNow.Add(-time.Hour),
	})
	return tn
}

func TestService_Overview(t *testing.T) {
	t.Parallel()

	t.Run("with trial subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tn := seedSubscribedTenant(t, f, subscription.StatusTrialing)

		ov, err := f.svc.Overview(context.Background(), tn.ID)
		require.NoError(t, err)
		require.NotNil(t, ov.Subscription)
		assert.Equal(t, "starter", ov.Plan.ID)
		assert.Equal(t, 3, ov.TrialDaysRemaining)
		assert.Equal(t, "cus_1", ov.Billing.CustomerID)
	})

	t.Run("never subscribed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tn, err := f.tenants.Create(context.Background(), tenantsvc.CreateInput{Name: "Escola", Subdomain: "escola"})
		require.NoError(t, err)

		ov, err := f.svc.Overview(context.Background(), tn.ID)
		require.NoError(t, err)
		assert.Nil(t, ov.Subscription)
		assert.Equal(t, "trial", ov.Plan.ID)
		assert.Equal(t, tenant.StatusTrial, ov.TenantStatus)
	})
}

func TestService_Portal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	plain, err := f.tenants.Create(ctx, tenantsvc.CreateInput{Name: "Plain", Subdomain: "plain"})
	require.NoError(t, err)
	_, err = f.svc.Portal(ctx, plain.ID)
	assert.ErrorIs(t, err, billing.ErrNoBillingAccount)

	tn := seedSubscribedTenant(t, f, subscription.StatusActive)
	link, err := f.svc.Portal(ctx, tn.ID)
	require.NoError(t, err)
	assert.Contains(t, link.URL, "cus_1")
	assert.Contains(t, link.URL, "https://app.leveledu.test/admin/billing")
}

func TestService_CancelAndReactivate(t *testing.T) {
	t.Parallel()

	t.Run("at period end then reactivate", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		tn := seedSubscribedTenant(t, f, subscription.StatusActive)

		sub, err := f.svc.Cancel(ctx, tn.ID, billing.CancelInput{Reason: "too expensive"})
		require.NoError(t, err)
		assert.True(t, sub.CancelAtPeriodEnd)
		assert.Equal(t, "too expensive", sub.CancellationReason)
		assert.False(t, f.provider.canceled["sub_1"])

		stored, err := f.tenants.Get(ctx, tn.ID)
		require.NoError(t, err)
		assert.True(t, stored.Billing.CancelAtPeriodEnd)

		_, err = f.svc.Cancel(ctx, tn.ID, billing.CancelInput{})
		assert.ErrorIs(t, err, billing.ErrNotCancelable)

		sub, err = f.svc.Reactivate(ctx, tn.ID)
		require.NoError(t, err)
		assert.False(t, sub.CancelAtPeriodEnd)
		assert.Equal(t, []string{"sub_1"}, f.provider.resumed)

		_, err = f.svc.Reactivate(ctx, tn.ID)
		assert.ErrorIs(t, err, billing.ErrNotReactivatable)
	})

	t.Run("immediately", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		tn := seedSubscribedTenant(t, f, subscription.StatusActive)

		sub, err := f.svc.Cancel(ctx, tn.ID, billing.CancelInput{Immediately: true})
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, sub.Status)
		require.NotNil(t, sub.CanceledAt)
		assert.True(t, f.provider.canceled["sub_1"])

		stored, err := f.tenants.Get(ctx, tn.ID)
		require.NoError(t, err)
		assert.Equal(t, "canceled", stored.Billing.SubscriptionStatus)
	})

	t.Run("no subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.Cancel(context.Background(), bson.NewObjectID(), billing.CancelInput{})
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})
}
