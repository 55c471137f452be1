package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/sanitizer"
	"github.com/dmitrymomot/leveledu/pkg/subscription"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	"github.com/dmitrymomot/leveledu/svc/auth"
	tenantsvc "github.com/dmitrymomot/leveledu/svc/tenant"
)

// Tenants is the tenant management surface billing needs.
type Tenants interface {
	Get(ctx context.Context, id bson.ObjectID) (*tenantsvc.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*tenant.Info, error)
	FindByCustomerID(ctx context.Context, customerID string) (*tenantsvc.Tenant, error)
	CheckSubdomain(ctx context.Context, raw string) (tenantsvc.Availability, error)
	EnsureForCheckout(ctx context.Context, subdomain, planID string, billing tenantsvc.Billing, adminEmail string) (*tenantsvc.Tenant, bool, error)
	SyncBilling(ctx context.Context, id bson.ObjectID, billing tenantsvc.Billing) error
	ChangePlan(ctx context.Context, id bson.ObjectID, planID string) (bool, error)
}

// Admins provisions the first administrator of a purchased tenant.
type Admins interface {
	ProvisionTenantAdmin(ctx context.Context, info *tenant.Info, email, name string) (*auth.Provisioned, error)
}

// Observer receives webhook and provisioning outcomes.
type Observer interface {
	ObserveWebhook(eventType, status string, elapsed time.Duration)
	ObserveProvisioning(outcome string)
}

// Deps are the collaborators of Service.
type Deps struct {
	Provider      subscription.BillingProvider
	Subscriptions Subscriptions
	Ledger        Ledger
	Tenants       Tenants
	Admins        Admins
	Catalog       *limits.Catalog
}

// Service implements billing operations and the webhook reconciler.
type Service struct {
	cfg      Config
	prices   *PriceTable
	provider subscription.BillingProvider
	subs     Subscriptions
	ledger   Ledger
	tenants  Tenants
	admins   Admins
	catalog  *limits.Catalog
	observer Observer
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithPrices replaces the price table built from Config.
func WithPrices(p *PriceTable) Option {
	return func(s *Service) {
		if p != nil {
			s.prices = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(cfg Config, deps Deps, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		prices:   cfg.Prices(),
		provider: deps.Provider,
		subs:     deps.Subscriptions,
		ledger:   deps.Ledger,
		tenants:  deps.Tenants,
		admins:   deps.Admins,
		catalog:  deps.Catalog,
		observer: nopObserver{},
		now:      time.Now,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plans returns the purchasable plans.
func (s *Service) Plans() []limits.Plan {
	return s.catalog.Public()
}

// CheckoutInput starts a signup checkout for a new school.
type CheckoutInput struct {
	Plan            string   `json:"plan" validate:"required"`
	Interval        Interval `json:"interval" validate:"required,oneof=monthly yearly"`
	Email           string   `json:"email" validate:"required,email"`
	TenantSubdomain string   `json:"tenantSubdomain" validate:"required"`
	CustomerName    string   `json:"customerName,omitempty" validate:"omitempty,max=100"`
}

// Signup checkout metadata keys.
const (
	MetaSignupFlow   = "signupFlow"
	MetaSubdomain    = "tenantSubdomain"
	MetaPlan         = "plan"
	MetaInterval     = "interval"
	MetaAdminEmail   = "adminEmail"
	MetaCustomerName = "customerName"
	MetaTenantID     = "tenantId"
)

// CreateCheckout creates a Stripe Checkout session for a signup. The
// subdomain must still be available.
func (s *Service) CreateCheckout(ctx context.Context, in CheckoutInput) (*subscription.CheckoutLink, error) {
	plan, err := s.catalog.Get(in.Plan)
	if err != nil || !plan.Public {
		return nil, ErrInvalidPlan
	}
	if !in.Interval.Valid() {
		return nil, ErrInvalidInterval
	}
	priceID, err := s.prices.PriceID(plan.ID, in.Interval)
	if err != nil {
		return nil, err
	}

	avail, err := s.tenants.CheckSubdomain(ctx, in.TenantSubdomain)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, fmt.Errorf("%w: %s", ErrSubdomainUnavailable, avail.Reason)
	}

	email := sanitizer.NormalizeEmail(in.Email)
	link, err := s.provider.CreateCheckoutLink(ctx, subscription.CheckoutRequest{
		PriceID:    priceID,
		Email:      email,
		SuccessURL: s.cfg.successURL(),
		CancelURL:  s.cfg.cancelURL(),
		TrialDays:  s.cfg.TrialDays,
		Metadata: map[string]string{
			MetaSignupFlow:   "true",
			MetaSubdomain:    avail.Subdomain,
			MetaPlan:         plan.ID,
			MetaInterval:     string(in.Interval),
			MetaAdminEmail:   email,
			MetaCustomerName: strings.TrimSpace(in.CustomerName),
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "signup checkout created",
		logger.Subdomain(avail.Subdomain),
		logger.Plan(plan.ID),
		slog.String("session_id", link.SessionID))
	return link, nil
}

// SessionStatus reports a checkout session back to the signup page.
type SessionStatus struct {
	SessionID       string `json:"sessionId"`
	Status          string `json:"status"`
	PaymentStatus   string `json:"paymentStatus"`
	CustomerEmail   string `json:"customerEmail,omitempty"`
	TenantSubdomain string `json:"tenantSubdomain,omitempty"`
	Plan            string `json:"plan,omitempty"`
	TenantReady     bool   `json:"tenantReady"`
	LoginURL        string `json:"loginUrl,omitempty"`
}

// VerifySession reads a checkout session and reports whether its tenant
// has been provisioned yet.
func (s *Service) VerifySession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}
	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, errors.Join(ErrSessionNotFound, err)
	}
	out := &SessionStatus{
		SessionID:       sess.ID,
		Status:          sess.Status,
		PaymentStatus:   sess.PaymentStatus,
		CustomerEmail:   sess.CustomerEmail,
		TenantSubdomain: sess.Metadata[MetaSubdomain],
		Plan:            sess.Metadata[MetaPlan],
	}
	if out.TenantSubdomain != "" {
		_, err := s.tenants.GetBySubdomain(ctx, out.TenantSubdomain)
		switch {
		case err == nil:
			out.TenantReady = true
			out.LoginURL = s.cfg.LoginURL()
		case !errors.Is(err, tenant.ErrTenantNotFound):
			return nil, err
		}
	}
	return out, nil
}

// Overview is the billing state shown to tenant admins.
type Overview struct {
	Subscription       *subscription.Subscription `json:"subscription"`
	Plan               limits.Plan                `json:"plan"`
	TenantStatus       tenant.Status              `json:"tenantStatus"`
	Billing            tenantsvc.Billing          `json:"billing"`
	TrialDaysRemaining int                        `json:"trialDaysRemaining"`
}

// Overview returns the tenant's latest subscription, or nil when it never
// subscribed, with its plan.
func (s *Service) Overview(ctx context.Context, tenantID bson.ObjectID) (*Overview, error) {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	plan, err := s.catalog.Get(t.Plan.Type)
	if err != nil {
		if plan, err = s.catalog.Get(limits.DefaultPlanID); err != nil {
			return nil, err
		}
	}
	out := &Overview{Plan: plan, TenantStatus: t.Status, Billing: t.Billing}

	sub, err := s.subs.Latest(ctx, tenantID)
	switch {
	case err == nil:
		out.Subscription = sub
		out.TrialDaysRemaining = sub.TrialDaysRemainingAt(s.now())
	case !errors.Is(err, subscription.ErrSubscriptionNotFound):
		return nil, err
	}
	return out, nil
}

// Portal returns a Stripe billing portal link for the tenant's customer.
func (s *Service) Portal(ctx context.Context, tenantID bson.ObjectID) (*subscription.PortalLink, error) {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if t.Billing.CustomerID == "" {
		return nil, ErrNoBillingAccount
	}
	return s.provider.GetCustomerPortalLink(ctx, t.Billing.CustomerID, s.cfg.billingURL())
}

// CancelInput cancels the tenant's subscription now or at period end.
type CancelInput struct {
	Reason      string `json:"reason,omitempty" validate:"max=500"`
	Immediately bool   `json:"immediately"`
}

// Cancel cancels the tenant's latest subscription at Stripe and mirrors the
// result locally.
func (s *Service) Cancel(ctx context.Context, tenantID bson.ObjectID, in CancelInput) (*subscription.Subscription, error) {
	sub, err := s.subs.Latest(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub.Status.Terminated() || (sub.CancelAtPeriodEnd && !in.Immediately) {
		return nil, ErrNotCancelable
	}
	if err := s.provider.CancelSubscription(ctx, sub.StripeSubscriptionID, in.Reason, in.Immediately); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if in.Immediately {
		if err := s.subs.MarkCanceled(ctx, sub.StripeSubscriptionID, now); err != nil {
			return nil, err
		}
	}
	if err := s.subs.ScheduleCancel(ctx, sub.StripeSubscriptionID, !in.Immediately, in.Reason, now); err != nil {
		return nil, err
	}
	updated, err := s.subs.FindByStripeID(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.tenants.SyncBilling(ctx, tenantID, billingOf(updated)); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "subscription canceled",
		logger.TenantID(tenantID.Hex()),
		slog.Bool("immediately", in.Immediately))
	return updated, nil
}

// Reactivate undoes a cancellation scheduled for the period end.
func (s *Service) Reactivate(ctx context.Context, tenantID bson.ObjectID) (*subscription.Subscription, error) {
	sub, err := s.subs.Latest(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !sub.CancelAtPeriodEnd || sub.Status.Terminated() {
		return nil, ErrNotReactivatable
	}
	if err := s.provider.ReactivateSubscription(ctx, sub.StripeSubscriptionID); err != nil {
		return nil, err
	}
	if err := s.subs.ScheduleCancel(ctx, sub.StripeSubscriptionID, false, "", s.now().UTC()); err != nil {
		return nil, err
	}
	updated, err := s.subs.FindByStripeID(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.tenants.SyncBilling(ctx, tenantID, billingOf(updated)); err != nil {
		return nil, err
	}
	return updated, nil
}

func billingOf(sub *subscription.Subscription) tenantsvc.Billing {
	return tenantsvc.Billing{
		CustomerID:         sub.StripeCustomerID,
		SubscriptionID:     sub.StripeSubscriptionID,
		SubscriptionStatus: string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
}

type nopObserver struct{}

func (nopObserver) ObserveWebhook(string, string, time.Duration) {}
func (nopObserver) ObserveProvisioning(string)                   {}
