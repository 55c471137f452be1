package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/sanitizer"
	"github.com/dmitrymomot/leveledu/pkg/subscription"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	tenantsvc "github.com/dmitrymomot/leveledu/svc/tenant"
)

// Webhook metric statuses.
const (
	webhookProcessed = "processed"
	webhookIgnored   = "ignored"
	webhookDuplicate = "duplicate"
	webhookError     = "error"
)

// errIgnored marks an event that needs no side effects.
var errIgnored = errors.New("billing: event ignored")

// HandleWebhook verifies and applies one Stripe delivery. Only a payload
// that fails verification is returned as an error; processing failures are
// logged, counted and recorded in the ledger so Stripe is not asked to
// retry.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	start := s.now()
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		s.observer.ObserveWebhook("", webhookError, time.Since(start))
		return err
	}

	log := s.logger.With(logger.EventID(event.ID), logger.EventType(event.Type))
	if err := s.ledger.Claim(ctx, event.ID, event.Type, s.now().UTC()); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			log.InfoContext(ctx, "webhook already processed")
			s.observer.ObserveWebhook(event.Type, webhookDuplicate, time.Since(start))
			return nil
		}
		log.ErrorContext(ctx, "webhook ledger unavailable", logger.Error(err))
		s.observer.ObserveWebhook(event.Type, webhookError, time.Since(start))
		return nil
	}

	err = s.dispatch(ctx, log, event)
	outcome, status := OutcomeProcessed, webhookProcessed
	switch {
	case errors.Is(err, errIgnored):
		outcome, status, err = OutcomeIgnored, webhookIgnored, nil
	case err != nil:
		outcome, status = OutcomeFailed, webhookError
		log.ErrorContext(ctx, "webhook processing failed", logger.Error(err))
	}
	if cerr := s.ledger.Complete(ctx, event.ID, outcome, err); cerr != nil {
		log.WarnContext(ctx, "webhook ledger update failed", logger.Error(cerr))
	}
	s.observer.ObserveWebhook(event.Type, status, time.Since(start))
	return nil
}

func (s *Service) dispatch(ctx context.Context, log *slog.Logger, event *subscription.WebhookEvent) error {
	switch event.Type {
	case subscription.EventCheckoutCompleted:
		var sess subscription.CheckoutSessionEvent
		if err := event.Decode(&sess); err != nil {
			return err
		}
		return s.onCheckoutCompleted(ctx, log, sess)
	case subscription.EventSubscriptionCreated, subscription.EventSubscriptionUpdated:
		var sub subscription.SubscriptionEvent
		if err := event.Decode(&sub); err != nil {
			return err
		}
		return s.onSubscriptionChanged(ctx, log, sub)
	case subscription.EventSubscriptionDeleted:
		var sub subscription.SubscriptionEvent
		if err := event.Decode(&sub); err != nil {
			return err
		}
		return s.onSubscriptionDeleted(ctx, sub)
	case subscription.EventInvoicePaymentSucceeded:
		var inv subscription.InvoiceEvent
		if err := event.Decode(&inv); err != nil {
			return err
		}
		return s.onPaymentSucceeded(ctx, inv)
	case subscription.EventInvoicePaymentFailed:
		var inv subscription.InvoiceEvent
		if err := event.Decode(&inv); err != nil {
			return err
		}
		return s.onPaymentFailed(ctx, log, inv)
	default:
		return errIgnored
	}
}

func (s *Service) onCheckoutCompleted(ctx context.Context, log *slog.Logger, sess subscription.CheckoutSessionEvent) error {
	if sess.Metadata[MetaSignupFlow] != "true" {
		return errIgnored
	}
	subdomain := sess.Metadata[MetaSubdomain]
	if subdomain == "" {
		return fmt.Errorf("checkout %s: missing %s metadata", sess.ID, MetaSubdomain)
	}

	key := "checkout:" + sess.ID
	if err := s.ledger.Claim(ctx, key, subscription.EventCheckoutCompleted, s.now().UTC()); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			log.InfoContext(ctx, "checkout already provisioned", slog.String("session_id", sess.ID))
			return errIgnored
		}
		return err
	}

	err := s.provision(ctx, log, sess, subdomain)
	outcome := OutcomeProcessed
	if err != nil {
		outcome = OutcomeFailed
		s.observer.ObserveProvisioning("failed")
	}
	if cerr := s.ledger.Complete(ctx, key, outcome, err); cerr != nil {
		log.WarnContext(ctx, "checkout ledger update failed", logger.Error(cerr))
	}
	return err
}

func (s *Service) provision(ctx context.Context, log *slog.Logger, sess subscription.CheckoutSessionEvent, subdomain string) error {
	email := sanitizer.NormalizeEmail(sess.Metadata[MetaAdminEmail])
	if email == "" {
		email = sanitizer.NormalizeEmail(sess.Email())
	}
	if email == "" {
		return fmt.Errorf("checkout %s: no admin email", sess.ID)
	}
	plan := sess.Metadata[MetaPlan]
	if plan == "" {
		plan = "starter"
	}

	billing := tenantsvc.Billing{
		CustomerID:         sess.Customer,
		SubscriptionID:     sess.Subscription,
		SubscriptionStatus: string(subscription.StatusActive),
	}
	var known *subscription.Subscription
	if sess.Subscription != "" {
		sub, err := s.subs.FindByStripeID(ctx, sess.Subscription)
		switch {
		case err == nil:
			known = sub
			billing = billingOf(sub)
		case !errors.Is(err, subscription.ErrSubscriptionNotFound):
			return err
		}
	}

	t, created, err := s.tenants.EnsureForCheckout(ctx, subdomain, plan, billing, email)
	if err != nil {
		return fmt.Errorf("ensure tenant %q: %w", subdomain, err)
	}
	// the subscription event may have arrived before the tenant existed
	if known != nil && known.TenantID != t.ID {
		if err := s.subs.AssignTenant(ctx, known.StripeSubscriptionID, t.ID); err != nil {
			return err
		}
		if known.Plan != "" && known.Plan != t.Plan.Type {
			if _, err := s.tenants.ChangePlan(ctx, t.ID, known.Plan); err != nil {
				return err
			}
		}
	}

	name := sess.Metadata[MetaCustomerName]
	if name == "" {
		name = sess.CustomerDetails.Name
	}
	prov, err := s.admins.ProvisionTenantAdmin(ctx, t.Info(), email, name)
	if err != nil {
		return fmt.Errorf("provision admin for %q: %w", subdomain, err)
	}

	outcome := "existing"
	if created {
		outcome = "created"
	}
	s.observer.ObserveProvisioning(outcome)
	log.InfoContext(ctx, "signup provisioned",
		logger.TenantID(t.ID.Hex()),
		logger.Subdomain(t.Subdomain),
		logger.Plan(t.Plan.Type),
		slog.Bool("tenant_created", created),
		slog.Bool("admin_created", prov.Created),
		slog.Bool("email_sent", prov.EmailSent),
		slog.Bool("password_reset_required", prov.PasswordResetRequired))
	return nil
}

func (s *Service) onSubscriptionChanged(ctx context.Context, log *slog.Logger, ev subscription.SubscriptionEvent) error {
	tenantID, err := s.resolveTenant(ctx, ev)
	if err != nil {
		return err
	}

	snap := Snapshot{
		TenantID:             tenantID,
		StripeCustomerID:     ev.Customer,
		StripeSubscriptionID: ev.ID,
		StripePriceID:        ev.FirstPriceID(),
		Status:               ev.Status,
		CurrentPeriodStart:   ev.PeriodStart(),
		CurrentPeriodEnd:     ev.PeriodEnd(),
		TrialStart:           subscription.Epoch(ev.TrialStart),
		TrialEnd:             subscription.Epoch(ev.TrialEnd),
		CancelAtPeriodEnd:    ev.CancelAtPeriodEnd,
		CanceledAt:           subscription.Epoch(ev.CanceledAt),
	}
	if price, ok := s.prices.Lookup(snap.StripePriceID); ok {
		snap.Plan = price.Plan
		if len(ev.Items.Data) > 0 {
			item := ev.Items.Data[0].Price
			snap.Currency = item.Currency
			snap.PriceMonthly = item.UnitAmount
			if price.Interval == Yearly {
				snap.PriceMonthly = item.UnitAmount / 12
			}
		}
	} else if p := ev.Metadata[MetaPlan]; p != "" {
		snap.Plan = p
	}
	if snap.Plan != "" {
		if plan, err := s.catalog.Get(snap.Plan); err == nil {
			snap.PlanName = plan.Name
		}
	}

	sub, err := s.subs.Upsert(ctx, snap, s.now().UTC())
	if err != nil {
		return err
	}
	if tenantID.IsZero() {
		log.InfoContext(ctx, "subscription stored without tenant", slog.String("subscription_id", ev.ID))
		return nil
	}
	if err := s.tenants.SyncBilling(ctx, tenantID, billingOf(sub)); err != nil {
		return err
	}
	if sub.Plan != "" {
		if _, err := s.tenants.ChangePlan(ctx, tenantID, sub.Plan); err != nil {
			return err
		}
	}
	return nil
}

// resolveTenant finds the tenant of a subscription by its metadata, then by
// the Stripe customer. A zero ID means the tenant does not exist yet.
func (s *Service) resolveTenant(ctx context.Context, ev subscription.SubscriptionEvent) (bson.ObjectID, error) {
	if raw := ev.Metadata[MetaTenantID]; raw != "" {
		if id, err := bson.ObjectIDFromHex(raw); err == nil {
			return id, nil
		}
	}
	if ev.Customer != "" {
		t, err := s.tenants.FindByCustomerID(ctx, ev.Customer)
		switch {
		case err == nil:
			return t.ID, nil
		case !errors.Is(err, tenant.ErrTenantNotFound):
			return bson.NilObjectID, err
		}
	}
	if sub := ev.Metadata[MetaSubdomain]; sub != "" {
		info, err := s.tenants.GetBySubdomain(ctx, sub)
		switch {
		case err == nil:
			return info.ID, nil
		case !errors.Is(err, tenant.ErrTenantNotFound):
			return bson.NilObjectID, err
		}
	}
	return bson.NilObjectID, nil
}

func (s *Service) onSubscriptionDeleted(ctx context.Context, ev subscription.SubscriptionEvent) error {
	if err := s.subs.MarkCanceled(ctx, ev.ID, s.now().UTC()); err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return errIgnored
		}
		return err
	}
	return s.syncTenant(ctx, ev.ID, "")
}

func (s *Service) onPaymentSucceeded(ctx context.Context, inv subscription.InvoiceEvent) error {
	id := inv.SubscriptionID()
	if id == "" {
		return errIgnored
	}
	if err := s.subs.RecordPayment(ctx, id, inv.AmountPaid, s.now().UTC()); err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return errIgnored
		}
		return err
	}
	return s.syncTenant(ctx, id, subscription.StatusActive)
}

func (s *Service) onPaymentFailed(ctx context.Context, log *slog.Logger, inv subscription.InvoiceEvent) error {
	id := inv.SubscriptionID()
	if id == "" {
		return errIgnored
	}
	if err := s.subs.MarkPastDue(ctx, id, subscription.Epoch(inv.NextPaymentAttempt), s.now().UTC()); err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return errIgnored
		}
		return err
	}
	log.WarnContext(ctx, "invoice payment failed",
		slog.String("subscription_id", id),
		slog.String("invoice_id", inv.ID))
	return s.syncTenant(ctx, id, "")
}

// syncTenant copies the stored subscription onto its tenant. A non-empty
// status overrides the stored one, except for trials.
func (s *Service) syncTenant(ctx context.Context, stripeSubscriptionID string, status subscription.Status) error {
	sub, err := s.subs.FindByStripeID(ctx, stripeSubscriptionID)
	if err != nil {
		return err
	}
	if sub.TenantID.IsZero() {
		return nil
	}
	billing := billingOf(sub)
	if status != "" && sub.Status != subscription.StatusTrialing {
		billing.SubscriptionStatus = string(status)
	}
	return s.tenants.SyncBilling(ctx, sub.TenantID, billing)
}
