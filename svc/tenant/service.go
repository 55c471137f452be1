package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/sanitizer"
	"github.com/dmitrymomot/leveledu/pkg/slug"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// StatsCounters count the documents summarized in Tenant.Stats. Nil
// counters report zero.
type StatsCounters struct {
	Users    limits.Counter
	Classes  limits.Counter
	Missions limits.Counter
}

// Service implements tenant management.
type Service struct {
	repo     Repository
	catalog  *limits.Catalog
	cache    tenant.Cache
	counters StatsCounters
	observe  func(map[tenant.Status]int64)
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

// WithCache sets the resolver cache invalidated on writes.
func WithCache(c tenant.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithStatsCounters(c StatsCounters) Option {
	return func(s *Service) { s.counters = c }
}

// WithStatusObserver receives per-status tenant counts after every status
// change, typically to feed a gauge.
func WithStatusObserver(fn func(map[tenant.Status]int64)) Option {
	return func(s *Service) { s.observe = fn }
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

func NewService(repo Repository, catalog *limits.Catalog, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		catalog: catalog,
		cache:   tenant.NopCache{},
		now:     time.Now,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetByID implements tenant.Provider.
func (s *Service) GetByID(ctx context.Context, id bson.ObjectID) (*tenant.Info, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Info(), nil
}

// GetBySubdomain implements tenant.Provider.
func (s *Service) GetBySubdomain(ctx context.Context, subdomain string) (*tenant.Info, error) {
	t, err := s.repo.FindBySubdomain(ctx, strings.ToLower(subdomain))
	if err != nil {
		return nil, err
	}
	return t.Info(), nil
}

// PlanOf implements limits.PlanResolver.
func (s *Service) PlanOf(ctx context.Context, id bson.ObjectID) (string, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return t.Plan.Type, nil
}

// Get returns the full tenant document.
func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*Tenant, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByCustomerID looks a tenant up by its Stripe customer.
func (s *Service) FindByCustomerID(ctx context.Context, customerID string) (*Tenant, error) {
	return s.repo.FindByCustomerID(ctx, customerID)
}

// CreateInput describes a new tenant.
type CreateInput struct {
	Name      string        `json:"name" validate:"required,min=2,max=100"`
	Subdomain string        `json:"subdomain" validate:"required"`
	Plan      string        `json:"plan,omitempty"`
	Contact   Contact       `json:"contact"`
	Source    string        `json:"-"`
	Status    tenant.Status `json:"-"`
	Billing   Billing       `json:"-"`
}

// Create registers a tenant. The subdomain is lowercased before it is
// validated. New tenants start in trial unless Status says otherwise, with
// the trial length taken from the trial plan.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Tenant, error) {
	sub := strings.ToLower(strings.TrimSpace(in.Subdomain))
	if err := slug.ValidateSubdomain(sub); err != nil {
		return nil, err
	}

	planID := in.Plan
	if planID == "" {
		planID = limits.DefaultPlanID
	}
	plan, err := s.catalog.Get(planID)
	if err != nil {
		return nil, errors.Join(ErrInvalidPlan, err)
	}

	status := in.Status
	if status == "" {
		status = tenant.StatusTrial
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	now := s.now().UTC()
	var trialEnds *time.Time
	if status == tenant.StatusTrial {
		trial, err := s.catalog.Get(limits.DefaultPlanID)
		if err != nil {
			return nil, err
		}
		end := trial.TrialEndsAt(now)
		trialEnds = &end
	}

	t := &Tenant{
		Name:      cleanName(in.Name),
		Subdomain: sub,
		Status:    status,
		Plan: PlanInfo{
			Type:        plan.ID,
			Limits:      plan.Limits,
			TrialEndsAt: trialEnds,
		},
		Branding:  DefaultBranding(),
		Billing:   in.Billing,
		Contact:   in.Contact,
		Settings:  DefaultSettings(),
		Metadata:  Metadata{Source: in.Source},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t.Name == "" {
		t.Name = DefaultName(sub)
	}
	t.Contact.AdminEmail = sanitizer.NormalizeEmail(t.Contact.AdminEmail)

	if err := s.repo.Insert(ctx, t); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "tenant created",
		logger.TenantID(t.ID.Hex()),
		logger.Subdomain(t.Subdomain),
		logger.Plan(t.Plan.Type))
	s.refreshStatusCounts(ctx)
	return t, nil
}

// DefaultName is the display name given to tenants created without one.
func DefaultName(subdomain string) string {
	return "Escola " + slug.Humanize(subdomain)
}

// Availability is the answer to a subdomain check.
type Availability struct {
	Subdomain string `json:"subdomain"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// CheckSubdomain reports whether raw can be claimed. Format problems are
// reported in Reason rather than as errors.
func (s *Service) CheckSubdomain(ctx context.Context, raw string) (Availability, error) {
	sub := strings.ToLower(strings.TrimSpace(raw))
	out := Availability{Subdomain: sub}

	switch err := slug.ValidateSubdomain(sub); {
	case errors.Is(err, slug.ErrSubdomainReserved):
		out.Reason = "reserved"
		return out, nil
	case err != nil:
		out.Reason = "invalid"
		return out, nil
	}

	_, err := s.repo.FindBySubdomain(ctx, sub)
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		out.Available = true
		return out, nil
	case err != nil:
		return out, err
	}
	out.Reason = "taken"
	return out, nil
}

// Public returns the public view of an operational tenant.
func (s *Service) Public(ctx context.Context, subdomain string) (*PublicView, error) {
	t, err := s.repo.FindBySubdomain(ctx, strings.ToLower(subdomain))
	if err != nil {
		return nil, err
	}
	if !t.Status.Operational() {
		return nil, tenant.ErrTenantSuspended
	}
	v := t.Public()
	return &v, nil
}

// ListResult is a page of tenants.
type ListResult struct {
	Tenants    []Tenant `json:"tenants"`
	Total      int64    `json:"totalItems"`
	Page       int64    `json:"currentPage"`
	Limit      int64    `json:"itemsPerPage"`
	TotalPages int64    `json:"totalPages"`
}

func (s *Service) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	f = f.normalized()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Tenants:    items,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}, nil
}

// UpdateInput is a partial update; nil fields are left unchanged. The
// subdomain is immutable.
type UpdateInput struct {
	Name         *string   `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	CustomDomain *string   `json:"customDomain,omitempty" validate:"omitempty,fqdn"`
	Contact      *Contact  `json:"contact,omitempty"`
	Settings     *Settings `json:"settings,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	Onboarding   *bool     `json:"onboardingCompleted,omitempty"`
}

func (s *Service) Update(ctx context.Context, id bson.ObjectID, in UpdateInput) (*Tenant, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		t.Name = cleanName(*in.Name)
	}
	if in.CustomDomain != nil {
		t.CustomDomain = strings.ToLower(strings.TrimSpace(*in.CustomDomain))
	}
	if in.Contact != nil {
		t.Contact = *in.Contact
		t.Contact.AdminEmail = sanitizer.NormalizeEmail(t.Contact.AdminEmail)
	}
	if in.Settings != nil {
		t.Settings = *in.Settings
	}
	if in.Notes != nil {
		t.Metadata.Notes = *in.Notes
	}
	if in.Onboarding != nil {
		t.Metadata.OnboardingCompleted = *in.Onboarding
	}
	if err := s.repo.Replace(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, t)
	return t, nil
}

// BrandingInput carries the branding fields; empty fields are kept.
type BrandingInput struct {
	Logo           string `json:"logo,omitempty" validate:"omitempty,url"`
	PrimaryColor   string `json:"primaryColor,omitempty" validate:"omitempty,hexcolor6"`
	SecondaryColor string `json:"secondaryColor,omitempty" validate:"omitempty,hexcolor6"`
	AccentColor    string `json:"accentColor,omitempty" validate:"omitempty,hexcolor6"`
	Favicon        string `json:"favicon,omitempty" validate:"omitempty,url"`
	CustomCSS      string `json:"customCSS,omitempty" validate:"max=20000"`
}

func (s *Service) UpdateBranding(ctx context.Context, id bson.ObjectID, in BrandingInput) (*Tenant, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b := &t.Branding
	for dst, src := range map[*string]string{
		&b.Logo:           in.Logo,
		&b.PrimaryColor:   in.PrimaryColor,
		&b.SecondaryColor: in.SecondaryColor,
		&b.AccentColor:    in.AccentColor,
		&b.Favicon:        in.Favicon,
		&b.CustomCSS:      sanitizer.CSS(in.CustomCSS),
	} {
		if src != "" {
			*dst = src
		}
	}
	if err := s.repo.Replace(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetStatus changes the tenant status. The reason is kept in metadata and
// cleared when the tenant becomes operational again.
func (s *Service) SetStatus(ctx context.Context, id bson.ObjectID, status tenant.Status, reason string) (*Tenant, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if status.Operational() {
		reason = ""
	}
	if err := s.repo.UpdateStatus(ctx, id, status, reason); err != nil {
		return nil, err
	}
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, t)
	s.logger.InfoContext(ctx, "tenant status changed",
		logger.TenantID(id.Hex()),
		slog.String("status", string(status)),
		slog.String("reason", reason))
	s.refreshStatusCounts(ctx)
	return t, nil
}

// RefreshStats recounts users, classes and missions in parallel.
func (s *Service) RefreshStats(ctx context.Context, id bson.ObjectID) (*Stats, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	var stats Stats
	g, gctx := errgroup.WithContext(ctx)
	for dst, counter := range map[*int64]limits.Counter{
		&stats.TotalUsers:    s.counters.Users,
		&stats.TotalClasses:  s.counters.Classes,
		&stats.TotalMissions: s.counters.Missions,
	} {
		if counter == nil {
			continue
		}
		g.Go(func() error {
			n, err := counter.Count(gctx, id)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("refresh tenant stats: %w", err)
	}

	now := s.now().UTC()
	stats.LastActivity = &now
	if err := s.repo.UpdateStats(ctx, id, stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Metrics summarizes a tenant for the super-admin dashboard.
type Metrics struct {
	TenantID           bson.ObjectID `json:"tenantId"`
	Status             tenant.Status `json:"status"`
	Plan               string        `json:"plan"`
	Stats              Stats         `json:"stats"`
	Billing            Billing       `json:"billing"`
	TrialDaysRemaining int           `json:"trialDaysRemaining"`
	AgeDays            int           `json:"ageDays"`
}

// Metrics refreshes the stats and returns the summary.
func (s *Service) Metrics(ctx context.Context, id bson.ObjectID) (*Metrics, error) {
	stats, err := s.RefreshStats(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	m := &Metrics{
		TenantID: t.ID,
		Status:   t.Status,
		Plan:     t.Plan.Type,
		Stats:    *stats,
		Billing:  t.Billing,
		AgeDays:  int(now.Sub(t.CreatedAt) / (24 * time.Hour)),
	}
	if t.Status == tenant.StatusTrial && t.Plan.TrialEndsAt != nil && t.Plan.TrialEndsAt.After(now) {
		m.TrialDaysRemaining = int((t.Plan.TrialEndsAt.Sub(now) + 24*time.Hour - 1) / (24 * time.Hour))
	}
	return m, nil
}

// SyncBilling stores the Stripe snapshot. A paid subscription promotes a
// trial tenant to active; suspended and inactive tenants keep their status,
// which only the status endpoint changes.
func (s *Service) SyncBilling(ctx context.Context, id bson.ObjectID, billing Billing) error {
	if err := s.repo.UpdateBilling(ctx, id, billing); err != nil {
		return err
	}
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if (billing.SubscriptionStatus == "active" || billing.SubscriptionStatus == "trialing") && t.Status == tenant.StatusTrial {
		if err := s.repo.UpdateStatus(ctx, id, tenant.StatusActive, ""); err != nil {
			return err
		}
	}
	s.invalidate(ctx, t)
	return nil
}

// ChangePlan switches the tenant to planID and copies its limits. It
// reports whether the plan actually changed.
func (s *Service) ChangePlan(ctx context.Context, id bson.ObjectID, planID string) (bool, error) {
	plan, err := s.catalog.Get(planID)
	if err != nil {
		return false, errors.Join(ErrInvalidPlan, err)
	}
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if t.Plan.Type == plan.ID {
		return false, nil
	}
	info := PlanInfo{Type: plan.ID, Limits: plan.Limits}
	if err := s.repo.UpdatePlan(ctx, id, info); err != nil {
		return false, err
	}
	s.invalidate(ctx, t)
	s.logger.InfoContext(ctx, "tenant plan changed",
		logger.TenantID(id.Hex()),
		slog.String("from", t.Plan.Type),
		logger.Plan(plan.ID))
	return true, nil
}

// EnsureForCheckout returns the tenant owning subdomain, creating an
// active one on the plan bought at checkout when none exists. created
// reports whether a tenant was inserted. A tenant billed to another Stripe
// customer yields ErrCustomerMismatch.
func (s *Service) EnsureForCheckout(ctx context.Context, subdomain, planID string, billing Billing, adminEmail string) (t *Tenant, created bool, err error) {
	sub := strings.ToLower(strings.TrimSpace(subdomain))
	t, err = s.repo.FindBySubdomain(ctx, sub)
	switch {
	case err == nil:
		t, err = s.adopt(ctx, t, billing)
		return t, false, err
	case !errors.Is(err, tenant.ErrTenantNotFound):
		return nil, false, err
	}

	t, err = s.Create(ctx, CreateInput{
		Name:      DefaultName(sub),
		Subdomain: sub,
		Plan:      planID,
		Status:    tenant.StatusActive,
		Billing:   billing,
		Contact:   Contact{AdminEmail: adminEmail},
		Source:    "stripe_checkout",
	})
	if errors.Is(err, ErrSubdomainTaken) {
		// lost a race with a concurrent delivery
		if t, err = s.repo.FindBySubdomain(ctx, sub); err != nil {
			return nil, false, err
		}
		t, err = s.adopt(ctx, t, billing)
		return t, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// adopt attaches a checkout's billing to an existing tenant that has none.
func (s *Service) adopt(ctx context.Context, t *Tenant, billing Billing) (*Tenant, error) {
	if billing.CustomerID == "" {
		return t, nil
	}
	switch t.Billing.CustomerID {
	case billing.CustomerID:
		return t, nil
	case "":
		if err := s.SyncBilling(ctx, t.ID, billing); err != nil {
			return nil, err
		}
		t.Billing = billing
		return t, nil
	default:
		s.logger.WarnContext(ctx, "checkout for a subdomain billed to another customer",
			logger.TenantID(t.ID.Hex()),
			logger.Subdomain(t.Subdomain),
			slog.String("customer_id", billing.CustomerID))
		return nil, ErrCustomerMismatch
	}
}

// ReportStatusCounts pushes the current per-status counts to the observer.
func (s *Service) ReportStatusCounts(ctx context.Context) {
	s.refreshStatusCounts(ctx)
}

func (s *Service) invalidate(ctx context.Context, t *Tenant) {
	s.cache.Delete(ctx, tenant.CacheKeys(t.Info())...)
}

func (s *Service) refreshStatusCounts(ctx context.Context) {
	if s.observe == nil {
		return
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "tenant status counts unavailable", logger.Error(err))
		return
	}
	s.observe(counts)
}

var cleanName = sanitizer.Compose(sanitizer.SingleLine, sanitizer.MaxLength(100))
