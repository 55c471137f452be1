package limits

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/leveledu/pkg/logger"
)

// PlanResolver returns the plan id of a tenant.
type PlanResolver func(ctx context.Context, tenantID bson.ObjectID) (string, error)

// Transactor runs fn so that the usage count and the creation it guards
// cannot interleave with another reservation of the same tenant resource.
type Transactor interface {
	WithinQuota(ctx context.Context, tenantID bson.ObjectID, res Resource, fn func(ctx context.Context) error) error
}

type passthrough struct{}

func (passthrough) WithinQuota(ctx context.Context, _ bson.ObjectID, _ Resource, fn func(context.Context) error) error {
	return fn(ctx)
}

// DenialObserver is notified when a creation or feature is refused.
type DenialObserver func(kind, plan, subject string)

// Enforcer checks tenant usage against the plan catalog.
type Enforcer struct {
	catalog    *Catalog
	counters   CounterRegistry
	resolve    PlanResolver
	transactor Transactor
	observe    DenialObserver
	log        *slog.Logger
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithTransactor makes Reserve run inside tx.
func WithTransactor(tx Transactor) Option {
	return func(e *Enforcer) {
		if tx != nil {
			e.transactor = tx
		}
	}
}

// WithDenialObserver registers a callback for refusals.
func WithDenialObserver(fn DenialObserver) Option {
	return func(e *Enforcer) { e.observe = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enforcer) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEnforcer creates an enforcer. Plans are looked up in catalog, usage is
// counted through counters and the tenant's plan comes from resolve.
func NewEnforcer(catalog *Catalog, counters CounterRegistry, resolve PlanResolver, opts ...Option) *Enforcer {
	if counters == nil {
		counters = NewRegistry()
	}
	e := &Enforcer{
		catalog:    catalog,
		counters:   counters,
		resolve:    resolve,
		transactor: passthrough{},
		log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the plan table the enforcer uses.
func (e *Enforcer) Catalog() *Catalog { return e.catalog }

// Plan returns the tenant's plan. Unknown plan ids fall back to the trial plan.
func (e *Enforcer) Plan(ctx context.Context, tenantID bson.ObjectID) (Plan, error) {
	id, err := e.resolve(ctx, tenantID)
	if err != nil {
		return Plan{}, err
	}
	p, err := e.catalog.Get(id)
	if errors.Is(err, ErrPlanNotFound) {
		e.log.WarnContext(ctx, "unknown plan, using default",
			logger.Component("limits"),
			logger.TenantID(tenantID.Hex()),
			logger.Plan(id),
		)
		return e.catalog.Get(DefaultPlanID)
	}
	return p, err
}

func (e *Enforcer) check(ctx context.Context, tenantID bson.ObjectID, plan Plan, res Resource) error {
	limit, ok := plan.Limits.For(res)
	if !ok {
		return ErrInvalidResource
	}
	if limit == Unlimited {
		return nil
	}

	current, err := e.count(ctx, tenantID, res)
	if err != nil {
		return err
	}
	if current >= limit {
		e.deny(ctx, "resource", plan.ID, string(res))
		return &LimitError{Resource: res, Current: current, Limit: limit, Plan: plan.ID}
	}
	return nil
}

// Reserve checks the ceiling for res and runs create when there is room.
// The check and create run under the configured Transactor, so concurrent
// reservations cannot both take the last slot. create is not called when
// the limit is reached.
func (e *Enforcer) Reserve(ctx context.Context, tenantID bson.ObjectID, res Resource, create func(ctx context.Context) error) error {
	plan, err := e.Plan(ctx, tenantID)
	if err != nil {
		return err
	}
	if limit, ok := plan.Limits.For(res); ok && limit == Unlimited {
		return create(ctx)
	}
	return e.transactor.WithinQuota(ctx, tenantID, res, func(ctx context.Context) error {
		if err := e.check(ctx, tenantID, plan, res); err != nil {
			return err
		}
		return create(ctx)
	})
}

// HasFeature reports whether the tenant's plan enables f.
func (e *Enforcer) HasFeature(ctx context.Context, tenantID bson.ObjectID, f Feature) (bool, error) {
	plan, err := e.Plan(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return plan.HasFeature(f), nil
}

// RequireFeature returns a *FeatureError when the tenant's plan lacks f.
func (e *Enforcer) RequireFeature(ctx context.Context, tenantID bson.ObjectID, f Feature) error {
	plan, err := e.Plan(ctx, tenantID)
	if err != nil {
		return err
	}
	if !plan.HasFeature(f) {
		e.deny(ctx, "feature", plan.ID, string(f))
		return &FeatureError{Feature: f, Plan: plan.ID}
	}
	return nil
}

// Report is a tenant's usage across every resource.
type Report struct {
	Plan  Plan
	Usage map[Resource]UsageInfo
}

// Percentages returns usage percentages per resource.
func (r Report) Percentages() map[Resource]int {
	out := make(map[Resource]int, len(r.Usage))
	for res, u := range r.Usage {
		out[res] = u.Percentage()
	}
	return out
}

// Usage counts every registered resource in parallel.
func (e *Enforcer) Usage(ctx context.Context, tenantID bson.ObjectID) (Report, error) {
	plan, err := e.Plan(ctx, tenantID)
	if err != nil {
		return Report{}, err
	}

	var mu sync.Mutex
	usage := make(map[Resource]UsageInfo, len(Resources))
	g, gctx := errgroup.WithContext(ctx)
	for _, res := range Resources {
		limit, _ := plan.Limits.For(res)
		if _, ok := e.counters[res]; !ok {
			usage[res] = UsageInfo{Limit: limit}
			continue
		}
		g.Go(func() error {
			n, err := e.count(gctx, tenantID, res)
			if err != nil {
				return err
			}
			mu.Lock()
			usage[res] = UsageInfo{Current: n, Limit: limit}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return Report{Plan: plan, Usage: usage}, nil
}

func (e *Enforcer) count(ctx context.Context, tenantID bson.ObjectID, res Resource) (int64, error) {
	c, ok := e.counters[res]
	if !ok {
		return 0, ErrNoCounterRegistered
	}
	n, err := c.Count(ctx, tenantID)
	if err != nil {
		return 0, errors.Join(ErrFailedToCountResourceUsage, err)
	}
	return n, nil
}

func (e *Enforcer) deny(ctx context.Context, kind, plan, subject string) {
	e.log.InfoContext(ctx, "plan limit denied request",
		logger.Component("limits"),
		logger.Plan(plan),
		slog.String("kind", kind),
		slog.String("subject", subject),
	)
	if e.observe != nil {
		e.observe(kind, plan, subject)
	}
}
