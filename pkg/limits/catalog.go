package limits

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultPlans []byte

// DefaultPlanID is assigned to tenants without a known plan.
const DefaultPlanID = "trial"

// Source loads plans.
type Source interface {
	Load(ctx context.Context) ([]Plan, error)
}

// YAMLSource parses a plan catalog document.
type YAMLSource []byte

// DefaultSource returns the embedded catalog.
func DefaultSource() YAMLSource { return YAMLSource(defaultPlans) }

func (s YAMLSource) Load(context.Context) ([]Plan, error) {
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(s, &doc); err != nil {
		return nil, errors.Join(ErrInvalidPlanConfiguration, err)
	}
	return doc.Plans, nil
}

// Catalog is the authoritative plan table.
type Catalog struct {
	plans map[string]Plan
	order []string
}

// NewCatalog loads and validates plans from src.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	c := &Catalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		if err := validatePlan(p); err != nil {
			return nil, err
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidPlanConfiguration, p.ID)
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	if _, ok := c.plans[DefaultPlanID]; !ok {
		return nil, fmt.Errorf("%w: missing %q plan", ErrInvalidPlanConfiguration, DefaultPlanID)
	}
	return c, nil
}

// MustDefaultCatalog returns the embedded catalog and panics if it is invalid.
func MustDefaultCatalog() *Catalog {
	c, err := NewCatalog(context.Background(), DefaultSource())
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the plan with id.
func (c *Catalog) Get(id string) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

// Plans returns every plan in catalog order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}

// Public returns the plans offered for self-service checkout.
func (c *Catalog) Public() []Plan {
	var out []Plan
	for _, p := range c.Plans() {
		if p.Public {
			out = append(out, p)
		}
	}
	return out
}

func validatePlan(p Plan) error {
	if p.ID == "" {
		return fmt.Errorf("%w: plan without id", ErrInvalidPlanConfiguration)
	}
	if p.TrialDays < 0 {
		return fmt.Errorf("%w: plan %s has negative trial days", ErrInvalidPlanConfiguration, p.ID)
	}
	for _, res := range Resources {
		if v, _ := p.Limits.For(res); v < Unlimited {
			return fmt.Errorf("%w: plan %s has invalid %s limit %d", ErrInvalidPlanConfiguration, p.ID, res, v)
		}
	}
	for _, f := range p.Features {
		switch f {
		case FeatureCustomBranding, FeatureAPIAccess, FeatureAdvancedReports, FeatureCustomDomain:
		default:
			return fmt.Errorf("%w: plan %s has unknown feature %q", ErrInvalidPlanConfiguration, p.ID, f)
		}
	}
	return nil
}
