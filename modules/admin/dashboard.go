package admin

import (
	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/subscription"
	"github.com/dmitrymomot/leveledu/svc/school"
	tenantsvc "github.com/dmitrymomot/leveledu/svc/tenant"
)

func (a *api) home(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	h, err := a.school.Home(ctx, tenantID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(h)
}

type rankingRequest struct {
	By school.Rank `path:"by" json:"-" validate:"oneof=coins xp"`
}

func (a *api) ranking(ctx handler.Context, req rankingRequest) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	entries, err := a.school.Ranking(ctx, tenantID, req.By)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(entries)
}

// Usage is the plan usage report of the admin dashboard.
type Usage struct {
	PlanType       string                               `json:"planType"`
	Limits         limits.Limits                        `json:"limits"`
	Features       []limits.Feature                     `json:"features"`
	CurrentUsage   map[limits.Resource]limits.UsageInfo `json:"currentUsage"`
	PercentageUsed map[limits.Resource]int              `json:"percentageUsed"`
	Subscription   *subscription.Subscription           `json:"subscription"`
}

func (a *api) usage(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	report, err := a.limits.Usage(ctx, tenantID)
	if err != nil {
		return a.kit.Fail(err)
	}
	sub, _ := subscription.FromContext(ctx)
	return rest.OK(Usage{
		PlanType:       report.Plan.ID,
		Limits:         report.Plan.Limits,
		Features:       report.Plan.Features,
		CurrentUsage:   report.Usage,
		PercentageUsed: report.Percentages(),
		Subscription:   sub,
	})
}

func (a *api) branding(ctx handler.Context, req tenantsvc.BrandingInput) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	if err := a.limits.RequireFeature(ctx, tenantID, limits.FeatureCustomBranding); err != nil {
		return a.kit.Fail(err)
	}
	t, err := a.tenants.UpdateBranding(ctx, tenantID, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(t.Branding)
}
