package admin

import (
	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/svc/school"
)

func (a *api) listAttitudes(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	list, err := a.school.Attitudes(ctx, tenantID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(list)
}

func (a *api) createAttitude(ctx handler.Context, req school.AttitudeInput) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	att, err := a.school.CreateAttitude(ctx, tenantID, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.Created(att)
}

func (a *api) getAttitude(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	att, err := a.school.Attitude(ctx, tenantID, id)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(att)
}

func (a *api) updateAttitude(ctx handler.Context, req school.AttitudeInput) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	att, err := a.school.UpdateAttitude(ctx, tenantID, id, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(att)
}

func (a *api) deleteAttitude(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	if err := a.school.DeleteAttitude(ctx, tenantID, id); err != nil {
		return a.kit.Fail(err)
	}
	return rest.Message("Attitude deleted")
}

func (a *api) rewardAttitude(ctx handler.Context, req school.RewardInput) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	res, err := a.school.RewardAttitude(ctx, tenantID, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.Created(res)
}
