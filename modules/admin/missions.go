package admin

import (
	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/svc/school"
)

func (a *api) listMissions(ctx handler.Context, req classFilter) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	missions, err := a.school.Missions(ctx, tenantID, req.id())
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(missions)
}

func (a *api) createMission(ctx handler.Context, req school.MissionInput) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	m, err := a.school.CreateMission(ctx, tenantID, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.Created(m)
}

func (a *api) getMission(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	m, err := a.school.Mission(ctx, tenantID, id)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(m)
}

func (a *api) updateMission(ctx handler.Context, req school.MissionInput) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	m, err := a.school.UpdateMission(ctx, tenantID, id, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(m)
}

func (a *api) deleteMission(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	if err := a.school.DeleteMission(ctx, tenantID, id); err != nil {
		return a.kit.Fail(err)
	}
	return rest.Message("Mission deleted")
}

func (a *api) allowMission(ctx handler.Context, req school.AllowInput) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	m, err := a.school.AllowMission(ctx, tenantID, id, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(m)
}
