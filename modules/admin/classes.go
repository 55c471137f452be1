package admin

import (
	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/svc/school"
)

func (a *api) listClasses(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	classes, err := a.school.Classes(ctx, tenantID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(classes)
}

func (a *api) createClass(ctx handler.Context, req school.ClassInput) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	c, err := a.school.CreateClass(ctx, tenantID, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.Created(c)
}

func (a *api) getClass(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	c, err := a.school.Class(ctx, tenantID, id)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(c)
}

func (a *api) updateClass(ctx handler.Context, req school.ClassInput) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	c, err := a.school.UpdateClass(ctx, tenantID, id, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(c)
}

func (a *api) deleteClass(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	if err := a.school.DeleteClass(ctx, tenantID, id); err != nil {
		return a.kit.Fail(err)
	}
	return rest.Message("Class deleted")
}
