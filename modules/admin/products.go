package admin

import (
	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/svc/school"
)

func (a *api) listProducts(ctx handler.Context, req classFilter) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	products, err := a.school.Products(ctx, tenantID, req.id())
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(products)
}

func (a *api) createProduct(ctx handler.Context, req school.ProductInput) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	p, err := a.school.CreateProduct(ctx, tenantID, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.Created(p)
}

func (a *api) getProduct(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	p, err := a.school.Product(ctx, tenantID, id)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(p)
}

func (a *api) updateProduct(ctx handler.Context, req school.ProductInput) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	p, err := a.school.UpdateProduct(ctx, tenantID, id, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(p)
}

func (a *api) deleteProduct(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	if err := a.school.DeleteProduct(ctx, tenantID, id); err != nil {
		return a.kit.Fail(err)
	}
	return rest.Message("Product deleted")
}

func (a *api) pendingPurchases(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	pending, err := a.school.PendingPurchases(ctx, tenantID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(pending)
}

func (a *api) deliverPurchase(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	p, err := a.school.DeliverPurchase(ctx, tenantID, id)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(p)
}
