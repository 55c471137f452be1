package tenant_test

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

type fakeProvider struct {
	mu      sync.Mutex
	tenants []*tenant.Info
	calls   int
}

func newFakeProvider(tenants ...*tenant.Info) *fakeProvider {
	return &fakeProvider{tenants: tenants}
}

func (p *fakeProvider) GetByID(_ context.Context, id bson.ObjectID) (*tenant.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	for _, t := range p.tenants {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (p *fakeProvider) GetBySubdomain(_ context.Context, sub string) (*tenant.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	for _, t := range p.tenants {
		if t.Subdomain == sub {
			cp := *t
			return &cp, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newInfo(sub string, status tenant.Status) *tenant.Info {
	return &tenant.Info{
		ID:        bson.NewObjectID(),
		Subdomain: sub,
		Name:      "Escola " + sub,
		Status:    status,
		Plan:      "starter",
	}
}
