package tenant

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// MemoryRepository is an in-process Repository for tests and local runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	tenants map[bson.ObjectID]Tenant
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tenants: make(map[bson.ObjectID]Tenant)}
}

func (r *MemoryRepository) Insert(_ context.Context, t *Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tenants {
		if existing.Subdomain == t.Subdomain {
			return ErrSubdomainTaken
		}
	}
	if t.ID.IsZero() {
		t.ID = bson.NewObjectID()
	}
	r.tenants[t.ID] = *t
	return nil
}

func (r *MemoryRepository) find(match func(Tenant) bool) (*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if match(t) {
			return &t, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (r *MemoryRepository) FindByID(_ context.Context, id bson.ObjectID) (*Tenant, error) {
	return r.find(func(t Tenant) bool { return t.ID == id })
}

func (r *MemoryRepository) FindBySubdomain(_ context.Context, subdomain string) (*Tenant, error) {
	return r.find(func(t Tenant) bool { return t.Subdomain == subdomain })
}

func (r *MemoryRepository) FindByCustomerID(_ context.Context, customerID string) (*Tenant, error) {
	if customerID == "" {
		return nil, tenant.ErrTenantNotFound
	}
	return r.find(func(t Tenant) bool { return t.Billing.CustomerID == customerID })
}

func (r *MemoryRepository) List(_ context.Context, f ListFilter) ([]Tenant, int64, error) {
	f = f.normalized()
	search := strings.ToLower(f.Search)

	r.mu.RLock()
	var matched []Tenant
	for _, t := range r.tenants {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Plan != "" && t.Plan.Type != f.Plan {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Name), search) &&
			!strings.Contains(t.Subdomain, search) &&
			!strings.Contains(strings.ToLower(t.Contact.AdminEmail), search) {
			continue
		}
		t.Metadata.Notes = ""
		matched = append(matched, t)
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, func(a, b Tenant) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.Hex(), a.ID.Hex())
	})

	total := int64(len(matched))
	start := min(f.skip(), total)
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

func (r *MemoryRepository) update(id bson.ObjectID, fn func(*Tenant)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	fn(&t)
	t.UpdatedAt = time.Now().UTC()
	r.tenants[id] = t
	return nil
}

func (r *MemoryRepository) Replace(_ context.Context, t *Tenant) error {
	return r.update(t.ID, func(existing *Tenant) { *existing = *t })
}

func (r *MemoryRepository) UpdateBilling(_ context.Context, id bson.ObjectID, billing Billing) error {
	return r.update(id, func(t *Tenant) { t.Billing = billing })
}

func (r *MemoryRepository) UpdatePlan(_ context.Context, id bson.ObjectID, plan PlanInfo) error {
	return r.update(id, func(t *Tenant) { t.Plan = plan })
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id bson.ObjectID, status tenant.Status, reason string) error {
	return r.update(id, func(t *Tenant) {
		t.Status = status
		t.Metadata.SuspensionReason = reason
	})
}

func (r *MemoryRepository) UpdateStats(_ context.Context, id bson.ObjectID, stats Stats) error {
	return r.update(id, func(t *Tenant) { t.Stats = stats })
}

func (r *MemoryRepository) CountByStatus(context.Context) (map[tenant.Status]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[tenant.Status]int64)
	for _, t := range r.tenants {
		out[t.Status]++
	}
	return out, nil
}
