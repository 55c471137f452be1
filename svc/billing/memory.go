package billing

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/subscription"
)

// MemorySubscriptions is an in-process Subscriptions for tests and local
// runs.
type MemorySubscriptions struct {
	mu   sync.RWMutex
	subs map[string]subscription.Subscription
}

func NewMemorySubscriptions() *MemorySubscriptions {
	return &MemorySubscriptions{subs: make(map[string]subscription.Subscription)}
}

// Put stores sub as is, for test setup.
func (r *MemorySubscriptions) Put(sub subscription.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID.IsZero() {
		sub.ID = bson.NewObjectID()
	}
	r.subs[sub.StripeSubscriptionID] = sub
}

// Len returns the number of stored subscriptions.
func (r *MemorySubscriptions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *MemorySubscriptions) newest(match func(subscription.Subscription) bool) (*subscription.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *subscription.Subscription
	for _, s := range r.subs {
		if !match(s) {
			continue
		}
		if found == nil || s.CreatedAt.After(found.CreatedAt) {
			cp := s
			cp.PlanHistory = slices.Clone(s.PlanHistory)
			found = &cp
		}
	}
	if found == nil {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return found, nil
}

func (r *MemorySubscriptions) Current(_ context.Context, tenantID bson.ObjectID) (*subscription.Subscription, error) {
	return r.newest(func(s subscription.Subscription) bool {
		return s.TenantID == tenantID && s.Status.Current()
	})
}

func (r *MemorySubscriptions) Latest(_ context.Context, tenantID bson.ObjectID) (*subscription.Subscription, error) {
	return r.newest(func(s subscription.Subscription) bool { return s.TenantID == tenantID })
}

func (r *MemorySubscriptions) FindByStripeID(_ context.Context, id string) (*subscription.Subscription, error) {
	return r.newest(func(s subscription.Subscription) bool { return s.StripeSubscriptionID == id })
}

func (r *MemorySubscriptions) Upsert(_ context.Context, snap Snapshot, at time.Time) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.subs[snap.StripeSubscriptionID]
	if !exists {
		s = subscription.Subscription{
			ID:                   bson.NewObjectID(),
			StripeSubscriptionID: snap.StripeSubscriptionID,
			CreatedAt:            at,
			PlanHistory:          []subscription.PlanChange{{Plan: snap.Plan, ChangedAt: at, Reason: "created"}},
		}
	} else if snap.Plan != "" && snap.Plan != s.Plan {
		s.PlanHistory = append(slices.Clone(s.PlanHistory), subscription.PlanChange{Plan: snap.Plan, ChangedAt: at, Reason: "plan_changed"})
	}

	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&s.StripeCustomerID, snap.StripeCustomerID)
	setIf(&s.StripePriceID, snap.StripePriceID)
	setIf(&s.Plan, snap.Plan)
	setIf(&s.PlanName, snap.PlanName)
	setIf(&s.Currency, snap.Currency)
	if snap.PriceMonthly > 0 {
		s.PriceMonthly = snap.PriceMonthly
	}
	if !snap.TenantID.IsZero() {
		s.TenantID = snap.TenantID
	}
	for dst, v := range map[**time.Time]*time.Time{
		&s.CurrentPeriodStart: snap.CurrentPeriodStart,
		&s.CurrentPeriodEnd:   snap.CurrentPeriodEnd,
		&s.TrialStart:         snap.TrialStart,
		&s.TrialEnd:           snap.TrialEnd,
		&s.CanceledAt:         snap.CanceledAt,
	} {
		if v != nil {
			*dst = v
		}
	}
	s.Status = snap.Status
	s.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
	s.UpdatedAt = at

	r.subs[snap.StripeSubscriptionID] = s
	out := s
	out.PlanHistory = slices.Clone(s.PlanHistory)
	return &out, nil
}

func (r *MemorySubscriptions) update(id string, fn func(*subscription.Subscription)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return subscription.ErrSubscriptionNotFound
	}
	fn(&s)
	r.subs[id] = s
	return nil
}

func (r *MemorySubscriptions) AssignTenant(_ context.Context, id string, tenantID bson.ObjectID) error {
	return r.update(id, func(s *subscription.Subscription) { s.TenantID = tenantID })
}

func (r *MemorySubscriptions) MarkCanceled(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(s *subscription.Subscription) {
		s.Status = subscription.StatusCanceled
		s.CanceledAt = &at
		s.UpdatedAt = at
	})
}

func (r *MemorySubscriptions) ScheduleCancel(_ context.Context, id string, cancel bool, reason string, at time.Time) error {
	return r.update(id, func(s *subscription.Subscription) {
		s.CancelAtPeriodEnd = cancel
		if reason != "" {
			s.CancellationReason = reason
		}
		s.UpdatedAt = at
	})
}

func (r *MemorySubscriptions) RecordPayment(_ context.Context, id string, amount int64, at time.Time) error {
	return r.update(id, func(s *subscription.Subscription) {
		s.TotalRevenue += amount
		s.LastPaymentAt = &at
		s.UpdatedAt = at
	})
}

func (r *MemorySubscriptions) MarkPastDue(_ context.Context, id string, nextAttempt *time.Time, at time.Time) error {
	return r.update(id, func(s *subscription.Subscription) {
		s.Status = subscription.StatusPastDue
		if nextAttempt != nil {
			s.NextPaymentAttempt = nextAttempt
		}
		s.UpdatedAt = at
	})
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]LedgerEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]LedgerEntry)}
}

func (l *MemoryLedger) Claim(_ context.Context, key, eventType string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[key]; ok {
		return ErrAlreadyProcessed
	}
	l.entries[key] = LedgerEntry{ID: key, Type: eventType, ProcessedAt: at, Outcome: OutcomeProcessing}
	return nil
}

func (l *MemoryLedger) Complete(_ context.Context, key, outcome string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	e.ID = key
	e.Outcome = outcome
	if cause != nil {
		e.Error = cause.Error()
	}
	l.entries[key] = e
	return nil
}

// Entry returns the ledger entry for key.
func (l *MemoryLedger) Entry(key string) (LedgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return e, ok
}
