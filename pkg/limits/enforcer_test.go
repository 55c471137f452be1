package limits_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
)

type staticCounts struct {
	mu     sync.Mutex
	counts map[limits.Resource]int64
}

func (s *staticCounts) counter(res limits.Resource) limits.CounterFunc {
	return func(context.Context, bson.ObjectID) (int64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.counts[res], nil
	}
}

func (s *staticCounts) add(res limits.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[res]++
}

func newEnforcer(t *testing.T, plan string, counts map[limits.Resource]int64, opts ...limits.Option) (*limits.Enforcer, *staticCounts) {
	t.Helper()
	sc := &staticCounts{counts: counts}
	reg := limits.NewRegistry()
	for _, res := range limits.Resources {
		reg.Register(res, sc.counter(res))
	}
	resolve := func(context.Context, bson.ObjectID) (string, error) { return plan, nil }
	return limits.NewEnforcer(limits.MustDefaultCatalog(), reg, resolve, opts...), sc
}

func TestReserveCeilings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tenantID := bson.NewObjectID()
	reserve := func(e *limits.Enforcer, res limits.Resource) error {
		return e.Reserve(ctx, tenantID, res, func(context.Context) error { return nil })
	}

	t.Run("starter tenant with 50 students", func(t *testing.T) {
		t.Parallel()
		e, _ := newEnforcer(t, "starter", map[limits.Resource]int64{limits.ResourceStudent: 50})

		err := reserve(e, limits.ResourceStudent)
		require.ErrorIs(t, err, limits.ErrLimitExceeded)

		var le *limits.LimitError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, limits.ResourceStudent, le.Resource)
		assert.Equal(t, int64(50), le.Current)
		assert.Equal(t, int64(50), le.Limit)
		assert.Equal(t, "starter", le.Plan)
	})

	t.Run("below the limit", func(t *testing.T) {
		t.Parallel()
		e, _ := newEnforcer(t, "starter", map[limits.Resource]int64{limits.ResourceStudent: 49})
		assert.NoError(t, reserve(e, limits.ResourceStudent))
	})

	t.Run("unlimited always passes", func(t *testing.T) {
		t.Parallel()
		e, _ := newEnforcer(t, "enterprise", map[limits.Resource]int64{limits.ResourceStudent: 1 << 40})
		assert.NoError(t, reserve(e, limits.ResourceStudent))
	})

	t.Run("unknown plan falls back to trial", func(t *testing.T) {
		t.Parallel()
		e, _ := newEnforcer(t, "legacy", map[limits.Resource]int64{limits.ResourceClass: 2})
		var le *limits.LimitError
		require.ErrorAs(t, reserve(e, limits.ResourceClass), &le)
		assert.Equal(t, "trial", le.Plan)
	})

	t.Run("unknown resource", func(t *testing.T) {
		t.Parallel()
		e, _ := newEnforcer(t, "starter", nil)
		assert.ErrorIs(t, reserve(e, "rocket"), limits.ErrInvalidResource)
	})

	t.Run("missing counter", func(t *testing.T) {
		t.Parallel()
		resolve := func(context.Context, bson.ObjectID) (string, error) { return "starter", nil }
		e := limits.NewEnforcer(limits.MustDefaultCatalog(), nil, resolve)
		assert.ErrorIs(t, reserve(e, limits.ResourceStudent), limits.ErrNoCounterRegistered)
	})

	t.Run("resolver failure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("tenant lookup failed")
		resolve := func(context.Context, bson.ObjectID) (string, error) { return "", boom }
		e := limits.NewEnforcer(limits.MustDefaultCatalog(), nil, resolve)
		assert.ErrorIs(t, reserve(e, limits.ResourceStudent), boom)
	})
}

func TestReserve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tenantID := bson.NewObjectID()

	t.Run("create is skipped at the limit", func(t *testing.T) {
		t.Parallel()
		e, _ := newEnforcer(t, "trial", map[limits.Resource]int64{limits.ResourceAdmin: 1})
		called := false
		err := e.Reserve(ctx, tenantID, limits.ResourceAdmin, func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, limits.ErrLimitExceeded)
		assert.False(t, called)
	})

	t.Run("create runs inside the transactor", func(t *testing.T) {
		t.Parallel()
		tx := &recordingTransactor{}
		e, sc := newEnforcer(t, "trial", map[limits.Resource]int64{}, limits.WithTransactor(tx))

		for range 2 {
			err := e.Reserve(ctx, tenantID, limits.ResourceClass, func(context.Context) error {
				sc.add(limits.ResourceClass)
				return nil
			})
			require.NoError(t, err)
		}
		err := e.Reserve(ctx, tenantID, limits.ResourceClass, func(context.Context) error {
			t.Fatal("third class must not be created")
			return nil
		})
		assert.ErrorIs(t, err, limits.ErrLimitExceeded)
		assert.Equal(t, 3, tx.calls)
	})

	t.Run("create error is returned", func(t *testing.T) {
		t.Parallel()
		e, _ := newEnforcer(t, "starter", map[limits.Resource]int64{})
		boom := errors.New("insert failed")
		err := e.Reserve(ctx, tenantID, limits.ResourceMission, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}

type recordingTransactor struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingTransactor) WithinQuota(ctx context.Context, _ bson.ObjectID, _ limits.Resource, fn func(context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return fn(ctx)
}

func TestRequireFeature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var denied []string
	e, _ := newEnforcer(t, "starter", nil, limits.WithDenialObserver(func(kind, plan, subject string) {
		denied = append(denied, kind+":"+plan+":"+subject)
	}))

	err := e.RequireFeature(ctx, bson.NewObjectID(), limits.FeatureCustomBranding)
	require.ErrorIs(t, err, limits.ErrFeatureNotAvailable)

	var fe *limits.FeatureError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, limits.FeatureCustomBranding, fe.Feature)
	assert.Equal(t, "starter", fe.Plan)
	assert.Equal(t, []string{"feature:starter:customBranding"}, denied)

	pro, _ := newEnforcer(t, "professional", nil)
	assert.NoError(t, pro.RequireFeature(ctx, bson.NewObjectID(), limits.FeatureCustomBranding))
	ok, err := pro.HasFeature(ctx, bson.NewObjectID(), limits.FeatureCustomDomain)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUsage(t *testing.T) {
	t.Parallel()

	e, _ := newEnforcer(t, "starter", map[limits.Resource]int64{
		limits.ResourceStudent: 25,
		limits.ResourceClass:   10,
	})
	report, err := e.Usage(context.Background(), bson.NewObjectID())
	require.NoError(t, err)

	assert.Equal(t, "starter", report.Plan.ID)
	assert.Len(t, report.Usage, len(limits.Resources))
	assert.Equal(t, limits.UsageInfo{Current: 25, Limit: 50}, report.Usage[limits.ResourceStudent])
	assert.Equal(t, 50, report.Percentages()[limits.ResourceStudent])
	assert.Equal(t, 100, report.Percentages()[limits.ResourceClass])
	assert.Equal(t, 0, report.Percentages()[limits.ResourceProduct])
}

func TestUsageCounterFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("count failed")
	reg := limits.NewRegistry()
	reg.Register(limits.ResourceStudent, limits.CounterFunc(func(context.Context, bson.ObjectID) (int64, error) {
		return 0, boom
	}))
	resolve := func(context.Context, bson.ObjectID) (string, error) { return "starter", nil }
	e := limits.NewEnforcer(limits.MustDefaultCatalog(), reg, resolve)

	_, err := e.Usage(context.Background(), bson.NewObjectID())
	assert.ErrorIs(t, err, limits.ErrFailedToCountResourceUsage)
	assert.ErrorIs(t, err, boom)
}

func TestRegistryPanics(t *testing.T) {
	t.Parallel()

	reg := limits.NewRegistry()
	assert.Panics(t, func() { reg.Register(limits.ResourceStudent, nil) })
	assert.Panics(t, func() {
		reg.Register("rocket", limits.CounterFunc(func(context.Context, bson.ObjectID) (int64, error) { return 0, nil }))
	})
}
