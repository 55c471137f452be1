package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

func TestMemoryCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := tenant.NewMemoryCache(2, 10*time.Millisecond)
	t.Cleanup(func() { _ = c.Close() })

	acme := newInfo("acme", tenant.StatusActive)
	c.Set(ctx, "sub:acme", acme, time.Minute)

	got, ok := c.Get(ctx, "sub:acme")
	require.True(t, ok)
	assert.Equal(t, acme.ID, got.ID)

	got.Name = "mutated"
	again, _ := c.Get(ctx, "sub:acme")
	assert.Equal(t, acme.Name, again.Name)

	c.Delete(ctx, "sub:acme")
	_, ok = c.Get(ctx, "sub:acme")
	assert.False(t, ok)

	c.Set(ctx, "sub:short", acme, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "sub:short")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCacheCloseTwice(t *testing.T) {
	t.Parallel()

	c := tenant.NewMemoryCache(0, 0)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestCacheKeys(t *testing.T) {
	t.Parallel()

	acme := newInfo("acme", tenant.StatusActive)
	assert.ElementsMatch(t, []string{"sub:acme", "id:" + acme.ID.Hex()}, tenant.CacheKeys(acme))
	assert.Nil(t, tenant.CacheKeys(nil))
}

func TestNopCache(t *testing.T) {
	t.Parallel()

	var c tenant.Cache = tenant.NopCache{}
	acme := newInfo("acme", tenant.StatusActive)
	c.Set(context.Background(), "sub:acme", acme, time.Minute)

	_, ok := c.Get(context.Background(), "sub:acme")
	assert.False(t, ok)
	c.Delete(context.Background(), "sub:acme")
	assert.NoError(t, c.Close())
}
