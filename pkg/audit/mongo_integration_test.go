//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/leveledu/pkg/audit"
	mongodb "github.com/dmitrymomot/leveledu/pkg/mongo"
)

func TestMongoStorage(t *testing.T) {
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("leveledu_audit_test")
	require.NoError(t, mongodb.EnsureIndexes(ctx, db, audit.Indexes()))

	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	trail := audit.NewLogger(audit.NewMongoStorage(db), audit.WithClock(func() time.Time { return at }))
	require.NoError(t, trail.Log(ctx, audit.ActionRegister, audit.WithTenant("t1"), audit.WithUser("u1")))
	at = at.Add(time.Minute)
	require.NoError(t, trail.Log(ctx, audit.ActionLogin, audit.WithTenant("t1"), audit.WithUser("u1")))
	require.NoError(t, trail.Log(ctx, audit.ActionLogin, audit.WithTenant("t2"), audit.WithUser("u2")))

	events, err := trail.Find(ctx, audit.Criteria{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionLogin, events[0].Action)
	assert.Equal(t, audit.ActionRegister, events[1].Action)
	assert.True(t, events[1].CreatedAt.Equal(time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)))
}
