//go:build integration
// +build integration

package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/convoflow/pkg/graph"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/persistence"
	"github.com/dukex/convoflow/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if postgresContainer != nil {
		_ = postgresContainer.Terminate(context.Background())
	}

	os.Exit(code)
}

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"flows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("convoflow_test"),
			postgres.WithUsername("convoflow"),
			postgres.WithPassword("convoflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)
		require.NoError(t, store.Close(ctx))
		cancel()
	})

	return store, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer db.Close()

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	// Running the migrations again is a no-op.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestPersistence_FlowLifecycle(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	flow := graph.NewFlow("Support", "Inbound support", "support", time.Now().UTC().Truncate(time.Millisecond))
	message, err := graph.AddNode(flow, models.NodeTypeMessage, models.Position{X: 10, Y: 20}, &models.MessageData{Content: "Hi"})
	require.NoError(t, err)
	_, err = graph.AddEdge(flow, flow.StartNode().ID, message.ID, graph.HandleDefault)
	require.NoError(t, err)

	require.NoError(t, store.SaveFlow(ctx, flow))

	fetched, err := store.FlowByID(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Support", fetched.Name)
	assert.Equal(t, flow.Edges, fetched.Edges)
	assert.Equal(t, &models.MessageData{Content: "Hi"}, fetched.Node(message.ID).Data)

	flow.Name = "Renamed"
	flow.Status = models.FlowStatusPublished
	require.NoError(t, store.SaveFlow(ctx, flow))

	flows, err := store.Flows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "Renamed", flows[0].Name)
	assert.Equal(t, models.FlowStatusPublished, flows[0].Status)

	require.NoError(t, store.DeleteFlow(ctx, flow.ID))

	_, err = store.FlowByID(ctx, flow.ID)
	assert.True(t, persistence.IsFlowNotFound(err))
	assert.ErrorIs(t, store.DeleteFlow(ctx, flow.ID), persistence.ErrFlowNotFound)

	require.NoError(t, store.HealthCheck(ctx))
}
