package orders

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-inventory/internal/postgres"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupPostgres starts a throwaway Postgres, applies the migrations and
// returns a repository on it. Skipped in -short mode or without Docker.
func setupPostgres(t *testing.T) *PostgresRepo {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("orders"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.Connect(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	return &PostgresRepo{DB: pool}
}

func TestPostgresRepoCRUD(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	list, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	in := Fields{
		Date:        time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:      StatusPending,
		TotalAmount: decimal.RequireFromString("100.25"),
		Items:       []Item{{ProductID: "P1", Quantity: 2}, {ProductID: "P2", Quantity: 1}},
	}
	created, err := repo.Insert(ctx, in)
	require.NoError(t, err)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err, "the store assigns a uuid")
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, in.Date.Equal(got.Date))
	assert.Equal(t, in.Status, got.Status)
	assert.True(t, in.TotalAmount.Equal(got.TotalAmount))
	assert.Equal(t, in.Items, got.Items)

	next := in
	next.Status = StatusShipped
	next.Items = []Item{{ProductID: "P1", Quantity: 1}}
	updated, err := repo.UpdateByID(ctx, created.ID, next)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, StatusShipped, updated.Status)
	assert.Equal(t, next.Items, updated.Items)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	list, err = repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	deleted, err := repo.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, created.ID, deleted.ID)

	got, err = repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresRepoAbsentIDs(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	f := Fields{Date: time.Now(), Status: StatusPending, TotalAmount: decimal.Zero, Items: []Item{}}

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		o, err := repo.FindByID(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, o, id)

		o, err = repo.UpdateByID(ctx, id, f)
		require.NoError(t, err, id)
		assert.Nil(t, o, id)

		o, err = repo.DeleteByID(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, o, id)
	}
}

func TestParseID(t *testing.T) {
	id := uuid.NewString()
	got, ok := parseID(id)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = parseID("64b7f0c2e4b0a1a2b3c4d5e6")
	assert.False(t, ok)
}
