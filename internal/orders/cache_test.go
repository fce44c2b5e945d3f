package orders_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-order-inventory/internal/logger"
	"github.com/ariefcatur/go-order-inventory/internal/orders"
	"github.com/ariefcatur/go-order-inventory/internal/orders/orderstest"
	"github.com/ariefcatur/go-order-inventory/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepo counts FindByID calls that reach the store.
type countingRepo struct {
	*orderstest.MemoryRepo
	finds int
}

func (c *countingRepo) FindByID(ctx context.Context, id string) (*orders.Order, error) {
	c.finds++
	return c.MemoryRepo.FindByID(ctx, id)
}

func setupCache(t *testing.T) (*miniredis.Miniredis, *orders.CachedRepo, *countingRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &countingRepo{MemoryRepo: orderstest.NewMemoryRepo()}
	return mr, &orders.CachedRepo{Repo: store, Redis: client, TTL: time.Minute, Log: logger.Nop()}, store
}

func TestCachedRepoReadThrough(t *testing.T) {
	mr, cache, store := setupCache(t)
	ctx := context.Background()

	o, err := store.Insert(ctx, sampleFields())
	require.NoError(t, err)

	got, err := cache.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, 1, store.finds)
	assert.True(t, mr.Exists(fmt.Sprintf(redisx.KeyOrder, o.ID)))
	assert.Equal(t, time.Minute, mr.TTL(fmt.Sprintf(redisx.KeyOrder, o.ID)))

	got, err = cache.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.True(t, o.TotalAmount.Equal(got.TotalAmount))
	assert.True(t, o.Date.Equal(got.Date))
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, 1, store.finds, "second read is served from redis")
}

func TestCachedRepoMissIsNotCached(t *testing.T) {
	mr, cache, _ := setupCache(t)

	got, err := cache.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists(fmt.Sprintf(redisx.KeyOrder, "missing")))
}

func TestCachedRepoWritesKeepCacheFresh(t *testing.T) {
	mr, cache, store := setupCache(t)
	ctx := context.Background()

	o, err := cache.Insert(ctx, sampleFields())
	require.NoError(t, err)
	key := fmt.Sprintf(redisx.KeyOrder, o.ID)
	assert.True(t, mr.Exists(key))

	next := sampleFields()
	next.Status = orders.StatusShipped
	_, err = cache.UpdateByID(ctx, o.ID, next)
	require.NoError(t, err)

	got, err := cache.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, got.Status)
	assert.Equal(t, 0, store.finds)

	_, err = cache.DeleteByID(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	got, err = cache.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCachedRepoFallsBackWhenRedisIsDown(t *testing.T) {
	mr, cache, store := setupCache(t)
	ctx := context.Background()
	o, err := store.Insert(ctx, sampleFields())
	require.NoError(t, err)

	mr.Close()

	got, err := cache.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestCachedRepoDropsCorruptEntries(t *testing.T) {
	mr, cache, store := setupCache(t)
	ctx := context.Background()
	o, err := store.Insert(ctx, sampleFields())
	require.NoError(t, err)

	require.NoError(t, mr.Set(fmt.Sprintf(redisx.KeyOrder, o.ID), "{not json"))

	got, err := cache.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, 1, store.finds)
}

// uuidRepo resolves ids the way PostgresRepo does: any UUID spelling names
// the same order.
type uuidRepo struct{ *orderstest.MemoryRepo }

func canonical(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

func (r uuidRepo) FindByID(ctx context.Context, id string) (*orders.Order, error) {
	return r.MemoryRepo.FindByID(ctx, canonical(id))
}

func (r uuidRepo) UpdateByID(ctx context.Context, id string, f orders.Fields) (*orders.Order, error) {
	return r.MemoryRepo.UpdateByID(ctx, canonical(id), f)
}

func (r uuidRepo) DeleteByID(ctx context.Context, id string) (*orders.Order, error) {
	return r.MemoryRepo.DeleteByID(ctx, canonical(id))
}

func TestCachedRepoNormalizesUUIDSpellings(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &orders.CachedRepo{Repo: uuidRepo{orderstest.NewMemoryRepo()}, Redis: client, TTL: time.Minute, Log: logger.Nop()}
	stock := &fakeStock{}
	svc := orders.NewService(repo, stock, nil, nil, "order-api")
	ctx := context.Background()

	o, err := svc.Create(ctx, sampleFields())
	require.NoError(t, err)
	key := fmt.Sprintf(redisx.KeyOrder, o.ID)
	require.True(t, mr.Exists(key))

	_, err = svc.GetByID(ctx, "{"+strings.ToUpper(o.ID)+"}")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, mr.Keys(), "all spellings share one cache entry")

	require.NoError(t, svc.Remove(ctx, strings.ToUpper(o.ID)))
	assert.False(t, mr.Exists(key))

	_, err = svc.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	calls := len(stock.calls)
	assert.ErrorIs(t, svc.Remove(ctx, o.ID), orders.ErrNotFound)
	_, err = svc.Update(ctx, "urn:uuid:"+o.ID, sampleFields())
	assert.ErrorIs(t, err, orders.ErrNotFound)
	assert.Len(t, stock.calls, calls, "a deleted order is never restored again")
}
