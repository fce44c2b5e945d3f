package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-inventory/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedRepo puts a Redis read-through cache in front of FindByID. The
// underlying store stays the source of truth: cache errors are logged and
// ignored.
type CachedRepo struct {
	Repo  Repository
	Redis *redis.Client
	TTL   time.Duration
	Log   *zap.SugaredLogger
}

// cacheKey maps every spelling of a UUID (upper case, braces, urn:uuid:) to
// the canonical key the order is stored under.
func cacheKey(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		id = u.String()
	}
	return fmt.Sprintf(redisx.KeyOrder, id)
}

func (c *CachedRepo) FindAll(ctx context.Context) ([]Order, error) {
	return c.Repo.FindAll(ctx)
}

func (c *CachedRepo) FindByID(ctx context.Context, id string) (*Order, error) {
	b, err := c.Redis.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var o Order
		if jerr := json.Unmarshal(b, &o); jerr == nil {
			return &o, nil
		}
		c.Log.Warnw("dropping undecodable cached order", "order_id", id)
		c.evict(ctx, id)
	case !errors.Is(err, redis.Nil):
		c.Log.Warnw("order cache read failed", "order_id", id, "err", err)
	}

	o, err := c.Repo.FindByID(ctx, id)
	if err != nil || o == nil {
		return o, err
	}
	c.store(ctx, o)
	return o, nil
}

func (c *CachedRepo) Insert(ctx context.Context, f Fields) (*Order, error) {
	o, err := c.Repo.Insert(ctx, f)
	if err != nil {
		return nil, err
	}
	c.store(ctx, o)
	return o, nil
}

func (c *CachedRepo) UpdateByID(ctx context.Context, id string, f Fields) (*Order, error) {
	o, err := c.Repo.UpdateByID(ctx, id, f)
	if err != nil {
		return nil, err
	}
	if o == nil {
		c.evict(ctx, id)
		return nil, nil
	}
	c.store(ctx, o)
	return o, nil
}

func (c *CachedRepo) DeleteByID(ctx context.Context, id string) (*Order, error) {
	o, err := c.Repo.DeleteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, id)
	if o != nil && cacheKey(o.ID) != cacheKey(id) {
		c.evict(ctx, o.ID)
	}
	return o, nil
}

func (c *CachedRepo) store(ctx context.Context, o *Order) {
	b, err := json.Marshal(o)
	if err != nil {
		c.Log.Warnw("order cache encode failed", "order_id", o.ID, "err", err)
		return
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = redisx.TTLOrderCache
	}
	if err := c.Redis.Set(ctx, cacheKey(o.ID), b, ttl).Err(); err != nil {
		c.Log.Warnw("order cache write failed", "order_id", o.ID, "err", err)
	}
}

func (c *CachedRepo) evict(ctx context.Context, id string) {
	if err := c.Redis.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.Log.Warnw("order cache evict failed", "order_id", id, "err", err)
	}
}
