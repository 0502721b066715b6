// Package cache provides a Redis read-through cache in front of a catalog
// backend.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/wire"
)

const (
	keyList   = "catalog:list"
	keyPrefix = "catalog:product:"
)

// Backend is what the cache wraps: a catalog that also applies stock
// decrements.
type Backend interface {
	product.Repository
	product.Inventory
}

var (
	_ product.Repository = (*Products)(nil)
	_ product.Inventory  = (*Products)(nil)
)

// Products caches List and GetByID. Batch reads used for pricing and stock
// checks always go to the backend. Every write invalidates the affected keys
// after the backend succeeds.
type Products struct {
	next Backend
	rdb  redis.UniversalClient
	ttl  time.Duration
}

// NewProducts wraps next with a cache stored in rdb.
func NewProducts(next Backend, rdb redis.UniversalClient, ttl time.Duration) *Products {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Products{next: next, rdb: rdb, ttl: ttl}
}

// List returns the catalog, from cache when present.
func (c *Products) List(ctx context.Context) ([]product.Product, error) {
	if data, ok := c.get(ctx, keyList); ok {
		ps, err := wire.DecodeProducts(jx.DecodeBytes(data))
		if err == nil {
			return ps, nil
		}
		zctx.From(ctx).Warn("Dropping undecodable cache entry", zap.String("key", keyList), zap.Error(err))
	}

	ps, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	e := &jx.Encoder{}
	wire.EncodeProducts(e, ps)
	c.set(ctx, keyList, e.Bytes())
	return ps, nil
}

// GetByID returns a single product, from cache when present.
func (c *Products) GetByID(ctx context.Context, id string) (*product.Product, error) {
	key := keyPrefix + id
	if data, ok := c.get(ctx, key); ok {
		p, err := wire.DecodeProduct(jx.DecodeBytes(data))
		if err == nil {
			return &p, nil
		}
		zctx.From(ctx).Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
	}

	p, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e := &jx.Encoder{}
	wire.EncodeProduct(e, *p)
	c.set(ctx, key, e.Bytes())
	return p, nil
}

// GetByIDs always reads the backend.
func (c *Products) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return c.next.GetByIDs(ctx, ids)
}

// Create inserts p and drops the cached list.
func (c *Products) Create(ctx context.Context, p *product.Product) error {
	if err := c.next.Create(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// Update patches a product and drops its cached entries.
func (c *Products) Update(ctx context.Context, id string, patch product.Patch) (*product.Product, error) {
	p, err := c.next.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return p, nil
}

// Delete removes a product and drops its cached entries.
func (c *Products) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

// ApplyDecrements forwards to the backend and drops the touched products.
func (c *Products) ApplyDecrements(ctx context.Context, decs []product.Decrement) error {
	if err := c.next.ApplyDecrements(ctx, decs); err != nil {
		return err
	}
	ids := make([]string, len(decs))
	for i, d := range decs {
		ids[i] = d.ProductID
	}
	c.invalidate(ctx, ids...)
	return nil
}

// get treats any Redis failure as a miss.
func (c *Products) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zctx.From(ctx).Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (c *Products) set(ctx context.Context, key string, data []byte) {
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Products) invalidate(ctx context.Context, ids ...string) {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, keyList)
	for _, id := range ids {
		keys = append(keys, keyPrefix+id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		zctx.From(ctx).Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
