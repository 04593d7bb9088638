package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ecstore/internal/domain/model"
	"ecstore/internal/usecase"

	"github.com/redis/go-redis/v9"
)

const productKeyPrefix = "product:detail:"

// 商品詳細のcache-aside
type RedisProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisProductCache(rdb *redis.Client, ttl time.Duration) *RedisProductCache {
	return &RedisProductCache{rdb: rdb, ttl: ttl}
}

// Categoryはjsonに出ないので名前だけ持たせる
type cachedProduct struct {
	model.Product
	CategoryName string `json:"category_name"`
}

func productKey(id int64) string {
	return productKeyPrefix + strconv.FormatInt(id, 10)
}

func (c *RedisProductCache) Get(ctx context.Context, id int64) (model.Product, bool, error) {
	raw, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Product{}, false, nil
	}
	if err != nil {
		return model.Product{}, false, err
	}

	var cp cachedProduct
	if err := json.Unmarshal(raw, &cp); err != nil {
		// 壊れたエントリは捨ててmiss扱い
		_ = c.rdb.Del(ctx, productKey(id)).Err()
		return model.Product{}, false, nil
	}

	p := cp.Product
	p.Category = &model.Category{ID: p.CategoryID, Name: cp.CategoryName}
	return p, true, nil
}

func (c *RedisProductCache) Set(ctx context.Context, p model.Product) error {
	cp := cachedProduct{Product: p}
	if p.Category != nil {
		cp.CategoryName = p.Category.Name
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal product %d: %w", p.ID, err)
	}
	return c.rdb.Set(ctx, productKey(p.ID), raw, c.ttl).Err()
}

func (c *RedisProductCache) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

var _ usecase.ProductCache = (*RedisProductCache)(nil)
