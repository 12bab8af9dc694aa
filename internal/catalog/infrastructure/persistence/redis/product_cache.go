package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/onlinemall/internal/catalog/domain"
)

// ProductCache 商品详情的 Redis 读缓存。
// 只缓存展示字段；库存读取不走缓存，预占时由数据库条件更新兜底。
type ProductCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewProductCache 创建商品缓存。
func NewProductCache(client redis.UniversalClient) *ProductCache {
	return &ProductCache{
		client: client,
		prefix: "catalog:product:",
		ttl:    10 * time.Minute,
	}
}

func (c *ProductCache) key(id uint) string {
	return fmt.Sprintf("%s%d", c.prefix, id)
}

// Get 读取缓存的商品，未命中返回 (nil, nil)。
func (c *ProductCache) Get(ctx context.Context, id uint) (*domain.Product, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product from redis: %w", err)
	}
	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return &p, nil
}

// Set 写入商品缓存。
func (c *ProductCache) Set(ctx context.Context, p *domain.Product) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	return c.client.Set(ctx, c.key(p.ID), data, c.ttl).Err()
}

// Invalidate 删除商品缓存，商品变更后调用。
func (c *ProductCache) Invalidate(ctx context.Context, id uint) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
