package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campustrade/market-api/internal/domain"
)

const itemKeyPrefix = "item:"

// ItemCache keeps item detail pages in Redis for a short TTL. Stock on
// a cached item can be slightly stale; order creation never consults the
// cache, only the database row.
type ItemCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewItemCache(client *redis.Client, ttl time.Duration) *ItemCache {
	return &ItemCache{client: client, ttl: ttl}
}

// Get returns the cached item, or nil on a miss.
func (c *ItemCache) Get(ctx context.Context, id string) (*domain.Item, error) {
	data, err := c.client.Get(ctx, itemKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var item domain.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}

	return &item, nil
}

func (c *ItemCache) Set(ctx context.Context, item *domain.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, itemKeyPrefix+item.ID, data, c.ttl).Err()
}

func (c *ItemCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, itemKeyPrefix+id).Err()
}
