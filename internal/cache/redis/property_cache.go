package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brickfolio/brickfolio/internal/domain"
)

const propertyTTL = 2 * time.Minute

// PropertyCache is a read-through cache for property inventories, used by the
// read-only API paths. Mutating paths never read from it; token accounting
// always goes to the store.
//
// Key schema:
//
//	property:{id} - JSON-serialized Property
type PropertyCache struct {
	rdb *redis.Client
}

// NewPropertyCache creates a PropertyCache backed by the given Client.
func NewPropertyCache(c *Client) *PropertyCache {
	return &PropertyCache{rdb: c.Underlying()}
}

func propertyKey(id string) string { return "property:" + id }

// Set stores a property with a short TTL.
func (pc *PropertyCache) Set(ctx context.Context, p domain.Property) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal property %s: %w", p.ID, err)
	}
	if err := pc.rdb.Set(ctx, propertyKey(p.ID), data, propertyTTL).Err(); err != nil {
		return fmt.Errorf("redis: set property %s: %w", p.ID, err)
	}
	return nil
}

// Get retrieves a property by id. It returns domain.ErrNotFound on a cache
// miss.
func (pc *PropertyCache) Get(ctx context.Context, id string) (domain.Property, error) {
	data, err := pc.rdb.Get(ctx, propertyKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Property{}, domain.ErrNotFound
		}
		return domain.Property{}, fmt.Errorf("redis: get property %s: %w", id, err)
	}

	var p domain.Property
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Property{}, fmt.Errorf("redis: unmarshal property %s: %w", id, err)
	}
	return p, nil
}

// Invalidate drops a property from the cache, typically after a mutation.
func (pc *PropertyCache) Invalidate(ctx context.Context, id string) error {
	if err := pc.rdb.Del(ctx, propertyKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate property %s: %w", id, err)
	}
	return nil
}
