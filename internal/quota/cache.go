package quota

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DecisionCache is the injected read cache for usage gate decisions. A
// failing cache degrades to store reads; implementations must never turn a
// cache problem into a caller-visible error.
type DecisionCache interface {
	Get(ctx context.Context, userID string, kind Kind) (*Decision, bool)
	Set(ctx context.Context, userID string, kind Kind, decision *Decision)
	Invalidate(ctx context.Context, userID string, kind Kind)
}

// redisCache stores decisions under usage:<userID>:<kind> with a fixed TTL,
// so a horizontally-scaled deployment shares one guard view.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) DecisionCache {
	return &redisCache{client: client, ttl: ttl}
}

func cacheKey(userID string, kind Kind) string {
	return "usage:" + userID + ":" + string(kind)
}

func (c *redisCache) Get(ctx context.Context, userID string, kind Kind) (*Decision, bool) {
	val, err := c.client.Get(ctx, cacheKey(userID, kind)).Result()
	if err != nil {
		return nil, false
	}
	var decision Decision
	if err := json.Unmarshal([]byte(val), &decision); err != nil {
		return nil, false
	}
	return &decision, true
}

func (c *redisCache) Set(ctx context.Context, userID string, kind Kind, decision *Decision) {
	data, err := json.Marshal(decision)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(userID, kind), data, c.ttl)
}

func (c *redisCache) Invalidate(ctx context.Context, userID string, kind Kind) {
	c.client.Del(ctx, cacheKey(userID, kind))
}
