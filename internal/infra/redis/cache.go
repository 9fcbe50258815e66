package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mentingo/mentingo-slide-service/internal/domain/port"
	goredis "github.com/redis/go-redis/v9"
)

// ArtifactCache is a bounded blob cache for encoded slide artifacts:
// entries expire after a TTL and the total entry count is trimmed by
// least-recent access, tracked in a sorted set.
type ArtifactCache struct {
	client     *goredis.Client
	ttl        time.Duration
	maxEntries int64
}

func NewArtifactCache(client *goredis.Client, ttl time.Duration, maxEntries int) *ArtifactCache {
	return &ArtifactCache{
		client:     client,
		ttl:        ttl,
		maxEntries: int64(maxEntries),
	}
}

const lruIndexKey = "artifact:lru"

func dataKey(key string) string { return "artifact:data:" + key }
func typeKey(key string) string { return "artifact:type:" + key }

func (c *ArtifactCache) Put(ctx context.Context, key string, contentType string, data []byte) error {
	now := float64(time.Now().UnixNano())

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, dataKey(key), data, c.ttl)
	pipe.Set(ctx, typeKey(key), contentType, c.ttl)
	pipe.ZAdd(ctx, lruIndexKey, goredis.Z{Score: now, Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}

	return c.trim(ctx)
}

func (c *ArtifactCache) Get(ctx context.Context, key string) ([]byte, string, error) {
	data, err := c.client.Get(ctx, dataKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		_ = c.client.ZRem(ctx, lruIndexKey, key).Err()
		return nil, "", port.ErrCacheMiss
	}
	if err != nil {
		return nil, "", fmt.Errorf("cache get %s: %w", key, err)
	}

	contentType, err := c.client.Get(ctx, typeKey(key)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, "", fmt.Errorf("cache get type %s: %w", key, err)
	}

	// Refresh recency and expiry on access.
	now := float64(time.Now().UnixNano())
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, lruIndexKey, goredis.Z{Score: now, Member: key})
	pipe.Expire(ctx, dataKey(key), c.ttl)
	pipe.Expire(ctx, typeKey(key), c.ttl)
	_, _ = pipe.Exec(ctx)

	return data, contentType, nil
}

// trim evicts the least recently accessed entries beyond the cache bound.
func (c *ArtifactCache) trim(ctx context.Context) error {
	count, err := c.client.ZCard(ctx, lruIndexKey).Result()
	if err != nil {
		return fmt.Errorf("cache trim: %w", err)
	}
	if count <= c.maxEntries {
		return nil
	}

	victims, err := c.client.ZRange(ctx, lruIndexKey, 0, count-c.maxEntries-1).Result()
	if err != nil {
		return fmt.Errorf("cache trim range: %w", err)
	}

	pipe := c.client.TxPipeline()
	for _, victim := range victims {
		pipe.Del(ctx, dataKey(victim), typeKey(victim))
		pipe.ZRem(ctx, lruIndexKey, victim)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache trim evict: %w", err)
	}
	return nil
}
