package redis

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// StatsCache caches serialized report payloads in Redis. Aggregations are
// recomputed from scratch on every miss, so concurrent misses for the same
// key collapse into a single load and TTLs are jittered to keep hot keys
// from expiring in lockstep.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetOrLoad returns the cached payload for key, or runs load and caches
// its result. A Redis outage degrades to calling load directly.
func (c *StatsCache) GetOrLoad(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return payload, nil
	}
	if !errors.Is(err, redis.Nil) {
		return load(ctx)
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return payload, nil
		}

		payload, err = load(ctx)
		if err != nil {
			return nil, err
		}
		if serr := c.client.Set(ctx, key, payload, c.ttlWithJitter()).Err(); serr != nil {
			// Serving the fresh payload matters more than caching it.
			return payload, nil
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Invalidate drops cached payloads, e.g. after a submission changes a
// leaderboard.
func (c *StatsCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	_ = c.client.Del(ctx, keys...).Err()
}

func (c *StatsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
