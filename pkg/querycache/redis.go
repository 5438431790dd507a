package querycache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// Redis is the shared-cache implementation for multi-process deployments.
// All keys live under the "qc:" namespace; Invalidate scans the namespace
// and applies the predicate client-side since the tenant tag sits mid-key.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (c *Redis) Set(ctx context.Context, key string, value []byte) error {
	return c.rdb.Set(ctx, key, value, c.ttl).Err()
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *Redis) Invalidate(ctx context.Context, match func(string) bool) error {
	return c.Remove(ctx, match)
}

func (c *Redis) Remove(ctx context.Context, match func(string) bool) error {
	return c.scan(ctx, func(keys []string) []string {
		out := keys[:0]
		for _, k := range keys {
			if match(k) {
				out = append(out, k)
			}
		}
		return out
	})
}

func (c *Redis) Clear(ctx context.Context) error {
	return c.scan(ctx, func(keys []string) []string { return keys })
}

func (c *Redis) scan(ctx context.Context, filter func([]string) []string) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, "qc:*", scanBatch).Result()
		if err != nil {
			return err
		}
		if doomed := filter(keys); len(doomed) > 0 {
			if err := c.rdb.Del(ctx, doomed...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
