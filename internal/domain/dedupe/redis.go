package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultRedisKeyPrefix = "scoreline:feed:event:"
	defaultRedisTTL       = 7 * 24 * time.Hour
)

// redisDeduper shares seen ids between service instances. Entries expire
// after ttl instead of being evicted by count.
type redisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper backed by client.
func NewRedisDeduper(client *redis.Client, opts ...RedisOption) Deduper {
	d := &redisDeduper{client: client, prefix: defaultRedisKeyPrefix, ttl: defaultRedisTTL}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *redisDeduper) SeenAndRecord(ctx context.Context, id string) (bool, error) {
	created, err := d.client.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("recording event %s: %w", id, err)
	}
	return !created, nil
}

func (d *redisDeduper) Unrecord(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, d.prefix+id).Err(); err != nil {
		return fmt.Errorf("forgetting event %s: %w", id, err)
	}
	return nil
}

// Size counts keys under the prefix. It scans the keyspace, so callers
// should only use it for stats.
func (d *redisDeduper) Size(ctx context.Context) int64 {
	var (
		n      int64
		cursor uint64
	)
	for {
		keys, next, err := d.client.Scan(ctx, cursor, d.prefix+"*", 1000).Result()
		if err != nil {
			return n
		}
		n += int64(len(keys))
		if next == 0 {
			return n
		}
		cursor = next
	}
}
