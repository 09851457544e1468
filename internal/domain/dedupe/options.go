package dedupe

import "time"

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of ids kept in memory.
// If maxSize > 0 the oldest id is forgotten first once full.
// If maxSize <= 0 every id is kept.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// RedisOption applies a configuration option to the Redis deduper.
type RedisOption func(*redisDeduper)

// WithKeyPrefix namespaces the Redis keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(d *redisDeduper) {
		if prefix != "" {
			d.prefix = prefix
		}
	}
}

// WithTTL sets how long an id is remembered.
func WithTTL(ttl time.Duration) RedisOption {
	return func(d *redisDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}
