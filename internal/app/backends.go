package service

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/okian/scoreline/internal/adapters/repository"
	"github.com/okian/scoreline/internal/config"
	"github.com/okian/scoreline/internal/domain/dedupe"
)

// Backends are the storage components selected by configuration.
type Backends struct {
	Store   repository.Store
	Deduper dedupe.Deduper
}

// OpenBackends connects the store named by cfg.Store. The Redis backend also
// provides a shared deduper so several instances agree on seen feed events.
func OpenBackends(ctx context.Context, cfg *config.Config) (Backends, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := repository.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return Backends{}, fmt.Errorf("postgres store: %w", err)
		}
		return Backends{
			Store:   store,
			Deduper: dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize)),
		}, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store, err := repository.NewRedisStore(ctx, client)
		if err != nil {
			_ = client.Close()
			return Backends{}, fmt.Errorf("redis store: %w", err)
		}
		return Backends{Store: store, Deduper: dedupe.NewRedisDeduper(client)}, nil

	case config.StoreMemory, "":
		return Backends{
			Store:   repository.NewMemoryStore(),
			Deduper: dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize)),
		}, nil
	}
	return Backends{}, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
}
