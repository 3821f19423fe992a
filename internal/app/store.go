package app

import (
	"context"
	"fmt"

	"chatify-realtime/config"
	"chatify-realtime/internal/handler"
	chatify_redis "chatify-realtime/internal/redis"
	"chatify-realtime/internal/repository"
	"chatify-realtime/internal/store"
	"chatify-realtime/pkg/database"
	"chatify-realtime/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backends holds the connections opened for the configured drivers.
type Backends struct {
	Store  store.DocumentStore
	Redis  *redis.Client
	Checks map[string]handler.HealthCheck

	closers []func()
}

// Close releases every backend in reverse order of opening.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// OpenBackends connects the document store named by cfg.StoreDriver, plus
// Redis whenever broadcasting goes through it.
func OpenBackends(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backends, error) {
	b := &Backends{Checks: make(map[string]handler.HealthCheck)}

	if cfg.NeedsRedis() {
		client, err := chatify_redis.Connect(ctx, chatify_redis.ConfigFrom(cfg), cfg.StoreTimeout)
		if err != nil {
			return nil, err
		}
		b.Redis = client
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		log.Info("Redis connection established", zap.String("host", cfg.RedisHost))
	}

	switch cfg.StoreDriver {
	case config.StoreDriverRedis:
		b.Store = chatify_redis.NewDocumentStore(b.Redis)

	case config.StoreDriverPostgres:
		pool, err := database.Connect(ctx, cfg, log)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		if err := repository.InitSchema(ctx, pool); err != nil {
			b.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
		b.Store = repository.NewDocumentStore(pool)
		b.Checks["postgres"] = pool.Ping

	case config.StoreDriverPebble:
		ps, err := store.OpenPebble(cfg.PebblePath, nil)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = ps.Close() })
		b.Store = ps
		log.Info("Pebble store opened", zap.String("path", cfg.PebblePath))

	default:
		b.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return b, nil
}
