package main

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	redisguard "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/sqlstore"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/redis/go-redis/v9"
)

// backend is the storage selected by STORE_DRIVER.
type backend struct {
	uow     application.UnitOfWork
	catalog catalog.Catalog
	seed    func(context.Context) error
	ping    func(context.Context) error
	close   func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger observability.Logger) (*backend, error) {
	listings := catalog.DefaultListings()

	if cfg.StoreDriver == config.DriverMemory {
		store, cat := memory.NewStore(), memory.NewCatalog()
		logger.Info("store_opened", observability.F("driver", cfg.StoreDriver))
		return &backend{
			uow:     store,
			catalog: cat,
			seed:    func(ctx context.Context) error { return memory.Seed(ctx, store, cat, listings) },
			ping:    func(context.Context) error { return nil },
			close:   func() {},
		}, nil
	}

	store, err := sqlstore.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	logger.Info("store_opened", observability.F("driver", cfg.StoreDriver))
	return &backend{
		uow:     store,
		catalog: store.Catalog(),
		seed:    func(ctx context.Context) error { return store.Seed(ctx, listings) },
		ping:    store.Ping,
		close: func() {
			if err := store.Close(); err != nil {
				logger.Warn("store_close_failed", observability.F("error", err))
			}
		},
	}, nil
}

// openGuard returns the Redis guard when REDIS_ADDR is set, the in-process guard otherwise.
func openGuard(ctx context.Context, cfg *config.Config, logger observability.Logger) (application.CheckoutGuard, func(), error) {
	if cfg.RedisAddr == "" {
		return memory.NewGuard(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	guard := redisguard.NewGuard(client, cfg.CheckoutGuardTTL)
	if err := guard.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("checkout_guard_redis", observability.F("addr", cfg.RedisAddr))
	return guard, func() { _ = client.Close() }, nil
}
