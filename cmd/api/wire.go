// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/ecgscan/internal/api"
	"github.com/taibuivan/ecgscan/internal/notify"
	"github.com/taibuivan/ecgscan/internal/platform/config"
	"github.com/taibuivan/ecgscan/internal/platform/migration"
	"github.com/taibuivan/ecgscan/internal/platform/mq"
	pgstore "github.com/taibuivan/ecgscan/internal/platform/postgres"
	redisstore "github.com/taibuivan/ecgscan/internal/platform/redis"
	"github.com/taibuivan/ecgscan/internal/platform/sqlite"
	"github.com/taibuivan/ecgscan/internal/users/auth"
)

// # Credential Store

// stores bundles the repositories of the configured driver with its
// readiness probe and teardown.
type stores struct {
	users  auth.UserRepository
	resets auth.ResetRepository
	check  *api.Check
	close  func()
}

// openStores connects the configured store. When migrate is set, pending
// migrations are applied before the repositories are returned.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger, migrate bool) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}

		if migrate {
			if err := migration.RunPostgres(cfg.DatabaseURL, migration.Up, log); err != nil {
				pool.Close()
				return nil, err
			}
		}

		return &stores{
			users:  auth.NewPostgresUserRepository(pool),
			resets: auth.NewPostgresResetRepository(pool),
			check: &api.Check{Name: "postgres", Probe: func(ctx context.Context) error {
				return pgstore.Ping(ctx, pool)
			}},
			close: func() {
				log.Info("closing_postgres_pool")
				pool.Close()
			},
		}, nil

	case config.StoreDriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}

		if migrate {
			if err := migration.RunSQLite(db, migration.Up, log); err != nil {
				_ = db.Close()
				return nil, err
			}
		}

		return &stores{
			users:  auth.NewSQLiteUserRepository(db),
			resets: auth.NewSQLiteResetRepository(db),
			check: &api.Check{Name: "sqlite", Probe: func(ctx context.Context) error {
				return sqlite.Ping(ctx, db)
			}},
			close: func() { closeSQLite(log, db) },
		}, nil
	}

	return nil, fmt.Errorf("store driver %q is not supported", cfg.StoreDriver)
}

func closeSQLite(log *slog.Logger, db *sql.DB) {
	log.Info("closing_sqlite_database")
	if err := db.Close(); err != nil {
		log.Error("sqlite_close_failed", slog.Any("error", err))
	}
}

// runMigrations moves the configured store's schema one way or the other.
func runMigrations(ctx context.Context, cfg *config.Config, log *slog.Logger, direction migration.Direction) error {
	if cfg.StoreDriver == config.StoreDriverPostgres {
		return migration.RunPostgres(cfg.DatabaseURL, direction, log)
	}

	db, err := sqlite.Open(ctx, cfg.SQLitePath, log)
	if err != nil {
		return err
	}
	defer closeSQLite(log, db)

	return migration.RunSQLite(db, direction, log)
}

// # Attempt Throttle

// openLimiter connects Redis when throttling is configured. Without
// REDIS_URL the returned limiter and check are nil.
func openLimiter(ctx context.Context, cfg *config.Config, log *slog.Logger) (auth.AttemptLimiter, *api.Check, func(), error) {
	if !cfg.ThrottlingEnabled() {
		log.Warn("reset_throttling_disabled", slog.String("reason", "REDIS_URL is not set"))
		return nil, nil, func() {}, nil
	}

	client, err := redisstore.NewClient(ctx, cfg.RedisURL, log)
	if err != nil {
		return nil, nil, nil, err
	}

	limiter := auth.NewRedisAttemptLimiter(client, cfg.ResetAttemptLimit, cfg.ResetAttemptWindow, log)
	check := &api.Check{Name: "redis", Probe: func(ctx context.Context) error {
		return redisstore.Ping(ctx, client)
	}}

	return limiter, check, func() { closeRedis(log, client) }, nil
}

func closeRedis(log *slog.Logger, client *goredis.Client) {
	log.Info("closing_redis_client")
	if err := client.Close(); err != nil {
		log.Error("redis_close_failed", slog.Any("error", err))
	}
}

// # Notification Sink

// openNotifier builds the reset-code sink for the configured backend.
func openNotifier(ctx context.Context, cfg *config.Config, log *slog.Logger) (notify.Sink, func(), error) {
	var (
		backend mq.Backend
		err     error
	)

	switch cfg.NotifyBackend {
	case config.NotifyBackendLog:
		log.Warn("reset_codes_logged", slog.String("reason", "NOTIFY_BACKEND=log"))
		return notify.NewLogSink(log), func() {}, nil
	case config.NotifyBackendRabbitMQ:
		backend, err = mq.NewRabbitMQClient(cfg.RabbitMQURL)
	case config.NotifyBackendPubSub:
		backend, err = mq.NewPubSubClient(ctx, cfg.PubSubProjectID)
	default:
		err = fmt.Errorf("notify backend %q is not supported", cfg.NotifyBackend)
	}
	if err != nil {
		return nil, nil, err
	}

	log.Info("notify_backend_connected",
		slog.String("backend", cfg.NotifyBackend),
		slog.String("topic", cfg.ResetTopic),
	)

	sink := notify.NewQueueSink(backend, cfg.ResetTopic, log)
	return sink, func() {
		log.Info("closing_notify_backend")
		if err := sink.Close(); err != nil {
			log.Error("notify_backend_close_failed", slog.Any("error", err))
		}
	}, nil
}

