// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides a managed client for volatile counters.

The only consumer is the password-reset attempt throttle: per-email counters
with a fixed window TTL. Reset Request state itself is never kept here; it
lives in the relational store so single-use consumption stays transactional.
*/
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle calls sit on the reset request path and fail open, so a slow
// Redis must give up quickly instead of retrying into the request deadline.
const (
	dialTimeout  = time.Second
	readTimeout  = 500 * time.Millisecond
	writeTimeout = 500 * time.Millisecond
	pingTimeout  = 2 * time.Second

	poolSize     = 10
	minIdleConns = 2
	maxRetries   = 1

	clientName = "ecgscan-throttle"
)

// Options parses redisURL and applies the throttle client tuning.
func Options(redisURL string) (*redis.Options, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	options.ClientName = clientName
	options.PoolSize = poolSize
	options.MinIdleConns = minIdleConns
	options.MaxRetries = maxRetries
	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	return options, nil
}

// NewClient connects to redisURL and pings it once.
//
// A failed ping at startup is an error even though throttling fails open
// later: a misconfigured REDIS_URL should stop the deploy.
func NewClient(ctx context.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := Options(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)
	if err := Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Int("pool_size", options.PoolSize),
	)

	return client, nil
}

// Ping verifies that the Redis client is healthy.
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}
	return nil
}
