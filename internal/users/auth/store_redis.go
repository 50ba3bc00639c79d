// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/ecgscan/internal/platform/apperr"
	"github.com/taibuivan/ecgscan/internal/platform/constants"
)

// RedisAttemptLimiter implements [AttemptLimiter] with fixed-window counters.
//
// Each key lives under [constants.RedisPrefixResetAttempt] and expires one
// window after its first hit. Redis outages fail open: the counter is a
// brake on guessing, not part of reset request state.
type RedisAttemptLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	logger *slog.Logger
}

// NewRedisAttemptLimiter creates a Redis-backed [AttemptLimiter].
func NewRedisAttemptLimiter(client *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RedisAttemptLimiter {
	return &RedisAttemptLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		logger: logger,
	}
}

/*
Allow counts one attempt for key.

Returns:
  - error: apperr.RateLimited once more than limit attempts hit the window, nil otherwise
*/
func (limiter *RedisAttemptLimiter) Allow(ctx context.Context, key string) error {
	redisKey := constants.RedisPrefixResetAttempt + key

	count, err := limiter.client.Incr(ctx, redisKey).Result()
	if err != nil {
		limiter.logger.WarnContext(ctx, "reset_attempt_counter_unavailable", slog.Any("error", err))
		return nil
	}

	// First hit opens the window.
	if count == 1 {
		if err := limiter.client.Expire(ctx, redisKey, limiter.window).Err(); err != nil {
			limiter.logger.WarnContext(ctx, "reset_attempt_expire_failed", slog.Any("error", err))
		}
	}

	if count <= limiter.limit {
		return nil
	}

	ttl, err := limiter.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = limiter.window
	}
	return apperr.RateLimited(retryAfterSeconds(ttl))
}

// retryAfterSeconds rounds a remaining window up to whole seconds, minimum 1.
func retryAfterSeconds(remaining time.Duration) int {
	return max(1, int(math.Ceil(remaining.Seconds())))
}
