// Package ratelimit throttles repeated failed password grants per username.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "identity:grant:password:"

// Limiter counts failed attempts in a fixed window stored in redis. Redis
// failures never block a login; they are logged and the attempt is allowed.
type Limiter struct {
	redis       *redis.Client
	maxAttempts int64
	window      time.Duration
	logger      *slog.Logger
}

// NewLimiter creates a limiter allowing maxAttempts failures per window.
func NewLimiter(client *redis.Client, maxAttempts int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		redis:       client,
		maxAttempts: int64(maxAttempts),
		window:      window,
		logger:      logger,
	}
}

// key hashes the normalized username so raw identifiers never reach redis.
func (l *Limiter) key(username string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(username))))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// Allow reports whether another attempt for username may proceed.
func (l *Limiter) Allow(ctx context.Context, username string) bool {
	count, err := l.redis.Get(ctx, l.key(username)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.logger.WarnContext(ctx, "login limiter unavailable, allowing attempt", slog.String("error", err.Error()))
		}
		return true
	}
	return count < l.maxAttempts
}

// RecordFailure counts a failed attempt. The window starts at the first
// failure.
func (l *Limiter) RecordFailure(ctx context.Context, username string) {
	key := l.key(username)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		l.logger.WarnContext(ctx, "failed to record login failure", slog.String("error", err.Error()))
		return
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.WarnContext(ctx, "failed to set login failure window", slog.String("error", err.Error()))
		}
	}
}

// Reset clears the failure count after a successful login.
func (l *Limiter) Reset(ctx context.Context, username string) {
	if err := l.redis.Del(ctx, l.key(username)).Err(); err != nil {
		l.logger.WarnContext(ctx, "failed to reset login failures", slog.String("error", err.Error()))
	}
}
