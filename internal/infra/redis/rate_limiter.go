package redis

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window per-origin counter on redis INCR, shared
// across processes. It fails open: redis trouble never blocks requests.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	clock  func() time.Time
	log    *slog.Logger
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		clock:  time.Now,
		log:    log,
	}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	bucket := l.clock().UnixNano() / int64(l.window)
	redisKey := "ratelimit:" + key + ":" + strconv.FormatInt(bucket, 10)

	n, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.log.Warn("rate limit counter failed", "err", err)
		return true
	}
	if n == 1 {
		// First hit in the window owns the expiry.
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			l.log.Warn("rate limit expire failed", "err", err)
		}
	}
	return n <= int64(l.limit)
}
