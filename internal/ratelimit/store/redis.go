package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"greengate/internal/ratelimit/models"
)

// Redis is a fixed-window counter shared across instances. Keys carry the
// window start so counts expire with the window and need no sweeper.
type Redis struct {
	client     *redis.Client
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

func NewRedis(client *redis.Client, limit int, windowSize time.Duration) *Redis {
	return &Redis{client: client, limit: limit, windowSize: windowSize, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string) (models.Result, error) {
	now := r.now()
	windowStart := now.Truncate(r.windowSize)
	resetAt := windowStart.Add(r.windowSize)
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart.Unix())

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, r.windowSize)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Result{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	if count > r.limit {
		return models.Result{
			Allowed:    false,
			Limit:      r.limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}
	return models.Result{
		Allowed:   true,
		Limit:     r.limit,
		Remaining: r.limit - count,
		ResetAt:   resetAt,
	}, nil
}
