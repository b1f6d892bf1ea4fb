package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter shares rate-limit windows across server processes.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(redisURL string) (*RedisCounter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCounter{client: client}, nil
}

var _ Counter = (*RedisCounter)(nil)

// Incr bumps the window counter, setting the expiry when the key is new. The
// INCR and EXPIRE are not one atomic unit; the worst case after a crash
// between them is a key with no expiry, which NX repair below resets on the
// next request.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	} else {
		// Repair keys that lost their expiry.
		c.client.ExpireNX(ctx, key, window)
	}
	return n, nil
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}
