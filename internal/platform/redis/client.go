// Package redis dials the connection behind the fixed-window rate-limit
// store. Redis is optional; callers fall back to in-memory limiting when no
// URL is configured.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"greengate/internal/platform/config"
)

// Client exposes Health so the transport layer can report limiter
// degradation alongside the other dependency checks.
type Client struct {
	*redis.Client
}

// New dials Redis and verifies the connection with a ping. The limiter only
// issues short counter pipelines, so a single command timeout covers reads
// and writes.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.CommandTimeout
	opts.WriteTimeout = cfg.CommandTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
