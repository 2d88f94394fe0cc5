package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/utils"
)

// RefreshChannel carries refresh-completed notifications for anyone
// watching dataset freshness (dashboards, cache warmers).
const RefreshChannel = "peanut:refresh.completed"

// Client wraps the Redis client for best-effort event notifications. A nil
// *Client is valid and publishes nothing: the service runs degraded when
// Redis never comes up.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client from environment configuration:
// REDIS_HOST (default "localhost"), REDIS_PORT (default "6379"),
// REDIS_PASSWORD, REDIS_DB.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis", zap.String("addr", addr), zap.Int("db", db))

	return &Client{client: rdb, logger: logger}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Publish publishes a message to a Pub/Sub channel. Best-effort: errors are
// logged, never returned, so event delivery cannot fail a refresh cycle.
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) {
	if c == nil {
		return
	}
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Warn("Failed to publish Redis message",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("redis not configured")
	}
	return c.client.Ping(ctx).Err()
}
