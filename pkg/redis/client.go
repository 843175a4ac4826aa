package redis

import (
	"context"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/config"
	"github.com/redis/go-redis/v9"
)

// Nil is returned by reads of missing keys.
const Nil = redis.Nil

// Client is a thin wrapper over go-redis exposing the calls the agent needs.
type Client struct {
	cli *redis.Client
}

func NewClient(cfg config.RedisConfig) (*Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	return &Client{cli: cli}, nil
}

// Wrap adapts an existing go-redis client, mostly for tests.
func Wrap(cli *redis.Client) *Client {
	return &Client{cli: cli}
}

func (c *Client) GetClient() *redis.Client {
	return c.cli
}

func (c *Client) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.cli.HGetAll(ctx, key).Result()
}

func (c *Client) Exists(ctx context.Context, key string) (int64, error) {
	return c.cli.Exists(ctx, key).Result()
}

func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.cli.TTL(ctx, key).Result()
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.cli.Publish(ctx, channel, payload).Err()
}

func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.cli.Subscribe(ctx, channels...)
}

func (c *Client) Close() error {
	return c.cli.Close()
}
