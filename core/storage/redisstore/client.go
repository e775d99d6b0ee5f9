// Package redisstore keeps conversation states in Redis and provides a
// cross-process per-chat lock on top of the same connection.
package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/calcbot/core/logger"
)

// Client is the subset of Redis commands the store and locker need.
type Client interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// CompareAndDelete deletes key only while it still holds value.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	// CompareAndExpire resets the TTL of key only while it still holds value.
	CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Close() error
}

var _ Client = (*redisClient)(nil)

type redisClient struct {
	cli *redis.Client
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

var luaExtend = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

// Open parses a redis:// or rediss:// URL, connects and pings.
func Open(ctx context.Context, address string) (Client, error) {
	opts, err := redis.ParseURL(address)
	if err != nil {
		return nil, fmt.Errorf("redis: parse address: %w", err)
	}
	start := time.Now()
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		logger.Error(ctx, "store", "redis.connect",
			slog.String("status", "error"),
			slog.String("addr", opts.Addr),
			slog.Duration("took", logger.Took(start)),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	logger.Info(ctx, "store", "redis.connect",
		slog.String("status", "ok"),
		slog.String("driver", "redis"),
		slog.String("addr", opts.Addr),
		slog.Int("db", opts.DB),
		slog.Duration("took", logger.Took(start)),
	)
	return &redisClient{cli: c}, nil
}

// NewClient wraps an already configured go-redis client.
func NewClient(c *redis.Client) Client { return &redisClient{cli: c} }

func (c *redisClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *redisClient) Get(ctx context.Context, key string) ([]byte, error) {
	return c.cli.Get(ctx, key).Bytes()
}

func (c *redisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.cli.Set(ctx, key, value, ttl).Err()
}

func (c *redisClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.cli.SetNX(ctx, key, value, ttl).Result()
}

func (c *redisClient) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := luaUnlock.Run(ctx, c.cli, []string{key}, value).Int64()
	return n == 1, err
}

func (c *redisClient) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	n, err := luaExtend.Run(ctx, c.cli, []string{key}, value, ttl.Milliseconds()).Int64()
	return n == 1, err
}

func (c *redisClient) Close() error { return c.cli.Close() }
