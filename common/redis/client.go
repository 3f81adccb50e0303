package redis

import (
	"context"

	"firewatch/common/config"

	"github.com/go-redis/redis/v8"
)

// Client aliases the go-redis client so callers need not import it directly.
type Client = redis.Client

// NewRedisClient builds a client from shared connection settings.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping checks connectivity.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close releases the client's connection pool.
func Close(client *redis.Client) error {
	return client.Close()
}
