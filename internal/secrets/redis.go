package secrets

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisBackend keeps entries as fields of one redis hash.
type RedisBackend struct {
	client *redis.Client
	hash   string
}

// NewRedisBackend connects to the redis URL and verifies the connection.
func NewRedisBackend(ctx context.Context, url, hash string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisBackendWithClient(client, hash), nil
}

func NewRedisBackendWithClient(client *redis.Client, hash string) *RedisBackend {
	return &RedisBackend{client: client, hash: hash}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	v, err := b.client.HGet(ctx, b.hash, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("hget %s: %w", key, err)
	}
	return v, nil
}

func (b *RedisBackend) Put(ctx context.Context, key, value string) error {
	return b.client.HSet(ctx, b.hash, key, value).Err()
}

func (b *RedisBackend) List(ctx context.Context) (map[string]string, error) {
	return b.client.HGetAll(ctx, b.hash).Result()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
