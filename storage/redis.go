package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is a Redis-backed store backend.
type RedisBackend struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// RedisConfig holds configuration for the Redis backend.
type RedisConfig struct {
	URL       string // Redis connection URL (e.g., "redis://localhost:6379")
	TTL       int    // TTL in seconds (0 = no expiration)
	KeyPrefix string // Prefix for all keys (default: "lexicache:")
}

// NewRedisBackend creates a Redis backend. No connection is made until the
// first operation.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	return NewRedisBackendFromClient(redis.NewClient(opts), cfg.TTL, cfg.KeyPrefix), nil
}

// NewRedisBackendFromClient creates a RedisBackend from an existing Redis client.
func NewRedisBackendFromClient(client *redis.Client, ttlSeconds int, keyPrefix string) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = "lexicache:"
	}

	ttl := time.Duration(ttlSeconds) * time.Second
	if ttlSeconds <= 0 {
		ttl = 0
	}

	return &RedisBackend{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a value from Redis.
func (b *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	val, err := b.client.Get(ctx, b.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", &Error{Op: "get", Key: key, Cause: err}
	}
	return val, nil
}

// Set stores a value in Redis.
func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := b.client.Set(ctx, b.keyPrefix+key, value, b.ttl).Err(); err != nil {
		return &Error{Op: "set", Key: key, Cause: err}
	}
	return nil
}

// Remove deletes a value from Redis.
func (b *RedisBackend) Remove(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.keyPrefix+key).Err(); err != nil {
		return &Error{Op: "remove", Key: key, Cause: err}
	}
	return nil
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// Ping tests the Redis connection.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Verify RedisBackend implements Backend
var _ Backend = (*RedisBackend)(nil)
