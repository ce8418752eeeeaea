package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache represents Redis cache implementation
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// Config represents Redis configuration
type Config struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// NewRedisCache connects to Redis and pings it.
func NewRedisCache(ctx context.Context, cfg *Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "tradestream:"
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

// CheckRateLimit increments the window counter for key. The first hit of a
// window sets its expiry.
func (r *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := r.keyPrefix + "ratelimit:" + key

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expiry: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Reset clears the counter for key.
func (r *RedisCache) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+"ratelimit:"+key).Err()
}

// HealthCheck performs a health check
func (r *RedisCache) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
