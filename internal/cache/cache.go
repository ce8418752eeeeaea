// Package cache provides fixed-window counters for login throttling, backed
// by Redis or by process memory.
package cache

import (
	"context"
	"time"
)

// RateLimiter counts hits per key inside a fixed window.
type RateLimiter interface {
	// CheckRateLimit records one hit for key and reports whether it is
	// still within limit for the current window.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// NewRateLimiter returns a Redis-backed limiter when cfg is enabled and an
// in-memory one otherwise.
func NewRateLimiter(ctx context.Context, cfg *Config) (RateLimiter, error) {
	if cfg != nil && cfg.Enabled {
		return NewRedisCache(ctx, cfg)
	}
	return NewMemoryCache(), nil
}
