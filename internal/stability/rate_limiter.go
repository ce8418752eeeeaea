package stability

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig 限流器配置
type RateLimiterConfig struct {
	RequestsPerSec float64
	Burst          int
	// IdleTTL is how long an unused per-key limiter is kept.
	IdleTTL time.Duration
}

// DefaultRateLimiterConfig 默认配置: 每秒10个请求, 突发20个
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSec: 10,
		Burst:          20,
		IdleTTL:        10 * time.Minute,
	}
}

// RateLimiter 按键限流 (token bucket per key, usually the client IP)
type RateLimiter struct {
	mu       sync.Mutex
	config   RateLimiterConfig
	limiters map[string]*keyedLimiter
	stats    RateLimitStats
	now      func() time.Time
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitStats 限流统计
type RateLimitStats struct {
	Allowed int64
	Limited int64
	Keys    int
}

// NewRateLimiter 创建限流器
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	def := DefaultRateLimiterConfig()
	if config.RequestsPerSec <= 0 {
		config.RequestsPerSec = def.RequestsPerSec
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}
	return &RateLimiter{
		config:   config,
		limiters: make(map[string]*keyedLimiter),
		now:      time.Now,
	}
}

// Allow 检查请求是否允许
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	kl, ok := rl.limiters[key]
	if !ok {
		kl = &keyedLimiter{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSec), rl.config.Burst)}
		rl.limiters[key] = kl
	}
	kl.lastSeen = now

	allowed := kl.limiter.AllowN(now, 1)
	if allowed {
		rl.stats.Allowed++
	} else {
		rl.stats.Limited++
	}
	return allowed
}

// Cleanup 清理空闲的限流器, returns how many were removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.IdleTTL)
	removed := 0
	for key, kl := range rl.limiters {
		if kl.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// GetStats 获取统计信息
func (rl *RateLimiter) GetStats() RateLimitStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := rl.stats
	stats.Keys = len(rl.limiters)
	return stats
}
