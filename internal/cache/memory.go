package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache keeps fixed-window counters in process memory. It is used when
// Redis is disabled and only limits a single process.
type MemoryCache struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	count   int
	expires time.Time
}

// NewMemoryCache creates an empty counter set.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// CheckRateLimit implements RateLimiter.
func (mc *MemoryCache) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	w, ok := mc.windows[key]
	if !ok || !now.Before(w.expires) {
		w = &memoryWindow{expires: now.Add(window)}
		mc.windows[key] = w
	}
	w.count++

	return w.count <= limit, nil
}

// Cleanup removes expired windows.
func (mc *MemoryCache) Cleanup() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	removed := 0
	for k, w := range mc.windows {
		if !now.Before(w.expires) {
			delete(mc.windows, k)
			removed++
		}
	}
	return removed
}

// HealthCheck always succeeds.
func (mc *MemoryCache) HealthCheck(context.Context) error {
	return nil
}

// Close is a no-op.
func (mc *MemoryCache) Close() error {
	return nil
}
