package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"tradestream/internal/logger"

	_ "github.com/lib/pq"
)

// DB represents the database connection
type DB struct {
	*sql.DB
	config *Config
	log    logger.Logger

	mu    sync.RWMutex
	stats *PoolStats
}

// Config represents database configuration
type Config struct {
	URL             string
	MaxOpen         int
	MaxIdle         int
	Timeout         time.Duration
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingRetries     int
}

// PoolStats represents connection pool statistics
type PoolStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	MaxIdleClosed      int64
	MaxLifetimeClosed  int64
	LastUpdated        time.Time
}

func (cfg *Config) applyDefaults() {
	if cfg.MaxOpen <= 0 {
		cfg.MaxOpen = 25 // 默认最大连接数
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5 // 默认空闲连接数
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second // 默认连接超时
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = time.Hour
	}
	if cfg.ConnMaxIdleTime <= 0 {
		cfg.ConnMaxIdleTime = 15 * time.Minute
	}
	if cfg.PingRetries <= 0 {
		cfg.PingRetries = 3
	}
}

// NewConnection opens a PostgreSQL pool from a postgres:// URL and pings it
// with increasing back-off.
func NewConnection(ctx context.Context, cfg *Config, log logger.Logger) (*DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	cfg.applyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithField("component", "database")

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	var pingErr error
	for i := 0; i < cfg.PingRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		pingErr = db.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			break
		}

		log.Warn("Database ping failed", "attempt", i+1, "max_attempts", cfg.PingRetries, "error", pingErr.Error())
		if i < cfg.PingRetries-1 {
			select {
			case <-time.After(time.Second * time.Duration(i+1)): // 递增延迟
			case <-ctx.Done():
				db.Close()
				return nil, ctx.Err()
			}
		}
	}
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database after %d attempts: %w", cfg.PingRetries, pingErr)
	}

	log.Info("Database connection established",
		"max_open", cfg.MaxOpen,
		"max_idle", cfg.MaxIdle,
		"max_lifetime", cfg.ConnMaxLifetime.String(),
		"max_idle_time", cfg.ConnMaxIdleTime.String(),
	)

	return &DB{
		DB:     db,
		config: cfg,
		log:    log,
		stats:  &PoolStats{},
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// GetPoolStats returns the last collected pool statistics
func (db *DB) GetPoolStats() *PoolStats {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stats := *db.stats
	return &stats
}

// CollectPoolStats refreshes pool statistics from database/sql and logs
// signs of pressure. The maintenance scheduler calls it periodically.
func (db *DB) CollectPoolStats() *PoolStats {
	s := db.DB.Stats()

	db.mu.Lock()
	db.stats = &PoolStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
		MaxIdleClosed:      s.MaxIdleClosed,
		MaxLifetimeClosed:  s.MaxLifetimeClosed,
		LastUpdated:        time.Now(),
	}
	stats := *db.stats
	db.mu.Unlock()

	if s.WaitCount > 0 {
		db.log.Warn("Database connection pool under pressure",
			"wait_count", s.WaitCount,
			"wait_duration", s.WaitDuration.String(),
			"in_use", s.InUse,
			"idle", s.Idle,
		)
	}
	return &stats
}

// IsHealthy checks if the database connection pool is healthy
func (db *DB) IsHealthy() bool {
	return poolHealthy(db.GetPoolStats())
}

func poolHealthy(stats *PoolStats) bool {
	// 使用超过80%的连接视为不健康
	if stats.MaxOpenConnections > 0 && stats.InUse > stats.MaxOpenConnections*80/100 {
		return false
	}
	return stats.WaitCount <= 100
}
