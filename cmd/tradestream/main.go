package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradestream/internal/api"
	"tradestream/internal/auth"
	"tradestream/internal/cache"
	"tradestream/internal/common"
	"tradestream/internal/config"
	"tradestream/internal/database"
	"tradestream/internal/logger"
	"tradestream/internal/monitoring"
	"tradestream/internal/scheduler"
	"tradestream/internal/stability"
	"tradestream/internal/store"
	"tradestream/internal/trade"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.NewLogger(cfg.Logging.LoggerConfig()).
		WithFields(map[string]interface{}{"app": cfg.App.Name, "version": cfg.App.Version})

	if err := run(cfg, appLog); err != nil {
		appLog.Error("Server exited with error", "error", err.Error())
		os.Exit(1)
	}
}

// stores bundles the persistence backends selected by configuration.
type stores struct {
	users  store.UserStore
	trades store.TradeStore
	probe  store.Pinger
	db     *database.DB
}

func run(cfg *config.Config, appLog logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := stability.NewGracefulShutdownManager(cfg.Server.ShutdownTimeout, appLog)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	st, err := openStores(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	if st.db != nil {
		shutdown.RegisterComponent("database", 10, func(context.Context) error { return st.db.Close() })
	}

	throttle, err := cache.NewRateLimiter(ctx, &cache.Config{
		Enabled:   cfg.Redis.Enabled,
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		PoolSize:  cfg.Redis.PoolSize,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return err
	}
	shutdown.RegisterComponent("redis", 10, func(context.Context) error { return throttle.Close() })

	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.TTL(), common.SystemClock{})
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(tokens, st.users, auth.NewBcryptHasher(cfg.Security.BcryptCost), appLog,
		auth.WithFailureRecorder(metrics),
	)
	if err != nil {
		return err
	}
	tradeSvc := trade.NewService(st.trades, common.UUIDGenerator{}, common.SystemClock{}, appLog)

	var limiter *stability.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = stability.NewRateLimiter(stability.RateLimiterConfig{
			RequestsPerSec: float64(cfg.RateLimit.RequestsPerMinute) / 60,
			Burst:          cfg.RateLimit.Burst,
		})
	}

	probes := map[string]api.Prober{"store": st.probe}
	if cfg.Redis.Enabled {
		probes["redis"] = throttle
	}

	server, err := api.NewServer(cfg, api.Dependencies{
		Auth:     authSvc,
		Trades:   tradeSvc,
		Throttle: throttle,
		Limiter:  limiter,
		Metrics:  metrics,
		Probes:   probes,
		Logger:   appLog,
	})
	if err != nil {
		return err
	}
	shutdown.RegisterComponent("http", 100, server.Stop)

	sched, err := newScheduler(cfg, st, throttle, limiter, metrics, appLog)
	if err != nil {
		return err
	}
	sched.Start()
	shutdown.RegisterComponent("scheduler", 50, sched.Stop)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		appLog.Info("Shutdown signal received")
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	result := shutdown.Shutdown(shutdownCtx)
	if !result.Success {
		err = errors.Join(err, fmt.Errorf("shutdown: %v", result.Errors))
	}
	return err
}

func openStores(ctx context.Context, cfg *config.Config, appLog logger.Logger) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		appLog.Warn("Using the in-memory store, data is lost on restart")
		mem := store.NewMemoryStore()
		return &stores{users: mem, trades: mem, probe: mem}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := migrate(cfg.Database.URL, appLog); err != nil {
			return nil, err
		}
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             cfg.Database.URL,
		MaxOpen:         cfg.Database.MaxOpen,
		MaxIdle:         cfg.Database.MaxIdle,
		Timeout:         cfg.Database.Timeout,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, appLog)
	if err != nil {
		return nil, err
	}

	return &stores{
		users:  database.NewUserRepository(db, cfg.Database.UsersTable),
		trades: database.NewTradeRepository(db, cfg.Database.TradesTable),
		probe:  db,
		db:     db,
	}, nil
}

func migrate(url string, appLog logger.Logger) error {
	m, err := database.NewMigrator(url, appLog)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

func newScheduler(cfg *config.Config, st *stores, throttle cache.RateLimiter, limiter *stability.RateLimiter, metrics *monitoring.Metrics, appLog logger.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(30*time.Second, appLog)
	mon := cfg.Monitoring

	add := func(taskType scheduler.TaskType, spec string, handler scheduler.TaskHandler) error {
		if spec == "" {
			return nil
		}
		sched.RegisterHandler(taskType, handler)
		return sched.AddTask(taskType, spec)
	}

	probes := map[string]scheduler.Prober{"store": st.probe}
	if cfg.Redis.Enabled {
		probes["redis"] = throttle
	}
	if err := add(scheduler.TaskTypeHealthProbe, mon.HealthProbeSchedule, scheduler.HealthProbeTask(probes, metrics)); err != nil {
		return nil, err
	}

	if st.db != nil {
		if err := add(scheduler.TaskTypePoolStats, mon.PoolStatsSchedule, scheduler.PoolStatsTask(st.db, metrics)); err != nil {
			return nil, err
		}
	}

	var cleaners []scheduler.Cleaner
	if limiter != nil {
		cleaners = append(cleaners, limiter)
	}
	if c, ok := throttle.(scheduler.Cleaner); ok {
		cleaners = append(cleaners, c)
	}
	if len(cleaners) > 0 {
		if err := add(scheduler.TaskTypeLimiterCleanup, mon.CleanupSchedule, scheduler.CleanupTask(cleaners...)); err != nil {
			return nil, err
		}
	}

	return sched, nil
}
