package scheduler

import (
	"context"
	"errors"
	"fmt"

	"tradestream/internal/database"
)

// Prober is a dependency with a health check.
type Prober interface {
	HealthCheck(ctx context.Context) error
}

// HealthReporter receives probe outcomes.
type HealthReporter interface {
	SetDependencyHealth(name string, up bool)
}

// PoolReporter receives database pool statistics.
type PoolReporter interface {
	RecordPoolStats(stats *database.PoolStats)
}

// HealthProbeTask probes every dependency and reports each result. The
// returned error joins all failures.
func HealthProbeTask(deps map[string]Prober, reporter HealthReporter) TaskHandler {
	return TaskHandlerFunc(func(ctx context.Context) error {
		var errs []error
		for name, dep := range deps {
			err := dep.HealthCheck(ctx)
			reporter.SetDependencyHealth(name, err == nil)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
		return errors.Join(errs...)
	})
}

// PoolStatsTask refreshes and publishes database pool statistics.
func PoolStatsTask(db *database.DB, reporter PoolReporter) TaskHandler {
	return TaskHandlerFunc(func(context.Context) error {
		reporter.RecordPoolStats(db.CollectPoolStats())
		return nil
	})
}

// Cleaner drops expired per-key state.
type Cleaner interface {
	Cleanup() int
}

// CleanupTask runs Cleanup on every cleaner.
func CleanupTask(cleaners ...Cleaner) TaskHandler {
	return TaskHandlerFunc(func(context.Context) error {
		for _, c := range cleaners {
			c.Cleanup()
		}
		return nil
	})
}
