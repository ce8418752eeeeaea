package stability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradestream/internal/logger"
)

// ShutdownComponent represents a component that needs graceful shutdown
type ShutdownComponent struct {
	Name         string
	Priority     int
	ShutdownFunc func(ctx context.Context) error
	Timeout      time.Duration
}

// ShutdownResult represents the result of shutdown process
type ShutdownResult struct {
	Success  bool
	Duration time.Duration
	Errors   []string
}

// GracefulShutdownManager stops registered components, highest priority
// first.
type GracefulShutdownManager struct {
	mu               sync.Mutex
	components       []*ShutdownComponent
	componentTimeout time.Duration
	isShuttingDown   bool
	log              logger.Logger
}

// NewGracefulShutdownManager creates a new graceful shutdown manager
func NewGracefulShutdownManager(componentTimeout time.Duration, log logger.Logger) *GracefulShutdownManager {
	if componentTimeout <= 0 {
		componentTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &GracefulShutdownManager{
		componentTimeout: componentTimeout,
		log:              log.WithField("component", "shutdown"),
	}
}

// RegisterComponent registers a component for graceful shutdown
func (gsm *GracefulShutdownManager) RegisterComponent(name string, priority int, fn func(ctx context.Context) error) {
	gsm.mu.Lock()
	defer gsm.mu.Unlock()

	gsm.components = append(gsm.components, &ShutdownComponent{
		Name:         name,
		Priority:     priority,
		ShutdownFunc: fn,
		Timeout:      gsm.componentTimeout,
	})
	gsm.log.Debug("Registered shutdown component", "name", name, "priority", priority)
}

// Shutdown runs every component once. Later calls return an error result.
func (gsm *GracefulShutdownManager) Shutdown(ctx context.Context) *ShutdownResult {
	gsm.mu.Lock()
	if gsm.isShuttingDown {
		gsm.mu.Unlock()
		return &ShutdownResult{Errors: []string{"Shutdown already in progress"}}
	}
	gsm.isShuttingDown = true
	components := append([]*ShutdownComponent(nil), gsm.components...)
	gsm.mu.Unlock()

	sort.SliceStable(components, func(i, j int) bool {
		return components[i].Priority > components[j].Priority
	})

	start := time.Now()
	result := &ShutdownResult{Success: true}
	for _, c := range components {
		if ctx.Err() != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: shutdown cancelled", c.Name))
			continue
		}

		compCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		err := c.ShutdownFunc(compCtx)
		cancel()

		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.Name, err))
			gsm.log.Error("Component shutdown failed", "name", c.Name, "error", err.Error())
			continue
		}
		gsm.log.Info("Component stopped", "name", c.Name)
	}

	result.Duration = time.Since(start)
	gsm.log.Info("Graceful shutdown completed", "duration", result.Duration.String(), "success", result.Success)
	return result
}

// IsShuttingDown checks if shutdown is in progress
func (gsm *GracefulShutdownManager) IsShuttingDown() bool {
	gsm.mu.Lock()
	defer gsm.mu.Unlock()
	return gsm.isShuttingDown
}
