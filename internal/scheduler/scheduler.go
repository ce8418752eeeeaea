// Package scheduler runs periodic maintenance tasks on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradestream/internal/logger"

	"github.com/robfig/cron/v3"
)

// TaskType represents the type of scheduled task
type TaskType string

const (
	TaskTypeHealthProbe    TaskType = "health_probe"
	TaskTypePoolStats      TaskType = "pool_stats"
	TaskTypeLimiterCleanup TaskType = "limiter_cleanup"
)

// Task represents a scheduled task
type Task struct {
	ID          string
	Type        TaskType
	Schedule    string
	LastRunTime time.Time
	Status      TaskStatus
	Error       string
	Runs        int
}

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskHandler defines the interface for task handlers
type TaskHandler interface {
	Handle(ctx context.Context) error
}

// TaskHandlerFunc adapts a function to TaskHandler.
type TaskHandlerFunc func(ctx context.Context) error

// Handle calls f.
func (f TaskHandlerFunc) Handle(ctx context.Context) error { return f(ctx) }

// Scheduler manages task scheduling
type Scheduler struct {
	cron     *cron.Cron
	tasks    map[TaskType]*Task
	handlers map[TaskType]TaskHandler
	timeout  time.Duration
	log      logger.Logger
	mu       sync.RWMutex
}

// NewScheduler creates a scheduler whose schedules include a seconds field.
// Each run gets a context bounded by timeout.
func NewScheduler(timeout time.Duration, log logger.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		tasks:    make(map[TaskType]*Task),
		handlers: make(map[TaskType]TaskHandler),
		timeout:  timeout,
		log:      log.WithField("component", "scheduler"),
	}
}

// RegisterHandler registers a handler for a task type
func (s *Scheduler) RegisterHandler(taskType TaskType, handler TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskType] = handler
}

// AddTask schedules the registered handler for taskType.
func (s *Scheduler) AddTask(taskType TaskType, schedule string) error {
	s.mu.RLock()
	handler, exists := s.handlers[taskType]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("no handler registered for task type: %s", taskType)
	}

	task := &Task{
		ID:       fmt.Sprintf("%s_%d", taskType, time.Now().UnixNano()),
		Type:     taskType,
		Schedule: schedule,
		Status:   TaskStatusPending,
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runTask(task, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.mu.Lock()
	s.tasks[taskType] = task
	s.mu.Unlock()

	s.log.Info("Scheduled task", "type", string(taskType), "schedule", schedule)
	return nil
}

// RunNow executes a scheduled task immediately on the calling goroutine.
func (s *Scheduler) RunNow(taskType TaskType) error {
	s.mu.RLock()
	task, ok := s.tasks[taskType]
	handler := s.handlers[taskType]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task not scheduled: %s", taskType)
	}
	return s.runTask(task, handler)
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runTask(task *Task, handler TaskHandler) error {
	s.mu.Lock()
	task.Status = TaskStatusRunning
	task.LastRunTime = time.Now()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err := handler.Handle(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	task.Runs++
	if err != nil {
		task.Status = TaskStatusFailed
		task.Error = err.Error()
		s.log.Warn("Scheduled task failed", "type", string(task.Type), "error", err.Error())
	} else {
		task.Status = TaskStatusCompleted
		task.Error = ""
	}
	return err
}

// GetTask returns a copy of the task scheduled for taskType.
func (s *Scheduler) GetTask(taskType TaskType) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[taskType]
	if !exists {
		return Task{}, fmt.Errorf("task not found: %s", taskType)
	}
	return *task, nil
}
