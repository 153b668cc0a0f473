package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spacemake-go/mapplan/internal/executor"
	"github.com/spacemake-go/mapplan/internal/store"
	"github.com/spacemake-go/mapplan/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	PollInterval time.Duration
	Concurrency  int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PollInterval: 2 * time.Second, Concurrency: 4}
}

// Loop implements the Scheduler interface with a polling-based dispatch
// loop: each tick advances PENDING tasks whose DependsOn tasks have all
// reached SUCCESS,
// then submits ready tasks to the registered executor, bounded by a
// semaphore.
type Loop struct {
	store    store.Store
	registry *executor.Registry
	sem      *Semaphore
	config   Config
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLoop creates a new scheduler loop.
func NewLoop(st store.Store, reg *executor.Registry, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		store:    st,
		registry: reg,
		sem:      NewSemaphore(cfg.Concurrency),
		config:   cfg,
		logger:   logger.With("component", "scheduler"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the scheduling loop. Blocks until ctx is cancelled or Stop
// is called.
func (l *Loop) Start(ctx context.Context) error {
	l.logger.Info("scheduler started", "poll_interval", l.config.PollInterval)
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopping (context cancelled)")
			close(l.doneCh)
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			close(l.doneCh)
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				l.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for the current tick
// to finish.
func (l *Loop) Stop() error {
	close(l.stopCh)
	<-l.doneCh
	return nil
}

// Tick runs a single scheduling iteration: advance ready PENDING tasks to
// QUEUED, then dispatch every QUEUED task concurrently (bounded by the
// semaphore).
func (l *Loop) Tick(ctx context.Context) error {
	if err := l.advancePending(ctx); err != nil {
		return fmt.Errorf("advance pending: %w", err)
	}
	if err := l.dispatchQueued(ctx); err != nil {
		return fmt.Errorf("dispatch queued: %w", err)
	}
	return nil
}

// advancePending moves PENDING tasks whose DependsOn are all SUCCESS to
// QUEUED. A task with a FAILED dependency never becomes ready; it stays
// PENDING, matching the planner's no-retry policy (§7) rather than
// silently skipping it.
func (l *Loop) advancePending(ctx context.Context) error {
	pending, err := l.store.GetTasksByState(ctx, model.TaskStatePending)
	if err != nil {
		return err
	}

	for _, task := range pending {
		ready, err := l.dependenciesSatisfied(ctx, task)
		if err != nil {
			l.logger.Error("check dependencies", "task_id", task.ID, "error", err)
			continue
		}
		if !ready {
			continue
		}
		task.State = model.TaskStateQueued
		if err := l.store.UpdateTask(ctx, task); err != nil {
			l.logger.Error("advance task to queued", "task_id", task.ID, "error", err)
		}
	}
	return nil
}

func (l *Loop) dependenciesSatisfied(ctx context.Context, task *model.DispatchTask) (bool, error) {
	for _, depID := range task.DependsOn {
		dep, err := l.store.GetTask(ctx, depID)
		if err != nil {
			return false, err
		}
		if dep == nil || dep.State != model.TaskStateSuccess {
			return false, nil
		}
	}
	return true, nil
}

// dispatchQueued submits every QUEUED task to its registered executor
// concurrently, bounded by the scheduler's semaphore.
func (l *Loop) dispatchQueued(ctx context.Context) error {
	queued, err := l.store.GetTasksByState(ctx, model.TaskStateQueued)
	if err != nil {
		return err
	}
	if len(queued) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, task := range queued {
		if !l.sem.Acquire(ctx) {
			continue
		}
		wg.Add(1)
		go func(task *model.DispatchTask) {
			defer wg.Done()
			defer l.sem.Release()
			l.dispatch(ctx, task)
		}(task)
	}
	wg.Wait()
	return nil
}

func (l *Loop) dispatch(ctx context.Context, task *model.DispatchTask) {
	exec, err := l.registry.Get(task.ExecutorType)
	if err != nil {
		l.logger.Error("no executor for task", "task_id", task.ID, "executor_type", task.ExecutorType, "error", err)
		return
	}

	now := time.Now().UTC()
	task.State = model.TaskStateRunning
	task.StartedAt = &now
	if err := l.store.UpdateTask(ctx, task); err != nil {
		l.logger.Error("mark task running", "task_id", task.ID, "error", err)
		return
	}

	externalID, err := exec.Submit(ctx, task)
	completed := time.Now().UTC()
	task.CompletedAt = &completed
	task.ExternalID = externalID

	if err != nil {
		l.logger.Error("task submit failed", "task_id", task.ID, "error", err)
		task.State = model.TaskStateFailed
	} else {
		state, statusErr := exec.Status(ctx, task)
		if statusErr != nil {
			l.logger.Error("task status check failed", "task_id", task.ID, "error", statusErr)
			state = model.TaskStateFailed
		}
		task.State = state
	}

	if err := l.store.UpdateTask(ctx, task); err != nil {
		l.logger.Error("persist task result", "task_id", task.ID, "error", err)
	}
}
