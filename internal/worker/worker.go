// Package worker implements the long-lived agent that polls internal/server
// for queued DispatchTasks, stages reference artifacts via internal/refstage,
// executes them via internal/executor, and reports results back over HTTP —
// the teacher's worker/client split, generalised from arbitrary CWL tasks to
// the planner's map and index-build commands.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spacemake-go/mapplan/internal/executor"
	"github.com/spacemake-go/mapplan/internal/refstage"
	"github.com/spacemake-go/mapplan/pkg/model"
)

// Config holds worker configuration.
type Config struct {
	ServerURL string
	WorkDir   string

	// ExecutorType is which kind of task this worker polls for.
	ExecutorType model.ExecutorType

	// Poll is the interval between checkout attempts when no work is
	// available.
	Poll time.Duration

	// IndexUploadPrefix, if set, is the s3:// prefix a successfully-built
	// index directory is uploaded back to after an index_build task
	// completes. Empty disables upload.
	IndexUploadPrefix string
}

// Worker polls for DispatchTasks, executes them, and reports results.
type Worker struct {
	client    *Client
	exec      executor.Executor
	stager    *refstage.Stager
	workDir   string
	poll      time.Duration
	execType  model.ExecutorType
	idxPrefix string
	logger    *slog.Logger
}

// New creates a Worker from configuration.
func New(cfg Config, exec executor.Executor, stager *refstage.Stager, logger *slog.Logger) (*Worker, error) {
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "mapplan-worker")
	}
	if cfg.Poll == 0 {
		cfg.Poll = 5 * time.Second
	}
	if cfg.ExecutorType == "" {
		cfg.ExecutorType = model.ExecutorTypeLocal
	}

	return &Worker{
		client:    NewClient(cfg.ServerURL),
		exec:      exec,
		stager:    stager,
		workDir:   cfg.WorkDir,
		poll:      cfg.Poll,
		execType:  cfg.ExecutorType,
		idxPrefix: cfg.IndexUploadPrefix,
		logger:    logger.With("component", "worker"),
	}, nil
}

// Run starts the poll/execute/report loop. Blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.workDir, 0755); err != nil {
		return fmt.Errorf("create workdir %s: %w", w.workDir, err)
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			return nil
		case <-ticker.C:
			if err := w.pollAndExecute(ctx); err != nil {
				w.logger.Error("poll error", "error", err)
			}
		}
	}
}

func (w *Worker) pollAndExecute(ctx context.Context) error {
	task, err := w.client.Checkout(ctx, w.execType)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if task == nil {
		return nil
	}

	w.logger.Info("task received", "task_id", task.ID, "kind", task.Kind)
	if err := w.executeTask(ctx, task); err != nil {
		w.logger.Error("task execution failed", "task_id", task.ID, "error", err)
	}
	return nil
}

// executeTask stages reference artifacts referenced by the task's command,
// runs it, and reports the result. Staging and index upload failures are
// reported as task failures or logged, but never panic the poll loop.
func (w *Worker) executeTask(ctx context.Context, task *model.DispatchTask) error {
	taskDir := filepath.Join(w.workDir, task.ID)
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		return w.reportFailure(ctx, task, fmt.Errorf("create task dir: %w", err))
	}
	if task.WorkDir == "" {
		task.WorkDir = taskDir
	}

	stagedArgs, err := w.stager.StageArgs(ctx, task.Command)
	if err != nil {
		return w.reportFailure(ctx, task, fmt.Errorf("stage reference artifacts: %w", err))
	}
	task.Command = stagedArgs

	if _, err := w.exec.Submit(ctx, task); err != nil {
		return w.reportFailure(ctx, task, err)
	}

	state, err := w.exec.Status(ctx, task)
	if err != nil {
		return w.reportFailure(ctx, task, err)
	}
	task.State = state

	if state == model.TaskStateSuccess && task.Kind == model.DispatchKindIndexBuild && w.idxPrefix != "" {
		remoteDir := w.idxPrefix + "/" + filepath.Base(task.WorkDir)
		if err := w.stager.UploadIndexDir(ctx, task.WorkDir, remoteDir); err != nil {
			w.logger.Warn("index upload failed", "task_id", task.ID, "error", err)
		}
	}

	return w.client.ReportComplete(ctx, task.ID, Result{
		State:    task.State,
		ExitCode: task.ExitCode,
		Stdout:   task.Stdout,
		Stderr:   task.Stderr,
	})
}

// reportFailure sends a FAILED completion with the given error as stderr.
func (w *Worker) reportFailure(ctx context.Context, task *model.DispatchTask, execErr error) error {
	reportErr := w.client.ReportComplete(ctx, task.ID, Result{
		State:  model.TaskStateFailed,
		Stderr: execErr.Error(),
	})
	if reportErr != nil {
		return fmt.Errorf("report failure: %w (original: %v)", reportErr, execErr)
	}
	return execErr
}
