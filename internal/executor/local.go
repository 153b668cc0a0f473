package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spacemake-go/mapplan/pkg/model"
)

// LocalExecutor runs tasks as local OS processes, for mappers already on
// PATH.
type LocalExecutor struct {
	logger  *slog.Logger
	workDir string
}

// NewLocalExecutor creates a LocalExecutor rooted at workDir. If workDir is
// empty, os.TempDir() is used.
func NewLocalExecutor(workDir string, logger *slog.Logger) *LocalExecutor {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &LocalExecutor{
		workDir: workDir,
		logger:  logger.With("component", "local-executor"),
	}
}

// Type returns model.ExecutorTypeLocal.
func (e *LocalExecutor) Type() model.ExecutorType {
	return model.ExecutorTypeLocal
}

// Submit executes the task's synthesised command synchronously. It returns
// the task's working directory as the externalID.
func (e *LocalExecutor) Submit(ctx context.Context, task *model.DispatchTask) (string, error) {
	if len(task.Command) == 0 {
		return "", fmt.Errorf("task %s: command is empty", task.ID)
	}

	taskDir := task.WorkDir
	if taskDir == "" {
		taskDir = filepath.Join(e.workDir, task.ID)
	}
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		return "", fmt.Errorf("task %s: create work dir: %w", task.ID, err)
	}

	cmd := exec.CommandContext(ctx, task.Command[0], task.Command[1:]...)
	cmd.Dir = taskDir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	task.Stdout = stdoutBuf.String()
	task.Stderr = stderrBuf.String()

	var exitCode int
	switch err := runErr.(type) {
	case nil:
		exitCode = 0
	case *exec.ExitError:
		exitCode = err.ExitCode()
	default:
		return "", fmt.Errorf("task %s: run command: %w", task.ID, runErr)
	}
	task.ExitCode = &exitCode

	if task.LogPath != "" {
		if err := mirrorLog(task.LogPath, task.Stderr); err != nil {
			e.logger.Warn("failed to mirror stderr to log path", "task_id", task.ID, "err", err)
		}
	}

	e.logger.Debug("task submitted",
		"task_id", task.ID,
		"command", task.Command,
		"exit_code", exitCode,
	)

	return taskDir, nil
}

// Status derives the task's state from the recorded exit code: absent means
// not yet run, zero means success, anything else failed.
func (e *LocalExecutor) Status(_ context.Context, task *model.DispatchTask) (model.TaskState, error) {
	if task.ExitCode == nil {
		return model.TaskStateQueued, nil
	}
	if *task.ExitCode == 0 {
		return model.TaskStateSuccess, nil
	}
	return model.TaskStateFailed, nil
}

// Cancel is a no-op for LocalExecutor; context cancellation handles
// termination.
func (e *LocalExecutor) Cancel(_ context.Context, _ *model.DispatchTask) error {
	return nil
}

// Logs returns the captured stdout and stderr stored on the task.
func (e *LocalExecutor) Logs(_ context.Context, task *model.DispatchTask) (string, string, error) {
	return task.Stdout, task.Stderr, nil
}

func mirrorLog(path, stderr string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(stderr), 0o644)
}
