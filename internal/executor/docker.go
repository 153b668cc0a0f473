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

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)
}

// osCommandRunner is the real implementation using os/exec.
type osCommandRunner struct{}

func (r *osCommandRunner) Run(ctx context.Context, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	stdout := stdoutBuf.String()
	stderr := stderrBuf.String()

	switch e := runErr.(type) {
	case nil:
		return stdout, stderr, 0, nil
	case *exec.ExitError:
		return stdout, stderr, e.ExitCode(), nil
	default:
		return stdout, stderr, -1, runErr
	}
}

// DockerExecutor runs tasks inside Docker containers using the Docker CLI,
// for reproducible bioinformatics containers (pinned STAR/bowtie2/samtools
// versions).
type DockerExecutor struct {
	logger  *slog.Logger
	workDir string
	runner  CommandRunner
}

// NewDockerExecutor creates a DockerExecutor rooted at workDir. If workDir
// is empty, os.TempDir() is used.
func NewDockerExecutor(workDir string, logger *slog.Logger) *DockerExecutor {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &DockerExecutor{
		workDir: workDir,
		logger:  logger.With("component", "docker-executor"),
		runner:  &osCommandRunner{},
	}
}

// newDockerExecutorWithRunner is used by tests to inject a mock CommandRunner.
func newDockerExecutorWithRunner(workDir string, logger *slog.Logger, runner CommandRunner) *DockerExecutor {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &DockerExecutor{
		workDir: workDir,
		logger:  logger.With("component", "docker-executor"),
		runner:  runner,
	}
}

// Type returns model.ExecutorTypeContainer.
func (e *DockerExecutor) Type() model.ExecutorType {
	return model.ExecutorTypeContainer
}

// Submit runs the task's synthesised command synchronously inside a Docker
// container. It returns the container name as the externalID.
func (e *DockerExecutor) Submit(ctx context.Context, task *model.DispatchTask) (string, error) {
	if task.ContainerImage == "" {
		return "", fmt.Errorf("task %s: container_image is missing", task.ID)
	}
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

	containerName := "mapplan-" + task.ID
	args := []string{
		"run", "--rm",
		"--name", containerName,
		"-v", taskDir + ":/work",
		"-w", "/work",
		task.ContainerImage,
	}
	args = append(args, task.Command...)

	stdout, stderr, exitCode, runErr := e.runner.Run(ctx, "docker", args...)
	if runErr != nil {
		return "", fmt.Errorf("task %s: docker run: %w", task.ID, runErr)
	}

	task.Stdout = stdout
	task.Stderr = stderr
	task.ExitCode = &exitCode
	task.ExternalID = containerName

	e.logger.Debug("docker task submitted",
		"task_id", task.ID,
		"image", task.ContainerImage,
		"command", task.Command,
		"exit_code", exitCode,
	)

	return containerName, nil
}

// Status derives the task state from the recorded exit code.
func (e *DockerExecutor) Status(_ context.Context, task *model.DispatchTask) (model.TaskState, error) {
	if task.ExitCode == nil {
		return model.TaskStateQueued, nil
	}
	if *task.ExitCode == 0 {
		return model.TaskStateSuccess, nil
	}
	return model.TaskStateFailed, nil
}

// Cancel attempts to stop and remove the Docker container.
func (e *DockerExecutor) Cancel(ctx context.Context, task *model.DispatchTask) error {
	if task.ExternalID == "" {
		return nil
	}
	_, _, _, err := e.runner.Run(ctx, "docker", "rm", "-f", task.ExternalID)
	return err
}

// Logs returns the captured stdout and stderr stored on the task.
func (e *DockerExecutor) Logs(_ context.Context, task *model.DispatchTask) (string, string, error) {
	return task.Stdout, task.Stderr, nil
}
