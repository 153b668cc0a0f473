package executor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/spacemake-go/mapplan/pkg/model"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocalExecutor_Type(t *testing.T) {
	e := NewLocalExecutor(t.TempDir(), newTestLogger())
	if got := e.Type(); got != model.ExecutorTypeLocal {
		t.Fatalf("Type() = %q, want %q", got, model.ExecutorTypeLocal)
	}
}

func TestLocalExecutor_EchoHello(t *testing.T) {
	e := NewLocalExecutor(t.TempDir(), newTestLogger())

	task := &model.DispatchTask{
		ID:        "task_test_echo",
		Command:   []string{"echo", "hello"},
		CreatedAt: time.Now(),
	}

	externalID, err := e.Submit(context.Background(), task)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if task.Stdout != "hello\n" {
		t.Errorf("Stdout = %q, want %q", task.Stdout, "hello\n")
	}
	if task.ExitCode == nil || *task.ExitCode != 0 {
		t.Fatalf("ExitCode = %v, want 0", task.ExitCode)
	}

	info, err := os.Stat(externalID)
	if err != nil || !info.IsDir() {
		t.Fatalf("externalID %q is not a directory: %v", externalID, err)
	}

	state, err := e.Status(context.Background(), task)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if state != model.TaskStateSuccess {
		t.Errorf("Status = %q, want %q", state, model.TaskStateSuccess)
	}
}

func TestLocalExecutor_FailingCommand(t *testing.T) {
	e := NewLocalExecutor(t.TempDir(), newTestLogger())

	task := &model.DispatchTask{
		ID:        "task_test_fail",
		Command:   []string{"false"},
		CreatedAt: time.Now(),
	}

	if _, err := e.Submit(context.Background(), task); err != nil {
		t.Fatalf("Submit returned error: %v (expected nil — command ran but failed)", err)
	}
	if task.ExitCode == nil || *task.ExitCode == 0 {
		t.Fatalf("ExitCode = %v, want nonzero", task.ExitCode)
	}

	state, err := e.Status(context.Background(), task)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if state != model.TaskStateFailed {
		t.Errorf("Status = %q, want %q", state, model.TaskStateFailed)
	}
}

func TestLocalExecutor_EmptyCommandRejected(t *testing.T) {
	e := NewLocalExecutor(t.TempDir(), newTestLogger())
	task := &model.DispatchTask{ID: "task_test_empty", CreatedAt: time.Now()}

	if _, err := e.Submit(context.Background(), task); err == nil {
		t.Error("expected an error for an empty command")
	}
}

func TestLocalExecutor_MirrorsLogPath(t *testing.T) {
	e := NewLocalExecutor(t.TempDir(), newTestLogger())
	logPath := t.TempDir() + "/mapper.log"

	task := &model.DispatchTask{
		ID:        "task_test_log",
		Command:   []string{"sh", "-c", "echo oops 1>&2"},
		LogPath:   logPath,
		CreatedAt: time.Now(),
	}

	if _, err := e.Submit(context.Background(), task); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read mirrored log: %v", err)
	}
	if string(data) != "oops\n" {
		t.Errorf("mirrored log = %q, want %q", data, "oops\n")
	}
}

func TestLocalExecutor_Status_NotYetRun(t *testing.T) {
	e := NewLocalExecutor(t.TempDir(), newTestLogger())
	task := &model.DispatchTask{ID: "task_test_pending"}

	state, err := e.Status(context.Background(), task)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state != model.TaskStateQueued {
		t.Errorf("Status = %q, want QUEUED", state)
	}
}
