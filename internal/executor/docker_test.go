package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spacemake-go/mapplan/pkg/model"
)

// mockRunner records calls and returns canned responses.
type mockRunner struct {
	calls   []mockCall
	results []mockResult
	callIdx int
}

type mockCall struct {
	name string
	args []string
}

type mockResult struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) (string, string, int, error) {
	m.calls = append(m.calls, mockCall{name: name, args: args})
	if m.callIdx >= len(m.results) {
		return "", "", -1, fmt.Errorf("unexpected call %d", m.callIdx)
	}
	r := m.results[m.callIdx]
	m.callIdx++
	return r.stdout, r.stderr, r.exitCode, r.err
}

func TestDockerExecutor_Type(t *testing.T) {
	e := NewDockerExecutor(t.TempDir(), newTestLogger())
	if got := e.Type(); got != model.ExecutorTypeContainer {
		t.Fatalf("Type() = %q, want %q", got, model.ExecutorTypeContainer)
	}
}

func TestDockerExecutor_SubmitSuccess(t *testing.T) {
	runner := &mockRunner{
		results: []mockResult{{stdout: "hello\n", exitCode: 0}},
	}
	e := newDockerExecutorWithRunner(t.TempDir(), newTestLogger(), runner)

	task := &model.DispatchTask{
		ID:             "task_docker_echo",
		Command:        []string{"echo", "hello"},
		ContainerImage: "alpine:latest",
		CreatedAt:      time.Now(),
	}

	externalID, err := e.Submit(context.Background(), task)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if externalID != "mapplan-task_docker_echo" {
		t.Errorf("externalID = %q, want %q", externalID, "mapplan-task_docker_echo")
	}
	if task.Stdout != "hello\n" {
		t.Errorf("Stdout = %q, want %q", task.Stdout, "hello\n")
	}
	if task.ExitCode == nil || *task.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", task.ExitCode)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 docker call, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	if call.name != "docker" {
		t.Errorf("command = %q, want docker", call.name)
	}
	for _, want := range []string{"run", "--rm", "alpine:latest", "echo", "hello"} {
		found := false
		for _, a := range call.args {
			if a == want {
				found = true
			}
		}
		if !found {
			t.Errorf("docker args missing %q: %v", want, call.args)
		}
	}
}

func TestDockerExecutor_MissingImage(t *testing.T) {
	e := newDockerExecutorWithRunner(t.TempDir(), newTestLogger(), &mockRunner{})
	task := &model.DispatchTask{ID: "task_docker_noimg", Command: []string{"echo", "hi"}}

	if _, err := e.Submit(context.Background(), task); err == nil {
		t.Error("expected an error when container_image is missing")
	}
}

func TestDockerExecutor_Cancel(t *testing.T) {
	runner := &mockRunner{results: []mockResult{{}}}
	e := newDockerExecutorWithRunner(t.TempDir(), newTestLogger(), runner)
	task := &model.DispatchTask{ID: "task_docker_cancel", ExternalID: "mapplan-task_docker_cancel"}

	if err := e.Cancel(context.Background(), task); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(runner.calls) != 1 || !strings.Contains(strings.Join(runner.calls[0].args, " "), "rm") {
		t.Errorf("expected a docker rm call, got %+v", runner.calls)
	}
}

func TestDockerExecutor_Status(t *testing.T) {
	e := newDockerExecutorWithRunner(t.TempDir(), newTestLogger(), &mockRunner{})
	success := 0
	failure := 1

	state, _ := e.Status(context.Background(), &model.DispatchTask{ExitCode: &success})
	if state != model.TaskStateSuccess {
		t.Errorf("Status(0) = %q, want SUCCESS", state)
	}
	state, _ = e.Status(context.Background(), &model.DispatchTask{ExitCode: &failure})
	if state != model.TaskStateFailed {
		t.Errorf("Status(1) = %q, want FAILED", state)
	}
	state, _ = e.Status(context.Background(), &model.DispatchTask{})
	if state != model.TaskStateQueued {
		t.Errorf("Status(nil) = %q, want QUEUED", state)
	}
}
