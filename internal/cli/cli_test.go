package cli

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spacemake-go/mapplan/internal/config"
	"github.com/spacemake-go/mapplan/internal/server"
	"github.com/spacemake-go/mapplan/internal/store"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := server.New(config.DefaultServerConfig(), st, nil, srvLogger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	root.SetArgs(args)

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := root.Execute()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String(), err
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const cliTestSampleTable = `
samples:
  - project_id: proj1
    sample_id: sampleA
    species: human
`

const cliTestRegistry = `
human:
  genome:
    sequence: /ref/genome.fa
`

func TestValidateStrategyCommand(t *testing.T) {
	output, err := runCLI(t, "validate-strategy", "STAR:genome")
	if err != nil {
		t.Fatalf("validate-strategy error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "Rules:") {
		t.Errorf("expected 'Rules:' in output, got: %s", output)
	}
	if !strings.Contains(output, "STAR") {
		t.Errorf("expected mapper name in output, got: %s", output)
	}
}

func TestValidateStrategyCommand_Invalid(t *testing.T) {
	_, err := runCLI(t, "validate-strategy", "")
	if err == nil {
		t.Fatal("expected error for empty strategy")
	}
}

func TestPlanAndStatusCommand(t *testing.T) {
	url := startTestServer(t)
	tablePath := writeTempFile(t, "samples.yaml", cliTestSampleTable)
	registryPath := writeTempFile(t, "registry.yaml", cliTestRegistry)

	output, err := runCLI(t,
		"--server", url,
		"plan",
		"--sample-table", tablePath,
		"--registry", registryPath,
		"--default-strategy", "STAR:genome",
	)
	if err != nil {
		t.Fatalf("plan error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "Plan run: run_") {
		t.Errorf("expected 'Plan run: run_' in output, got: %s", output)
	}
	if !strings.Contains(output, "1 planned") {
		t.Errorf("expected sample count in output, got: %s", output)
	}

	re := regexp.MustCompile(`Plan run: (run_\S+)`)
	m := re.FindStringSubmatch(output)
	if m == nil {
		t.Fatalf("could not find plan run id in output: %s", output)
	}
	runID := m[1]

	statusOutput, err := runCLI(t, "--server", url, "status", runID)
	if err != nil {
		t.Fatalf("status error: %v\noutput: %s", err, statusOutput)
	}
	if !strings.Contains(statusOutput, runID) {
		t.Errorf("expected run id in status output, got: %s", statusOutput)
	}
	if !strings.Contains(statusOutput, "COMPLETE") {
		t.Errorf("expected COMPLETE state in status output, got: %s", statusOutput)
	}
}

func TestPlanCommand_MissingFile(t *testing.T) {
	url := startTestServer(t)
	_, err := runCLI(t,
		"--server", url,
		"plan",
		"--sample-table", "nonexistent.yaml",
		"--registry", "nonexistent.yaml",
	)
	if err == nil {
		t.Fatal("expected error for missing sample table file")
	}
}

func TestStatusCommand_UnknownRun(t *testing.T) {
	url := startTestServer(t)
	_, err := runCLI(t, "--server", url, "status", "run_missing")
	if err == nil {
		t.Fatal("expected error for unknown plan run")
	}
}
