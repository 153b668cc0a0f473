package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spacemake-go/mapplan/internal/config"
	"github.com/spacemake-go/mapplan/internal/store"
	"github.com/spacemake-go/mapplan/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(config.DefaultServerConfig(), st, nil, testLogger()), st
}

// envelope decodes the standard response envelope.
type envelope struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     *model.APIError `json:"error"`
}

func doRequest(t *testing.T, srv *Server, method, path string, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid JSON: %v, body=%s", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	w, env := doRequest(t, srv, "GET", "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
}

const testSampleTableYAML = `
samples:
  - project_id: proj1
    sample_id: sampleA
    species: human
`

const testRegistryYAML = `
human:
  genome:
    sequence: /ref/genome.fa
`

func TestPlanLifecycle_BuildAndQuery(t *testing.T) {
	srv, _ := testServer(t)

	_, stEnv := doRequest(t, srv, "POST", "/api/v1/sample-tables", testSampleTableYAML)
	var stData struct{ ID string `json:"id"` }
	json.Unmarshal(stEnv.Data, &stData)
	if stData.ID == "" {
		t.Fatalf("sample table id empty, env=%+v", stEnv)
	}

	_, regEnv := doRequest(t, srv, "POST", "/api/v1/reference-registries", testRegistryYAML)
	var regData struct{ ID string `json:"id"` }
	json.Unmarshal(regEnv.Data, &regData)
	if regData.ID == "" {
		t.Fatalf("registry id empty, env=%+v", regEnv)
	}

	planReq := `{"sample_table_id":"` + stData.ID + `","reference_registry_id":"` + regData.ID + `","default_strategy":"STAR:genome"}`
	w, planEnv := doRequest(t, srv, "POST", "/api/v1/plans", planReq)
	if w.Code != http.StatusCreated {
		t.Fatalf("create plan status = %d, want 201, body=%s", w.Code, w.Body.String())
	}
	var run model.PlanRun
	json.Unmarshal(planEnv.Data, &run)
	if run.SampleCount != 1 || run.FailedCount != 0 {
		t.Fatalf("run = %+v, want 1 sample, 0 failures", run)
	}

	outPath := "proj1/processed_data/sampleA/illumina/genome.STAR.bam"
	w2, inputsEnv := doRequest(t, srv, "GET", "/api/v1/plans/proj1/sampleA/inputs?path="+outPath, "")
	if w2.Code != http.StatusOK {
		t.Fatalf("inputs status = %d, want 200, body=%s", w2.Code, w2.Body.String())
	}
	var inputs struct {
		BAM string `json:"BAM"`
	}
	json.Unmarshal(inputsEnv.Data, &inputs)

	w3, _ := doRequest(t, srv, "GET", "/api/v1/plans/proj1/sampleA/ribo-log", "")
	if w3.Code != http.StatusOK {
		t.Fatalf("ribo-log status = %d, want 200", w3.Code)
	}
}

func TestCheckoutAndComplete_NoWorkReturns204(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest("GET", "/api/v1/tasks/checkout?executor_type=local", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestCheckoutAndComplete_Roundtrip(t *testing.T) {
	srv, st := testServer(t)
	ctx := context.Background()

	run := &model.PlanRun{ID: "run_test", State: model.PlanRunStateComplete}
	if err := st.CreatePlanRun(ctx, run); err != nil {
		t.Fatalf("CreatePlanRun: %v", err)
	}
	task := &model.DispatchTask{
		ID: "task1", PlanRunID: run.ID, ProjectID: "proj1", SampleID: "sampleA",
		Kind: model.DispatchKindMap, ExecutorType: model.ExecutorTypeLocal,
		State: model.TaskStatePending, Command: []string{"STAR"},
	}
	if err := st.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	w, env := doRequest(t, srv, "GET", "/api/v1/tasks/checkout?executor_type=local", "")
	if w.Code != http.StatusOK {
		t.Fatalf("checkout status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var checked model.DispatchTask
	json.Unmarshal(env.Data, &checked)
	if checked.ID != "task1" {
		t.Fatalf("checked out task = %+v, want task1", checked)
	}

	zero := 0
	completeBody := `{"state":"SUCCESS","exit_code":0,"stdout":"done"}`
	_ = zero
	w2, _ := doRequest(t, srv, "PUT", "/api/v1/tasks/task1/complete", completeBody)
	if w2.Code != http.StatusOK {
		t.Fatalf("complete status = %d, want 200, body=%s", w2.Code, w2.Body.String())
	}

	got, err := st.GetTask(ctx, "task1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.State != model.TaskStateSuccess {
		t.Errorf("State = %q, want SUCCESS", got.State)
	}
}

func TestCreateSampleTable_RejectsMalformedYAML(t *testing.T) {
	srv, _ := testServer(t)
	w, _ := doRequest(t, srv, "POST", "/api/v1/sample-tables", "not: [valid yaml")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreatePlan_UnknownSampleTable(t *testing.T) {
	srv, _ := testServer(t)
	w, _ := doRequest(t, srv, "POST", "/api/v1/plans", `{"sample_table_id":"missing","reference_registry_id":"also-missing"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404, body=%s", w.Code, w.Body.String())
	}
}
