package store

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/spacemake-go/mapplan/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStore_SampleTableAndRegistryDocuments(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)

	if err := st.SaveSampleTable(ctx, "st_test-1", []byte("samples: []\n")); err != nil {
		t.Fatalf("SaveSampleTable: %v", err)
	}
	got, err := st.GetSampleTable(ctx, "st_test-1")
	if err != nil {
		t.Fatalf("GetSampleTable: %v", err)
	}
	if string(got) != "samples: []\n" {
		t.Errorf("GetSampleTable = %q", got)
	}

	missing, err := st.GetSampleTable(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("GetSampleTable(missing): %v", err)
	}
	if missing != nil {
		t.Errorf("GetSampleTable(missing) = %v, want nil", missing)
	}

	if err := st.SaveReferenceRegistry(ctx, "reg_test-1", []byte("human: {}\n")); err != nil {
		t.Fatalf("SaveReferenceRegistry: %v", err)
	}
	gotReg, err := st.GetReferenceRegistry(ctx, "reg_test-1")
	if err != nil {
		t.Fatalf("GetReferenceRegistry: %v", err)
	}
	if string(gotReg) != "human: {}\n" {
		t.Errorf("GetReferenceRegistry = %q", gotReg)
	}
}

func samplePlanRun() *model.PlanRun {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.PlanRun{
		ID:              "run_test-1",
		State:           model.PlanRunStateBuilding,
		SampleTableHash: "abc123",
		RegistryHash:    "def456",
		SampleCount:     2,
		CreatedAt:       now,
	}
}

func TestSQLiteStore_PlanRunCRUD(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)

	run := samplePlanRun()
	if err := st.CreatePlanRun(ctx, run); err != nil {
		t.Fatalf("CreatePlanRun: %v", err)
	}

	got, err := st.GetPlanRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetPlanRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetPlanRun returned nil")
	}
	if got.SampleTableHash != run.SampleTableHash || got.SampleCount != run.SampleCount {
		t.Errorf("got = %+v, want matching fields of %+v", got, run)
	}

	run.State = model.PlanRunStateComplete
	run.FinalOutputs = []string{"proj1/processed_data/sampleA/illumina/final.bam"}
	completed := time.Now().UTC().Truncate(time.Millisecond)
	run.CompletedAt = &completed
	if err := st.UpdatePlanRun(ctx, run); err != nil {
		t.Fatalf("UpdatePlanRun: %v", err)
	}

	got2, err := st.GetPlanRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetPlanRun after update: %v", err)
	}
	if got2.State != model.PlanRunStateComplete {
		t.Errorf("State = %q, want COMPLETE", got2.State)
	}
	if len(got2.FinalOutputs) != 1 {
		t.Errorf("FinalOutputs = %v, want 1 entry", got2.FinalOutputs)
	}
	if got2.CompletedAt == nil {
		t.Error("CompletedAt not persisted")
	}
}

func TestSQLiteStore_ListPlanRuns(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)

	for i := 0; i < 3; i++ {
		run := samplePlanRun()
		run.ID = run.ID + string(rune('a'+i))
		run.CreatedAt = run.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := st.CreatePlanRun(ctx, run); err != nil {
			t.Fatalf("CreatePlanRun: %v", err)
		}
	}

	runs, total, err := st.ListPlanRuns(ctx, model.ListOptions{})
	if err != nil {
		t.Fatalf("ListPlanRuns: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(runs) != 3 {
		t.Errorf("len(runs) = %d, want 3", len(runs))
	}
}

func TestSQLiteStore_UpdatePlanRun_NotFound(t *testing.T) {
	st := testStore(t)
	run := samplePlanRun()
	run.ID = "does-not-exist"
	if err := st.UpdatePlanRun(context.Background(), run); err == nil {
		t.Error("expected an error updating a nonexistent plan run")
	}
}

func sampleTask(planRunID string) *model.DispatchTask {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.DispatchTask{
		ID:           "task_test-1",
		PlanRunID:    planRunID,
		ProjectID:    "proj1",
		SampleID:     "sampleA",
		OutPath:      "proj1/processed_data/sampleA/illumina/genome.STAR.bam",
		Kind:         model.DispatchKindMap,
		ExecutorType: model.ExecutorTypeLocal,
		State:        model.TaskStatePending,
		Command:      []string{"STAR", "--genomeDir", "idx"},
		CreatedAt:    now,
	}
}

func TestSQLiteStore_TaskCRUD(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	run := samplePlanRun()
	if err := st.CreatePlanRun(ctx, run); err != nil {
		t.Fatalf("CreatePlanRun: %v", err)
	}

	task := sampleTask(run.ID)
	if err := st.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.OutPath != task.OutPath || len(got.Command) != len(task.Command) {
		t.Errorf("got = %+v, want matching %+v", got, task)
	}

	task.State = model.TaskStateRunning
	started := time.Now().UTC().Truncate(time.Millisecond)
	task.StartedAt = &started
	if err := st.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	byState, err := st.GetTasksByState(ctx, model.TaskStateRunning)
	if err != nil {
		t.Fatalf("GetTasksByState: %v", err)
	}
	if len(byState) != 1 {
		t.Fatalf("GetTasksByState(RUNNING) = %d tasks, want 1", len(byState))
	}

	byRun, err := st.ListTasksByPlanRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListTasksByPlanRun: %v", err)
	}
	if len(byRun) != 1 {
		t.Errorf("ListTasksByPlanRun = %d tasks, want 1", len(byRun))
	}
}

func TestSQLiteStore_CheckoutTask(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	run := samplePlanRun()
	if err := st.CreatePlanRun(ctx, run); err != nil {
		t.Fatalf("CreatePlanRun: %v", err)
	}

	task := sampleTask(run.ID)
	if err := st.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	checked, err := st.CheckoutTask(ctx, model.ExecutorTypeLocal)
	if err != nil {
		t.Fatalf("CheckoutTask: %v", err)
	}
	if checked == nil {
		t.Fatal("CheckoutTask returned nil, want the pending task")
	}
	if checked.State != model.TaskStateQueued {
		t.Errorf("State = %q, want QUEUED", checked.State)
	}

	again, err := st.CheckoutTask(ctx, model.ExecutorTypeLocal)
	if err != nil {
		t.Fatalf("CheckoutTask (second call): %v", err)
	}
	if again != nil {
		t.Errorf("expected no more PENDING tasks, got %+v", again)
	}
}
