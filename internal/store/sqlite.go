package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacemake-go/mapplan/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a Store. Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Document store (raw sample-table / reference-registry YAML) ---

func (s *SQLiteStore) SaveSampleTable(ctx context.Context, id string, document []byte) error {
	s.logger.Debug("sql", "op", "insert", "table", "sample_tables", "id", id)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sample_tables (id, document, created_at) VALUES (?, ?, ?)`,
		id, document, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) GetSampleTable(ctx context.Context, id string) ([]byte, error) {
	s.logger.Debug("sql", "op", "select", "table", "sample_tables", "id", id)
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM sample_tables WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

func (s *SQLiteStore) SaveReferenceRegistry(ctx context.Context, id string, document []byte) error {
	s.logger.Debug("sql", "op", "insert", "table", "reference_registries", "id", id)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reference_registries (id, document, created_at) VALUES (?, ?, ?)`,
		id, document, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) GetReferenceRegistry(ctx context.Context, id string) ([]byte, error) {
	s.logger.Debug("sql", "op", "select", "table", "reference_registries", "id", id)
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM reference_registries WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

// --- PlanRun CRUD ---

func (s *SQLiteStore) CreatePlanRun(ctx context.Context, run *model.PlanRun) error {
	s.logger.Debug("sql", "op", "insert", "table", "plan_runs", "id", run.ID)

	finalOutputsJSON, err := json.Marshal(run.FinalOutputs)
	if err != nil {
		return fmt.Errorf("marshal final_outputs: %w", err)
	}
	failuresJSON, err := json.Marshal(run.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plan_runs (id, state, sample_table_hash, registry_hash, sample_count,
		 failed_count, final_outputs, failures, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.State), run.SampleTableHash, run.RegistryHash,
		run.SampleCount, run.FailedCount, string(finalOutputsJSON), string(failuresJSON),
		run.CreatedAt.Format(time.RFC3339Nano), formatOptionalTime(run.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) GetPlanRun(ctx context.Context, id string) (*model.PlanRun, error) {
	s.logger.Debug("sql", "op", "select", "table", "plan_runs", "id", id)
	return s.scanPlanRun(s.db.QueryRowContext(ctx,
		`SELECT id, state, sample_table_hash, registry_hash, sample_count, failed_count,
		 final_outputs, failures, created_at, completed_at FROM plan_runs WHERE id = ?`, id))
}

func (s *SQLiteStore) ListPlanRuns(ctx context.Context, opts model.ListOptions) ([]*model.PlanRun, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "plan_runs")

	limit, offset := normalizeListOptions(opts)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plan_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, sample_table_hash, registry_hash, sample_count, failed_count,
		 final_outputs, failures, created_at, completed_at
		 FROM plan_runs ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.PlanRun
	for rows.Next() {
		run, err := s.scanPlanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, run)
	}
	return out, total, rows.Err()
}

func (s *SQLiteStore) UpdatePlanRun(ctx context.Context, run *model.PlanRun) error {
	s.logger.Debug("sql", "op", "update", "table", "plan_runs", "id", run.ID)

	finalOutputsJSON, err := json.Marshal(run.FinalOutputs)
	if err != nil {
		return fmt.Errorf("marshal final_outputs: %w", err)
	}
	failuresJSON, err := json.Marshal(run.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE plan_runs SET state=?, sample_count=?, failed_count=?, final_outputs=?,
		 failures=?, completed_at=? WHERE id=?`,
		string(run.State), run.SampleCount, run.FailedCount, string(finalOutputsJSON),
		string(failuresJSON), formatOptionalTime(run.CompletedAt), run.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("plan run %s not found", run.ID)
	}
	return nil
}

func (s *SQLiteStore) scanPlanRun(row scanner) (*model.PlanRun, error) {
	var run model.PlanRun
	var stateStr, finalOutputsJSON, failuresJSON, createdAt string
	var completedAt *string

	err := row.Scan(&run.ID, &stateStr, &run.SampleTableHash, &run.RegistryHash,
		&run.SampleCount, &run.FailedCount, &finalOutputsJSON, &failuresJSON,
		&createdAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.State = model.PlanRunState(stateStr)
	if err := json.Unmarshal([]byte(finalOutputsJSON), &run.FinalOutputs); err != nil {
		return nil, fmt.Errorf("unmarshal final_outputs: %w", err)
	}
	if err := json.Unmarshal([]byte(failuresJSON), &run.Failures); err != nil {
		return nil, fmt.Errorf("unmarshal failures: %w", err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.CompletedAt = parseOptionalTime(completedAt)

	return &run, nil
}

// --- DispatchTask CRUD ---

func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.DispatchTask) error {
	s.logger.Debug("sql", "op", "insert", "table", "dispatch_tasks", "id", task.ID)

	dependsOnJSON, err := json.Marshal(task.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}
	commandJSON, err := json.Marshal(task.Command)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dispatch_tasks (id, plan_run_id, project_id, sample_id, out_path, kind,
		 state, executor_type, depends_on, command, work_dir, log_path, container_image,
		 external_id, exit_code, stdout, stderr, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.PlanRunID, task.ProjectID, task.SampleID, task.OutPath, string(task.Kind),
		string(task.State), string(task.ExecutorType), string(dependsOnJSON), string(commandJSON),
		task.WorkDir, task.LogPath, task.ContainerImage, task.ExternalID, task.ExitCode,
		task.Stdout, task.Stderr, task.CreatedAt.Format(time.RFC3339Nano),
		formatOptionalTime(task.StartedAt), formatOptionalTime(task.CompletedAt),
	)
	return err
}

const taskColumns = `id, plan_run_id, project_id, sample_id, out_path, kind, state, executor_type,
	 depends_on, command, work_dir, log_path, container_image, external_id, exit_code, stdout,
	 stderr, created_at, started_at, completed_at`

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.DispatchTask, error) {
	s.logger.Debug("sql", "op", "select", "table", "dispatch_tasks", "id", id)
	return s.scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM dispatch_tasks WHERE id = ?`, id))
}

func (s *SQLiteStore) ListTasksByPlanRun(ctx context.Context, planRunID string) ([]*model.DispatchTask, error) {
	s.logger.Debug("sql", "op", "list", "table", "dispatch_tasks", "plan_run_id", planRunID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM dispatch_tasks WHERE plan_run_id = ? ORDER BY created_at`, planRunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanTasks(rows)
}

func (s *SQLiteStore) GetTasksByState(ctx context.Context, state model.TaskState) ([]*model.DispatchTask, error) {
	s.logger.Debug("sql", "op", "list_by_state", "table", "dispatch_tasks", "state", state)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM dispatch_tasks WHERE state = ? ORDER BY created_at`, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanTasks(rows)
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, task *model.DispatchTask) error {
	s.logger.Debug("sql", "op", "update", "table", "dispatch_tasks", "id", task.ID)

	commandJSON, err := json.Marshal(task.Command)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE dispatch_tasks SET state=?, executor_type=?, command=?, work_dir=?, log_path=?,
		 container_image=?, external_id=?, exit_code=?, stdout=?, stderr=?, started_at=?,
		 completed_at=? WHERE id=?`,
		string(task.State), string(task.ExecutorType), string(commandJSON), task.WorkDir,
		task.LogPath, task.ContainerImage, task.ExternalID, task.ExitCode, task.Stdout, task.Stderr,
		formatOptionalTime(task.StartedAt), formatOptionalTime(task.CompletedAt), task.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("dispatch task %s not found", task.ID)
	}
	return nil
}

// CheckoutTask atomically claims the oldest PENDING task for executorType,
// moving it to QUEUED, mirroring the worker checkout pattern the teacher
// implements for its own tasks table.
func (s *SQLiteStore) CheckoutTask(ctx context.Context, executorType model.ExecutorType) (*model.DispatchTask, error) {
	s.logger.Debug("sql", "op", "checkout_task", "executor_type", executorType)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM dispatch_tasks
		 WHERE state = 'PENDING' AND executor_type = ? ORDER BY created_at LIMIT 1`,
		string(executorType))

	task, err := s.scanTask(row)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE dispatch_tasks SET state = 'QUEUED' WHERE id = ? AND state = 'PENDING'`,
		task.ID); err != nil {
		return nil, fmt.Errorf("update task state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	task.State = model.TaskStateQueued
	return task, nil
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanTask(row scanner) (*model.DispatchTask, error) {
	var task model.DispatchTask
	var kindStr, stateStr, executorType string
	var dependsOnJSON, commandJSON string
	var createdAt string
	var startedAt, completedAt *string
	var exitCode *int

	err := row.Scan(&task.ID, &task.PlanRunID, &task.ProjectID, &task.SampleID, &task.OutPath,
		&kindStr, &stateStr, &executorType, &dependsOnJSON, &commandJSON, &task.WorkDir,
		&task.LogPath, &task.ContainerImage, &task.ExternalID, &exitCode, &task.Stdout,
		&task.Stderr, &createdAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task.Kind = model.DispatchKind(kindStr)
	task.State = model.TaskState(stateStr)
	task.ExecutorType = model.ExecutorType(executorType)
	task.ExitCode = exitCode
	if err := json.Unmarshal([]byte(dependsOnJSON), &task.DependsOn); err != nil {
		return nil, fmt.Errorf("unmarshal depends_on: %w", err)
	}
	if err := json.Unmarshal([]byte(commandJSON), &task.Command); err != nil {
		return nil, fmt.Errorf("unmarshal command: %w", err)
	}
	task.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	task.StartedAt = parseOptionalTime(startedAt)
	task.CompletedAt = parseOptionalTime(completedAt)

	return &task, nil
}

func (s *SQLiteStore) scanTasks(rows *sql.Rows) ([]*model.DispatchTask, error) {
	var out []*model.DispatchTask
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339Nano)
	return &v
}

func parseOptionalTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}

func normalizeListOptions(opts model.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
