package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the planner's persisted tables. Each
// statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sample_tables (
		id         TEXT PRIMARY KEY,
		document   BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS reference_registries (
		id         TEXT PRIMARY KEY,
		document   BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS plan_runs (
		id                TEXT PRIMARY KEY,
		state             TEXT NOT NULL DEFAULT 'BUILDING',
		sample_table_hash TEXT NOT NULL DEFAULT '',
		registry_hash     TEXT NOT NULL DEFAULT '',
		sample_count      INTEGER NOT NULL DEFAULT 0,
		failed_count      INTEGER NOT NULL DEFAULT 0,
		final_outputs     TEXT NOT NULL DEFAULT '[]',
		failures          TEXT NOT NULL DEFAULT '{}',
		created_at        TEXT NOT NULL,
		completed_at      TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_plan_runs_state ON plan_runs(state)`,

	`CREATE TABLE IF NOT EXISTS dispatch_tasks (
		id            TEXT PRIMARY KEY,
		plan_run_id   TEXT NOT NULL,
		project_id    TEXT NOT NULL,
		sample_id     TEXT NOT NULL,
		out_path      TEXT NOT NULL DEFAULT '',
		kind          TEXT NOT NULL DEFAULT 'map',
		state         TEXT NOT NULL DEFAULT 'PENDING',
		executor_type TEXT NOT NULL DEFAULT 'local',
		depends_on    TEXT NOT NULL DEFAULT '[]',
		command       TEXT NOT NULL DEFAULT '[]',
		work_dir      TEXT NOT NULL DEFAULT '',
		log_path      TEXT NOT NULL DEFAULT '',
		container_image TEXT NOT NULL DEFAULT '',
		external_id   TEXT NOT NULL DEFAULT '',
		exit_code     INTEGER,
		stdout        TEXT NOT NULL DEFAULT '',
		stderr        TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		started_at    TEXT,
		completed_at  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dispatch_tasks_plan_run_id ON dispatch_tasks(plan_run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dispatch_tasks_state ON dispatch_tasks(state)`,
	`CREATE INDEX IF NOT EXISTS idx_dispatch_tasks_state_executor ON dispatch_tasks(state, executor_type)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
