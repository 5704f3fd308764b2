package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Dates are stored as YYYY-MM-DD text so both drivers scan them the same way.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          SERIAL PRIMARY KEY,
		name        VARCHAR(120) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date  TEXT,
		end_date    TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS project_risks (
		project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		ordinal    INTEGER NOT NULL,
		label      TEXT NOT NULL,
		PRIMARY KEY (project_id, ordinal)
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id          SERIAL PRIMARY KEY,
		project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		title       VARCHAR(120) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status      VARCHAR(50) NOT NULL DEFAULT 'pending',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_project_id_idx ON tasks (project_id)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		id          SERIAL PRIMARY KEY,
		task_id     INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		name        VARCHAR(120) NOT NULL,
		value       DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS metrics_task_id_idx ON metrics (task_id)`,
	`CREATE TABLE IF NOT EXISTS activity_events (
		id         SERIAL PRIMARY KEY,
		event_name TEXT NOT NULL,
		event_time TIMESTAMPTZ NOT NULL,
		project_id INTEGER,
		subject    TEXT,
		request_id TEXT,
		platform   TEXT NOT NULL,
		properties TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS activity_events_project_id_idx ON activity_events (project_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date  TEXT,
		end_date    TEXT,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS project_risks (
		project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		ordinal    INTEGER NOT NULL,
		label      TEXT NOT NULL,
		PRIMARY KEY (project_id, ordinal)
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'pending',
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_project_id_idx ON tasks (project_id)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id     INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		value       REAL NOT NULL,
		recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS metrics_task_id_idx ON metrics (task_id)`,
	`CREATE TABLE IF NOT EXISTS activity_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		event_name TEXT NOT NULL,
		event_time TIMESTAMP NOT NULL,
		project_id INTEGER,
		subject    TEXT,
		request_id TEXT,
		platform   TEXT NOT NULL,
		properties TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS activity_events_project_id_idx ON activity_events (project_id)`,
}

// Migrate creates the tables for driver if they do not exist yet.
func Migrate(ctx context.Context, dbx *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case "postgres":
		stmts = postgresSchema
	case "sqlite3":
		stmts = sqliteSchema
	default:
		return fmt.Errorf("db: migrate: unsupported driver %q", driver)
	}

	for i, stmt := range stmts {
		if _, err := dbx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
