package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"project-health-backend/internal/db"
)

var (
	ErrNotFound        = errors.New("tasks: not found")
	ErrProjectNotFound = errors.New("tasks: project not found")
	ErrInvalid         = errors.New("invalid task")
)

const maxTitleLen = 120

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(dbx *sql.DB) *Store {
	return &Store{db: dbx, now: time.Now}
}

func (t *Task) normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	t.Status = strings.TrimSpace(t.Status)
	if t.Status == "" {
		t.Status = StatusPending
	}
}

func (t *Task) validate() error {
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if utf8.RuneCountInString(t.Title) > maxTitleLen {
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalid, maxTitleLen)
	}
	if !validStatus(t.Status) {
		return fmt.Errorf("%w: invalid status %q", ErrInvalid, t.Status)
	}
	return nil
}

// Create inserts t. An unknown project surfaces as ErrProjectNotFound.
func (s *Store) Create(ctx context.Context, t Task) (Task, error) {
	t.normalize()
	if t.ProjectID <= 0 {
		return Task{}, fmt.Errorf("%w: project_id required", ErrInvalid)
	}
	if err := t.validate(); err != nil {
		return Task{}, err
	}

	t.CreatedAt = s.now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (project_id, title, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.ProjectID, t.Title, t.Description, t.Status, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Task{}, ErrProjectNotFound
		}
		return Task{}, fmt.Errorf("tasks: create: %w", err)
	}
	return t, nil
}

func (s *Store) Get(ctx context.Context, id int) (Task, error) {
	var t Task
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, status, created_at
		FROM tasks
		WHERE id = $1
	`, id).Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("tasks: get: %w", err)
	}
	return t, nil
}

// ListByProject returns a project's tasks ordered by id.
func (s *Store) ListByProject(ctx context.Context, projectID int) ([]Task, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = $1`, projectID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("tasks: project lookup: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, description, status, created_at
		FROM tasks
		WHERE project_id = $1
		ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("tasks: list: %w", err)
	}
	defer rows.Close()

	list := []Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("tasks: scan: %w", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tasks: rows: %w", err)
	}
	return list, nil
}

func (s *Store) Update(ctx context.Context, id int, patch Patch) (Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	t.normalize()
	if err := t.validate(); err != nil {
		return Task{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, status = $3
		WHERE id = $4
	`, t.Title, t.Description, t.Status, id)
	if err != nil {
		return Task{}, fmt.Errorf("tasks: update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// Delete removes a task and, by cascade, its metrics.
func (s *Store) Delete(ctx context.Context, id int) (Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return Task{}, fmt.Errorf("tasks: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Task{}, fmt.Errorf("tasks: rows affected: %w", err)
	}
	if n == 0 {
		return Task{}, ErrNotFound
	}
	return t, nil
}
