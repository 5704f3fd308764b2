// Package metrics stores named measurements recorded against tasks.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"project-health-backend/internal/db"
)

var (
	ErrNotFound     = errors.New("metrics: not found")
	ErrTaskNotFound = errors.New("metrics: task not found")
	ErrInvalid      = errors.New("invalid metric")
)

const maxNameLen = 120

type Metric struct {
	ID        int       `json:"id"`
	TaskID    int       `json:"task_id"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Patch carries a partial update; nil fields are left unchanged.
type Patch struct {
	Name  *string
	Value *float64
}

func (m *Metric) validate() error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if utf8.RuneCountInString(m.Name) > maxNameLen {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalid, maxNameLen)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return fmt.Errorf("%w: value must be finite", ErrInvalid)
	}
	return nil
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(dbx *sql.DB) *Store {
	return &Store{db: dbx, now: time.Now}
}

// Create inserts m; a zero Timestamp is set to now.
func (s *Store) Create(ctx context.Context, m Metric) (Metric, error) {
	if m.TaskID <= 0 {
		return Metric{}, fmt.Errorf("%w: task_id required", ErrInvalid)
	}
	if err := m.validate(); err != nil {
		return Metric{}, err
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	m.Timestamp = m.Timestamp.UTC()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO metrics (task_id, name, value, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.TaskID, m.Name, m.Value, m.Timestamp).Scan(&m.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Metric{}, ErrTaskNotFound
		}
		return Metric{}, fmt.Errorf("metrics: create: %w", err)
	}
	return m, nil
}

func (s *Store) Get(ctx context.Context, id int) (Metric, error) {
	var m Metric
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, name, value, recorded_at
		FROM metrics
		WHERE id = $1
	`, id).Scan(&m.ID, &m.TaskID, &m.Name, &m.Value, &m.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Metric{}, ErrNotFound
		}
		return Metric{}, fmt.Errorf("metrics: get: %w", err)
	}
	return m, nil
}

// ListByTask returns a task's metrics, oldest first.
func (s *Store) ListByTask(ctx context.Context, taskID int) ([]Metric, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = $1`, taskID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("metrics: task lookup: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, name, value, recorded_at
		FROM metrics
		WHERE task_id = $1
		ORDER BY recorded_at, id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("metrics: list: %w", err)
	}
	defer rows.Close()

	list := []Metric{}
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.ID, &m.TaskID, &m.Name, &m.Value, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("metrics: scan: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metrics: rows: %w", err)
	}
	return list, nil
}

func (s *Store) Update(ctx context.Context, id int, patch Patch) (Metric, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return Metric{}, err
	}
	if patch.Name != nil {
		m.Name = *patch.Name
	}
	if patch.Value != nil {
		m.Value = *patch.Value
	}
	if err := m.validate(); err != nil {
		return Metric{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE metrics SET name = $1, value = $2 WHERE id = $3
	`, m.Name, m.Value, id)
	if err != nil {
		return Metric{}, fmt.Errorf("metrics: update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Metric{}, ErrNotFound
	}
	return m, nil
}

func (s *Store) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM metrics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("metrics: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("metrics: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ProjectID resolves the project a task belongs to, for activity records.
func (s *Store) ProjectID(ctx context.Context, taskID int) (int, error) {
	var pid int
	err := s.db.QueryRowContext(ctx, `SELECT project_id FROM tasks WHERE id = $1`, taskID).Scan(&pid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTaskNotFound
		}
		return 0, fmt.Errorf("metrics: project lookup: %w", err)
	}
	return pid, nil
}
