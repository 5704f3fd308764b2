package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"project-health-backend/internal/projecthealth"
)

var (
	ErrNotFound = errors.New("projects: not found")
	ErrInvalid  = errors.New("invalid project")
)

const maxNameLen = 120

type Project struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	RiskFactors []string  `json:"risk_factors"`
	CreatedAt   time.Time `json:"created_at"`
}

// Patch carries a partial update; nil fields are left unchanged.
type Patch struct {
	Name        *string
	Description *string
	StartDate   *string
	EndDate     *string
	RiskFactors *[]string
}

// TaskCounts are the figures a health tracker needs from the tasks table.
type TaskCounts struct {
	Total     int
	Completed int
}

func (p *Project) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.StartDate = strings.TrimSpace(p.StartDate)
	p.EndDate = strings.TrimSpace(p.EndDate)
	if p.RiskFactors == nil {
		p.RiskFactors = []string{}
	}
}

func (p *Project) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if utf8.RuneCountInString(p.Name) > maxNameLen {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalid, maxNameLen)
	}
	if p.StartDate != "" {
		if _, err := projecthealth.ParseDate("start_date", p.StartDate); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if p.EndDate != "" {
		if _, err := projecthealth.ParseDate("end_date", p.EndDate); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Create inserts p and its risk factors in one transaction.
func (s *Store) Create(ctx context.Context, p Project) (Project, error) {
	p.normalize()
	if err := p.validate(); err != nil {
		return Project{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Project{}, fmt.Errorf("projects: begin: %w", err)
	}
	defer tx.Rollback()

	p.CreatedAt = s.now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO projects (name, description, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.Name, p.Description, nullIfEmpty(p.StartDate), nullIfEmpty(p.EndDate), p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return Project{}, fmt.Errorf("projects: create: %w", err)
	}

	if err := replaceRisks(ctx, tx, p.ID, p.RiskFactors); err != nil {
		return Project{}, err
	}

	if err := tx.Commit(); err != nil {
		return Project{}, fmt.Errorf("projects: commit: %w", err)
	}
	return p, nil
}

func (s *Store) Get(ctx context.Context, id int) (Project, error) {
	return get(ctx, s.db, id)
}

// List returns all projects ordered by id.
func (s *Store) List(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, start_date, end_date, created_at
		FROM projects
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("projects: list: %w", err)
	}
	defer rows.Close()

	list := []Project{}
	index := map[int]int{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		index[p.ID] = len(list)
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("projects: rows: %w", err)
	}

	riskRows, err := s.db.QueryContext(ctx, `
		SELECT project_id, label
		FROM project_risks
		ORDER BY project_id, ordinal
	`)
	if err != nil {
		return nil, fmt.Errorf("projects: list risks: %w", err)
	}
	defer riskRows.Close()

	for riskRows.Next() {
		var (
			pid   int
			label string
		)
		if err := riskRows.Scan(&pid, &label); err != nil {
			return nil, fmt.Errorf("projects: scan risk: %w", err)
		}
		if i, ok := index[pid]; ok {
			list[i].RiskFactors = append(list[i].RiskFactors, label)
		}
	}
	if err := riskRows.Err(); err != nil {
		return nil, fmt.Errorf("projects: rows risks: %w", err)
	}

	return list, nil
}

// Update applies patch and returns the stored result.
func (s *Store) Update(ctx context.Context, id int, patch Patch) (Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Project{}, fmt.Errorf("projects: begin: %w", err)
	}
	defer tx.Rollback()

	p, err := get(ctx, tx, id)
	if err != nil {
		return Project{}, err
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.StartDate != nil {
		p.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		p.EndDate = *patch.EndDate
	}
	if patch.RiskFactors != nil {
		p.RiskFactors = *patch.RiskFactors
	}
	p.normalize()
	if err := p.validate(); err != nil {
		return Project{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE projects
		SET name = $1, description = $2, start_date = $3, end_date = $4
		WHERE id = $5
	`, p.Name, p.Description, nullIfEmpty(p.StartDate), nullIfEmpty(p.EndDate), id)
	if err != nil {
		return Project{}, fmt.Errorf("projects: update: %w", err)
	}

	if patch.RiskFactors != nil {
		if err := replaceRisks(ctx, tx, id, p.RiskFactors); err != nil {
			return Project{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Project{}, fmt.Errorf("projects: commit: %w", err)
	}
	return p, nil
}

// Delete removes a project; tasks, metrics and risk factors cascade.
func (s *Store) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("projects: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("projects: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TaskCounts counts a project's tasks and those with status "completed".
func (s *Store) TaskCounts(ctx context.Context, id int) (TaskCounts, error) {
	var c TaskCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0)
		FROM tasks
		WHERE project_id = $1
	`, id).Scan(&c.Total, &c.Completed)
	if err != nil {
		return TaskCounts{}, fmt.Errorf("projects: task counts: %w", err)
	}
	return c, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func get(ctx context.Context, q queryer, id int) (Project, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, description, start_date, end_date, created_at
		FROM projects
		WHERE id = $1
	`, id)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT label FROM project_risks WHERE project_id = $1 ORDER BY ordinal
	`, id)
	if err != nil {
		return Project{}, fmt.Errorf("projects: get risks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return Project{}, fmt.Errorf("projects: scan risk: %w", err)
		}
		p.RiskFactors = append(p.RiskFactors, label)
	}
	if err := rows.Err(); err != nil {
		return Project{}, fmt.Errorf("projects: rows risks: %w", err)
	}
	return p, nil
}

func scanProject(row rowScanner) (Project, error) {
	var (
		p          Project
		start, end sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &start, &end, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, err
		}
		return Project{}, fmt.Errorf("projects: scan: %w", err)
	}
	p.StartDate = start.String
	p.EndDate = end.String
	p.RiskFactors = []string{}
	return p, nil
}

func replaceRisks(ctx context.Context, tx *sql.Tx, projectID int, risks []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_risks WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("projects: clear risks: %w", err)
	}
	for i, label := range risks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO project_risks (project_id, ordinal, label)
			VALUES ($1, $2, $3)
		`, projectID, i, label)
		if err != nil {
			return fmt.Errorf("projects: insert risk: %w", err)
		}
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
