package projects

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-health-backend/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(t.TempDir(), "projects.db"))
	dbx, err := db.Connect(ctx, "sqlite3", dsn, db.Pool{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, db.Migrate(ctx, dbx, "sqlite3"))
	return dbx
}

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	dbx := newTestDB(t)
	s := NewStore(dbx)
	s.now = func() time.Time { return time.Date(2023, 1, 15, 9, 30, 0, 0, time.UTC) }
	return s, dbx
}

func insertTask(t *testing.T, dbx *sql.DB, projectID int, status string) {
	t.Helper()
	_, err := dbx.Exec(`
		INSERT INTO tasks (project_id, title, status, created_at)
		VALUES ($1, $2, $3, $4)
	`, projectID, "task", status, time.Now().UTC())
	require.NoError(t, err)
}

func TestStoreCreateAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, Project{
		Name:        "  Apollo ",
		StartDate:   "2023-01-01",
		EndDate:     "2023-12-31",
		RiskFactors: []string{"Budget overrun", "Key staff leaving"},
	})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "Apollo", p.Name)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", got.Name)
	assert.Equal(t, "2023-01-01", got.StartDate)
	assert.Equal(t, "2023-12-31", got.EndDate)
	assert.Equal(t, []string{"Budget overrun", "Key staff leaving"}, got.RiskFactors)
	assert.True(t, got.CreatedAt.Equal(p.CreatedAt))
}

func TestStoreCreateValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		p    Project
	}{
		{"missing name", Project{Name: "   "}},
		{"bad start date", Project{Name: "x", StartDate: "2023-13-01"}},
		{"bad end date", Project{Name: "x", EndDate: "31/12/2023"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.p)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListKeepsRiskOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, Project{Name: "a", RiskFactors: []string{"z", "a", "m"}})
	require.NoError(t, err)
	b, err := s.Create(ctx, Project{Name: "b"})
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, []string{"z", "a", "m"}, list[0].RiskFactors)
	assert.Equal(t, b.ID, list[1].ID)
	assert.Equal(t, []string{}, list[1].RiskFactors)
}

func TestStoreUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, Project{Name: "a", StartDate: "2023-01-01", RiskFactors: []string{"r1"}})
	require.NoError(t, err)

	name := "renamed"
	got, err := s.Update(ctx, p.ID, Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, "2023-01-01", got.StartDate)
	assert.Equal(t, []string{"r1"}, got.RiskFactors)

	empty := []string{}
	none := ""
	got, err = s.Update(ctx, p.ID, Patch{RiskFactors: &empty, StartDate: &none})
	require.NoError(t, err)
	assert.Empty(t, got.RiskFactors)
	assert.Empty(t, got.StartDate)

	stored, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Name)
	assert.Empty(t, stored.RiskFactors)
	assert.Empty(t, stored.StartDate)

	bad := "2023-02-30"
	_, err = s.Update(ctx, p.ID, Patch{EndDate: &bad})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.Update(ctx, p.ID+100, Patch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDeleteCascades(t *testing.T) {
	s, dbx := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, Project{Name: "a", RiskFactors: []string{"r"}})
	require.NoError(t, err)
	insertTask(t, dbx, p.ID, "pending")

	require.NoError(t, s.Delete(ctx, p.ID))
	assert.ErrorIs(t, s.Delete(ctx, p.ID), ErrNotFound)

	var n int
	require.NoError(t, dbx.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, dbx.QueryRow(`SELECT COUNT(*) FROM project_risks`).Scan(&n))
	assert.Zero(t, n)
}

func TestStoreTaskCounts(t *testing.T) {
	s, dbx := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, Project{Name: "a"})
	require.NoError(t, err)

	c, err := s.TaskCounts(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskCounts{}, c)

	insertTask(t, dbx, p.ID, "completed")
	insertTask(t, dbx, p.ID, "completed")
	insertTask(t, dbx, p.ID, "in_progress")
	insertTask(t, dbx, p.ID, "pending")

	c, err = s.TaskCounts(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskCounts{Total: 4, Completed: 2}, c)
}

func TestStoreNameLimitCountsCharacters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, Project{Name: strings.Repeat("ü", maxNameLen)})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ü", maxNameLen), p.Name)

	_, err = s.Create(ctx, Project{Name: strings.Repeat("ü", maxNameLen+1)})
	assert.ErrorIs(t, err, ErrInvalid)
}
