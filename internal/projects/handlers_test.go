package projects

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-health-backend/internal/activity"
	"project-health-backend/internal/projecthealth"
)

var testDefaults = Defaults{StartDate: "2023-01-01", EndDate: "2023-12-31"}

func fixedClock(y int, m time.Month, d int) Clock {
	return func() time.Time { return time.Date(y, m, d, 15, 0, 0, 0, time.UTC) }
}

func newTestMux(t *testing.T) (*http.ServeMux, *Store, *activity.Recorder) {
	t.Helper()
	s, dbx := newTestStore(t)
	rec := activity.NewRecorder(dbx, nil)
	clock := fixedClock(2023, time.February, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /projects", CreateProjectHandler(s, rec))
	mux.HandleFunc("GET /projects", ListProjectsHandler(s))
	mux.HandleFunc("GET /projects/{id}", GetProjectHandler(s))
	mux.HandleFunc("PUT /projects/{id}", UpdateProjectHandler(s, rec))
	mux.HandleFunc("DELETE /projects/{id}", DeleteProjectHandler(s, rec))
	mux.HandleFunc("GET /projects/{id}/health", HealthHandler(s, testDefaults, clock))
	mux.HandleFunc("POST /project-health", EvaluateHandler(testDefaults, clock))
	return mux, s, rec
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestProjectCRUDHandlers(t *testing.T) {
	mux, _, rec := newTestMux(t)

	rr := do(t, mux, http.MethodPost, "/projects",
		`{"name":"Apollo","start_date":"2023-01-01","end_date":"2023-12-31","risk_factors":["Budget overrun"]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created Project
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "Apollo", created.Name)
	assert.Equal(t, []string{"Budget overrun"}, created.RiskFactors)

	rr = do(t, mux, http.MethodGet, "/projects", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []Project
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rr = do(t, mux, http.MethodPut, "/projects/1", `{"description":"moon","risk_factors":[]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated Project
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "moon", updated.Description)
	assert.Empty(t, updated.RiskFactors)

	rr = do(t, mux, http.MethodDelete, "/projects/1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, mux, http.MethodGet, "/projects/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	events, err := rec.ListByProject(t.Context(), created.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "project_deleted", events[0].Name)
	assert.Equal(t, "project_updated", events[1].Name)
	assert.Equal(t, []any{"description", "risk_factors"}, events[1].Properties["fields"])
	assert.Equal(t, "project_created", events[2].Name)
}

func TestProjectHandlerErrors(t *testing.T) {
	mux, _, _ := newTestMux(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"invalid json", http.MethodPost, "/projects", `{`, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/projects", `{"name":""}`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/projects", `{"name":"x","start_date":"2023-13-01"}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/projects/abc", "", http.StatusBadRequest},
		{"zero id", http.MethodGet, "/projects/0", "", http.StatusBadRequest},
		{"missing", http.MethodGet, "/projects/9", "", http.StatusNotFound},
		{"update missing", http.MethodPut, "/projects/9", `{"name":"y"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/projects/9", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, mux, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestEvaluateHandler(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rr := do(t, mux, http.MethodPost, "/project-health", `{
		"totalTaskCount": 100,
		"completedTaskCount": 45,
		"startDate": "2023-01-01",
		"endDate": "2023-12-31",
		"riskFactors": ["Budget overrun", "Key staff leaving"],
		"currentDate": "2023-02-01"
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report projecthealth.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.InDelta(t, 45.0, report.ProgressPercentage, 1e-9)
	assert.InDelta(t, 45.0/31.0, report.TaskCompletionRate, 1e-9)
	assert.Equal(t, projecthealth.RiskMedium, report.RiskLevel)
	assert.Equal(t, 333, report.DaysRemaining)
}

func TestEvaluateHandlerDefaultsAndCoercion(t *testing.T) {
	mux, _, _ := newTestMux(t)

	// dates fall back to the defaults and "today" comes from the clock
	rr := do(t, mux, http.MethodPost, "/project-health",
		`{"totalTaskCount": "10", "completedTaskCount": "5"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report projecthealth.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.InDelta(t, 50.0, report.ProgressPercentage, 1e-9)
	assert.InDelta(t, 5.0/31.0, report.TaskCompletionRate, 1e-9)
	assert.Equal(t, projecthealth.RiskLow, report.RiskLevel)
	assert.Equal(t, 333, report.DaysRemaining)
}

func TestEvaluateHandlerRefresh(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rr := do(t, mux, http.MethodPost, "/project-health", `{
		"totalTaskCount": 10,
		"completedTaskCount": 2,
		"riskFactors": ["a"],
		"currentDate": "2023-01-11",
		"refresh": {"completedTaskCount": 5, "riskFactors": ["a","b","c","d","e","f"]}
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report projecthealth.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.InDelta(t, 50.0, report.ProgressPercentage, 1e-9)
	assert.InDelta(t, 0.5, report.TaskCompletionRate, 1e-9)
	assert.Equal(t, projecthealth.RiskHigh, report.RiskLevel)

	rr = do(t, mux, http.MethodPost, "/project-health", `{
		"totalTaskCount": 10,
		"completedTaskCount": 2,
		"refresh": {"completedTaskCount": -1}
	}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "completedTaskCount")
}

func TestEvaluateHandlerErrors(t *testing.T) {
	mux, _, _ := newTestMux(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{`, "invalid json"},
		{"missing total", `{"completedTaskCount": 1}`, "totalTaskCount is required"},
		{"missing completed", `{"totalTaskCount": 1}`, "completedTaskCount is required"},
		{"non-integer count", `{"totalTaskCount": "ten", "completedTaskCount": 1}`, "type error"},
		{"risk factors not a list", `{"totalTaskCount": 1, "completedTaskCount": 1, "riskFactors": "x"}`, "type error: riskFactors"},
		{"bad start date", `{"totalTaskCount": 1, "completedTaskCount": 1, "startDate": "2023-13-01"}`, "parse error: startDate"},
		{"bad current date", `{"totalTaskCount": 1, "completedTaskCount": 1, "currentDate": "soon"}`, "parse error: currentDate"},
		{"negative completed", `{"totalTaskCount": 1, "completedTaskCount": -2}`, "invalid argument: completedTaskCount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, mux, http.MethodPost, "/project-health", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.want)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	mux, s, _ := newTestMux(t)
	ctx := t.Context()

	p, err := s.Create(ctx, Project{
		Name:        "Apollo",
		StartDate:   "2023-01-01",
		EndDate:     "2023-12-31",
		RiskFactors: []string{"Budget overrun"},
	})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		insertTask(t, s.db, p.ID, "completed")
	}
	for i := 0; i < 6; i++ {
		insertTask(t, s.db, p.ID, "pending")
	}

	rr := do(t, mux, http.MethodGet, "/projects/1/health?date=2023-01-05", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got projectHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, p.ID, got.ProjectID)
	assert.Equal(t, 10, got.TotalTaskCount)
	assert.Equal(t, 4, got.CompletedTaskCount)
	assert.Equal(t, "2023-01-05", got.CurrentDate)
	assert.InDelta(t, 40.0, got.ProgressPercentage, 1e-9)
	assert.InDelta(t, 1.0, got.TaskCompletionRate, 1e-9)
	assert.Equal(t, projecthealth.RiskMedium, got.RiskLevel)
	assert.Equal(t, 360, got.DaysRemaining)
}

func TestHealthHandlerUsesDefaultsAndClock(t *testing.T) {
	mux, s, _ := newTestMux(t)

	_, err := s.Create(t.Context(), Project{Name: "undated"})
	require.NoError(t, err)

	rr := do(t, mux, http.MethodGet, "/projects/1/health", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got projectHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "2023-01-01", got.StartDate)
	assert.Equal(t, "2023-12-31", got.EndDate)
	assert.Equal(t, "2023-02-01", got.CurrentDate)
	assert.Zero(t, got.ProgressPercentage)
	assert.Equal(t, projecthealth.RiskLow, got.RiskLevel)
	assert.Equal(t, 333, got.DaysRemaining)
}

func TestHealthHandlerErrors(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rr := do(t, mux, http.MethodGet, "/projects/7/health", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, mux, http.MethodGet, "/projects/7/health?date=2023-02-29", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "parse error: currentDate")
}
