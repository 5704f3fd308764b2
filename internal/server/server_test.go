package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-health-backend/internal/auth"
	"project-health-backend/internal/config"
	"project-health-backend/internal/db"
)

func newTestServer(t *testing.T, secret string) (*Server, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()

	cfg := config.Default()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Auth.Secret = secret

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(t.TempDir(), "server.db"))
	dbx, err := db.Connect(ctx, cfg.Database.Driver, dsn, db.Pool{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, db.Migrate(ctx, dbx, cfg.Database.Driver))

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	clock := func() time.Time { return time.Date(2023, 2, 1, 12, 0, 0, 0, time.UTC) }

	return New(cfg, dbx, logger, "test", clock), &logs
}

func send(t *testing.T, h http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rr := send(t, srv.Handler(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var st healthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, "test", st.Version)
	assert.Equal(t, "ok", st.Database)
}

func TestEndToEndProjectHealth(t *testing.T) {
	srv, logs := newTestServer(t, "")
	h := srv.Handler()

	rr := send(t, h, http.MethodPost, "/projects",
		`{"name":"Apollo","start_date":"2023-01-01","end_date":"2023-12-31","risk_factors":["Budget overrun"]}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	for i, status := range []string{"completed", "completed", "pending", "in_progress"} {
		body := fmt.Sprintf(`{"project_id":1,"title":"task %d","status":%q}`, i, status)
		rr = send(t, h, http.MethodPost, "/tasks", body, nil)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr = send(t, h, http.MethodPost, "/metrics", `{"task_id":1,"name":"hours","value":3}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = send(t, h, http.MethodGet, "/projects/1/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var health map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, float64(4), health["totalTaskCount"])
	assert.Equal(t, float64(2), health["completedTaskCount"])
	assert.Equal(t, float64(50), health["progressPercentage"])
	assert.Equal(t, "Medium", health["riskLevel"])
	assert.Equal(t, float64(333), health["daysRemaining"])
	assert.Equal(t, "2023-02-01", health["currentDate"])

	rr = send(t, h, http.MethodGet, "/projects/1/activity", "", http.Header{"X-Request-Id": {"abc-123"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-Id"))

	var events []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	assert.Len(t, events, 6)

	assert.Contains(t, logs.String(), `"msg":"http request"`)
	assert.Contains(t, logs.String(), `"request_id":"abc-123"`)
}

func TestRequestIDIsGenerated(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rr := send(t, srv.Handler(), http.MethodGet, "/projects", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, rr.Header().Get("X-Request-Id"), 36)
}

func TestStatelessEvaluateRoute(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	// evaluation never needs a token
	rr := send(t, srv.Handler(), http.MethodPost, "/project-health",
		`{"totalTaskCount":100,"completedTaskCount":45,"riskFactors":["a","b"],"currentDate":"2023-02-01"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"riskLevel":"Medium"`)
	assert.Contains(t, rr.Body.String(), `"daysRemaining":333`)
}

func TestMutatingRoutesRequireTokenWhenSecretSet(t *testing.T) {
	srv, _ := newTestServer(t, "secret")
	h := srv.Handler()

	rr := send(t, h, http.MethodPost, "/projects", `{"name":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	tok, err := auth.GenerateToken([]byte("secret"), "alice", time.Hour, time.Now())
	require.NoError(t, err)
	rr = send(t, h, http.MethodPost, "/projects", `{"name":"x"}`, http.Header{"Authorization": {"Bearer " + tok}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// reads stay open
	rr = send(t, h, http.MethodGet, "/projects/1", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = send(t, h, http.MethodGet, "/projects/1/activity", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"subject":"alice"`)
}

func TestUnknownMethodIsRejected(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rr := send(t, srv.Handler(), http.MethodPatch, "/projects/1", `{}`, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := RecoverMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := send(t, h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, logs.String(), "handler panic")
}
