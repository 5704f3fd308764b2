// Package server wires the handlers into an HTTP server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"project-health-backend/internal/activity"
	"project-health-backend/internal/auth"
	"project-health-backend/internal/config"
	"project-health-backend/internal/metrics"
	"project-health-backend/internal/projects"
	"project-health-backend/internal/tasks"
	"project-health-backend/internal/web"
)

// Server is the HTTP API.
type Server struct {
	http      *http.Server
	db        *sql.DB
	logger    *slog.Logger
	startTime time.Time
	version   string
}

// New builds the router for cfg on top of dbx. clock may be nil.
func New(cfg *config.Config, dbx *sql.DB, logger *slog.Logger, version string, clock projects.Clock) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}

	s := &Server{
		db:        dbx,
		logger:    logger,
		startTime: time.Now(),
		version:   version,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux, cfg, clock)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Platform", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	})

	var handler http.Handler = mux
	handler = LoggingMiddleware(logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoverMiddleware(logger)(handler)
	handler = c.Handler(handler)

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux, cfg *config.Config, clock projects.Clock) {
	projectStore := projects.NewStore(s.db)
	taskStore := tasks.NewStore(s.db)
	metricStore := metrics.NewStore(s.db)
	rec := activity.NewRecorder(s.db, s.logger)
	guard := auth.New([]byte(cfg.Auth.Secret))
	defaults := projects.Defaults{
		StartDate: cfg.Project.StartDate,
		EndDate:   cfg.Project.EndDate,
	}

	mux.HandleFunc("GET /health", s.healthHandler)

	// health evaluation
	mux.HandleFunc("POST /project-health", projects.EvaluateHandler(defaults, clock))
	mux.HandleFunc("GET /projects/{id}/health", projects.HealthHandler(projectStore, defaults, clock))

	// projects
	mux.HandleFunc("POST /projects", guard.Wrap(projects.CreateProjectHandler(projectStore, rec)))
	mux.HandleFunc("GET /projects", projects.ListProjectsHandler(projectStore))
	mux.HandleFunc("GET /projects/{id}", projects.GetProjectHandler(projectStore))
	mux.HandleFunc("PUT /projects/{id}", guard.Wrap(projects.UpdateProjectHandler(projectStore, rec)))
	mux.HandleFunc("DELETE /projects/{id}", guard.Wrap(projects.DeleteProjectHandler(projectStore, rec)))
	mux.HandleFunc("GET /projects/{id}/tasks", tasks.ListProjectTasksHandler(taskStore))
	mux.HandleFunc("GET /projects/{id}/activity", activity.ListHandler(rec))

	// tasks
	mux.HandleFunc("POST /tasks", guard.Wrap(tasks.CreateTaskHandler(taskStore, rec)))
	mux.HandleFunc("GET /tasks/{id}", tasks.GetTaskHandler(taskStore))
	mux.HandleFunc("PUT /tasks/{id}", guard.Wrap(tasks.UpdateTaskHandler(taskStore, rec)))
	mux.HandleFunc("DELETE /tasks/{id}", guard.Wrap(tasks.DeleteTaskHandler(taskStore, rec)))
	mux.HandleFunc("GET /tasks/{id}/metrics", metrics.ListTaskMetricsHandler(metricStore))

	// metrics
	mux.HandleFunc("POST /metrics", guard.Wrap(metrics.CreateMetricHandler(metricStore, rec)))
	mux.HandleFunc("GET /metrics/{id}", metrics.GetMetricHandler(metricStore))
	mux.HandleFunc("PUT /metrics/{id}", guard.Wrap(metrics.UpdateMetricHandler(metricStore, rec)))
	mux.HandleFunc("DELETE /metrics/{id}", guard.Wrap(metrics.DeleteMetricHandler(metricStore, rec)))
}

type healthStatus struct {
	Status        string `json:"status"` // ok, degraded
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Database      string `json:"database"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	st := healthStatus{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Database:      "ok",
	}
	code := http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("database ping failed", "error", err)
		st.Status = "degraded"
		st.Database = err.Error()
		code = http.StatusServiceUnavailable
	}

	web.WriteJSON(w, code, st)
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
