package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"project-health-backend/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Envelope is what we store with every event.
type Envelope struct {
	Subject   string
	RequestID string
	Platform  string
}

// Event is one recorded mutation.
type Event struct {
	ID         int            `json:"id"`
	Name       string         `json:"event_name"`
	Time       time.Time      `json:"event_time"`
	ProjectID  *int           `json:"project_id,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Platform   string         `json:"platform"`
	Properties map[string]any `json:"properties"`
}

// FromRequest builds the envelope from request headers and context.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web", "cli":
	default:
		platform = "unknown"
	}

	subject, _ := auth.SubjectFromContext(r.Context())
	requestID, _ := RequestIDFromContext(r.Context())

	return Envelope{
		Subject:   subject,
		RequestID: requestID,
		Platform:  platform,
	}
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

type Recorder struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(db *sql.DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, logger: logger, now: time.Now}
}

// Record inserts one event. projectID may be 0 for events not tied to a project.
func (rc *Recorder) Record(ctx context.Context, env Envelope, name string, projectID int, props map[string]any) error {
	if name == "" {
		return nil
	}
	if props == nil {
		props = map[string]any{}
	}

	b, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("activity: marshal %s: %w", name, err)
	}

	_, err = rc.db.ExecContext(ctx, `
		INSERT INTO activity_events (
			event_name, event_time, project_id,
			subject, request_id, platform, properties
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, name, rc.now().UTC(), nullIfZero(projectID),
		nullIfEmpty(env.Subject), nullIfEmpty(env.RequestID), env.Platform, string(b),
	)
	if err != nil {
		return fmt.Errorf("activity: record %s: %w", name, err)
	}
	return nil
}

// Log records an event for r and only logs failures; activity never breaks
// the request that produced it.
func (rc *Recorder) Log(r *http.Request, name string, projectID int, props map[string]any) {
	if rc == nil {
		return
	}
	if err := rc.Record(r.Context(), FromRequest(r), name, projectID, props); err != nil {
		rc.logger.Warn("activity not recorded", "event", name, "project_id", projectID, "error", err)
	}
}

// ListByProject returns a project's events, newest first. limit <= 0 means all.
func (rc *Recorder) ListByProject(ctx context.Context, projectID, limit int) ([]Event, error) {
	query := `
		SELECT id, event_name, event_time, project_id,
			COALESCE(subject, ''), COALESCE(request_id, ''), platform, properties
		FROM activity_events
		WHERE project_id = $1
		ORDER BY id DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = rc.db.QueryContext(ctx, query+" LIMIT $2", projectID, limit)
	} else {
		rows, err = rc.db.QueryContext(ctx, query, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("activity: list: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e     Event
			pid   sql.NullInt64
			props string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Time, &pid, &e.Subject, &e.RequestID, &e.Platform, &props); err != nil {
			return nil, fmt.Errorf("activity: scan: %w", err)
		}
		if pid.Valid {
			id := int(pid.Int64)
			e.ProjectID = &id
		}
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			return nil, fmt.Errorf("activity: decode properties of event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity: rows: %w", err)
	}
	return events, nil
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullIfZero(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
