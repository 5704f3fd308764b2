package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"project-health-backend/internal/activity"
	"project-health-backend/internal/web"
)

func CreateMetricHandler(store *Store, rec *activity.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TaskID    int        `json:"task_id"`
			Name      string     `json:"name"`
			Value     *float64   `json:"value"`
			Timestamp *time.Time `json:"timestamp"`
		}
		if !web.DecodeJSON(w, r, &body) {
			return
		}
		if body.Value == nil {
			http.Error(w, "value is required", http.StatusBadRequest)
			return
		}

		m := Metric{TaskID: body.TaskID, Name: body.Name, Value: *body.Value}
		if body.Timestamp != nil {
			m.Timestamp = *body.Timestamp
		}

		m, err := store.Create(r.Context(), m)
		if err != nil {
			writeError(w, r, err)
			return
		}

		logActivity(r, store, rec, "metric_recorded", m)

		web.WriteJSON(w, http.StatusCreated, m)
	}
}

func GetMetricHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		m, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, m)
	}
}

// ListTaskMetricsHandler serves GET /tasks/{id}/metrics.
func ListTaskMetricsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		list, err := store.ListByTask(r.Context(), taskID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, list)
	}
}

func UpdateMetricHandler(store *Store, rec *activity.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		var body struct {
			Name  *string  `json:"name"`
			Value *float64 `json:"value"`
		}
		if !web.DecodeJSON(w, r, &body) {
			return
		}

		m, err := store.Update(r.Context(), id, Patch{Name: body.Name, Value: body.Value})
		if err != nil {
			writeError(w, r, err)
			return
		}

		logActivity(r, store, rec, "metric_updated", m)

		web.WriteJSON(w, http.StatusOK, m)
	}
}

func DeleteMetricHandler(store *Store, rec *activity.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		m, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := store.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}

		logActivity(r, store, rec, "metric_deleted", m)

		w.WriteHeader(http.StatusNoContent)
	}
}

func logActivity(r *http.Request, store *Store, rec *activity.Recorder, event string, m Metric) {
	pid, err := store.ProjectID(r.Context(), m.TaskID)
	if err != nil {
		slog.Warn("metric project lookup failed", "metric_id", m.ID, "task_id", m.TaskID, "error", err)
		return
	}
	rec.Log(r, event, pid, map[string]any{
		"metric_id": m.ID,
		"task_id":   m.TaskID,
		"name":      m.Name,
		"value":     m.Value,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "metric not found", http.StatusNotFound)
	case errors.Is(err, ErrTaskNotFound):
		http.Error(w, "task not found", http.StatusNotFound)
	default:
		web.ServerError(w, r, "db error", err)
	}
}
