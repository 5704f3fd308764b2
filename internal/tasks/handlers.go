package tasks

import (
	"errors"
	"net/http"

	"project-health-backend/internal/activity"
	"project-health-backend/internal/web"
)

func CreateTaskHandler(store *Store, rec *activity.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProjectID   int    `json:"project_id"`
			Title       string `json:"title"`
			Description string `json:"description"`
			Status      string `json:"status"`
		}
		if !web.DecodeJSON(w, r, &body) {
			return
		}

		t, err := store.Create(r.Context(), Task{
			ProjectID:   body.ProjectID,
			Title:       body.Title,
			Description: body.Description,
			Status:      body.Status,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		rec.Log(r, "task_created", t.ProjectID, map[string]any{
			"task_id": t.ID,
			"status":  t.Status,
		})

		web.WriteJSON(w, http.StatusCreated, t)
	}
}

func GetTaskHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		t, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, t)
	}
}

// ListProjectTasksHandler serves GET /projects/{id}/tasks.
func ListProjectTasksHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		list, err := store.ListByProject(r.Context(), projectID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		web.WriteJSON(w, http.StatusOK, list)
	}
}

func UpdateTaskHandler(store *Store, rec *activity.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		var body struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
			Status      *string `json:"status"`
		}
		if !web.DecodeJSON(w, r, &body) {
			return
		}

		before, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		t, err := store.Update(r.Context(), id, Patch{
			Title:       body.Title,
			Description: body.Description,
			Status:      body.Status,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		event := "task_updated"
		if before.Status != t.Status {
			event = "task_status_changed"
		}
		rec.Log(r, event, t.ProjectID, map[string]any{
			"task_id":     t.ID,
			"from_status": before.Status,
			"to_status":   t.Status,
		})

		web.WriteJSON(w, http.StatusOK, t)
	}
}

func DeleteTaskHandler(store *Store, rec *activity.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		t, err := store.Delete(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		rec.Log(r, "task_deleted", t.ProjectID, map[string]any{"task_id": t.ID})

		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "task not found", http.StatusNotFound)
	case errors.Is(err, ErrProjectNotFound):
		http.Error(w, "project not found", http.StatusNotFound)
	default:
		web.ServerError(w, r, "db error", err)
	}
}
