package projects

import (
	"errors"
	"net/http"
	"sort"

	"project-health-backend/internal/activity"
	"project-health-backend/internal/web"
)

func CreateProjectHandler(store *Store, rec *activity.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			StartDate   string   `json:"start_date"`
			EndDate     string   `json:"end_date"`
			RiskFactors []string `json:"risk_factors"`
		}
		if !web.DecodeJSON(w, r, &body) {
			return
		}

		p, err := store.Create(r.Context(), Project{
			Name:        body.Name,
			Description: body.Description,
			StartDate:   body.StartDate,
			EndDate:     body.EndDate,
			RiskFactors: body.RiskFactors,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		rec.Log(r, "project_created", p.ID, map[string]any{
			"name_len":     len(p.Name),
			"risk_factors": len(p.RiskFactors),
		})

		web.WriteJSON(w, http.StatusCreated, p)
	}
}

func ListProjectsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, list)
	}
}

func GetProjectHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		p, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, p)
	}
}

func UpdateProjectHandler(store *Store, rec *activity.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		var body struct {
			Name        *string   `json:"name"`
			Description *string   `json:"description"`
			StartDate   *string   `json:"start_date"`
			EndDate     *string   `json:"end_date"`
			RiskFactors *[]string `json:"risk_factors"`
		}
		if !web.DecodeJSON(w, r, &body) {
			return
		}

		p, err := store.Update(r.Context(), id, Patch{
			Name:        body.Name,
			Description: body.Description,
			StartDate:   body.StartDate,
			EndDate:     body.EndDate,
			RiskFactors: body.RiskFactors,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		changed := []string{}
		for field, set := range map[string]bool{
			"name":         body.Name != nil,
			"description":  body.Description != nil,
			"start_date":   body.StartDate != nil,
			"end_date":     body.EndDate != nil,
			"risk_factors": body.RiskFactors != nil,
		} {
			if set {
				changed = append(changed, field)
			}
		}
		sort.Strings(changed)
		rec.Log(r, "project_updated", p.ID, map[string]any{"fields": changed})

		web.WriteJSON(w, http.StatusOK, p)
	}
}

func DeleteProjectHandler(store *Store, rec *activity.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		if err := store.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}

		rec.Log(r, "project_deleted", id, nil)

		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "project not found", http.StatusNotFound)
	default:
		web.ServerError(w, r, "db error", err)
	}
}
