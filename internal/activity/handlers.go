package activity

import (
	"net/http"
	"strconv"

	"project-health-backend/internal/web"
)

// ListHandler serves GET /projects/{id}/activity?limit=N.
func ListHandler(rc *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		events, err := rc.ListByProject(r.Context(), projectID, limit)
		if err != nil {
			web.ServerError(w, r, "activity list failed", err)
			return
		}

		web.WriteJSON(w, http.StatusOK, events)
	}
}
