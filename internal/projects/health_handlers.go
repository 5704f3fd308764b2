package projects

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"project-health-backend/internal/projecthealth"
	"project-health-backend/internal/web"
)

// Defaults are the dates used when neither the request nor the project has them.
type Defaults struct {
	StartDate string
	EndDate   string
}

// Clock returns the current time; handlers take it so tests can pin "today".
type Clock func() time.Time

// evaluateRequest is the body of POST /project-health.
type evaluateRequest struct {
	TotalTaskCount     projecthealth.Count       `json:"totalTaskCount"`
	CompletedTaskCount projecthealth.Count       `json:"completedTaskCount"`
	StartDate          *string                   `json:"startDate"`
	EndDate            *string                   `json:"endDate"`
	RiskFactors        projecthealth.RiskFactors `json:"riskFactors"`
	CurrentDate        string                    `json:"currentDate"`
	Refresh            *refreshRequest           `json:"refresh"`
}

// refreshRequest replaces figures after construction, before evaluation.
type refreshRequest struct {
	CompletedTaskCount projecthealth.Count       `json:"completedTaskCount"`
	RiskFactors        projecthealth.RiskFactors `json:"riskFactors"`
}

// EvaluateHandler serves POST /project-health. Nothing is stored: the tracker
// lives for the duration of the request.
func EvaluateHandler(defaults Defaults, clock Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body evaluateRequest
		if err := decodeStrict(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if !body.TotalTaskCount.Set {
			http.Error(w, "totalTaskCount is required", http.StatusBadRequest)
			return
		}
		if !body.CompletedTaskCount.Set {
			http.Error(w, "completedTaskCount is required", http.StatusBadRequest)
			return
		}

		start := defaults.StartDate
		if body.StartDate != nil {
			start = *body.StartDate
		}
		end := defaults.EndDate
		if body.EndDate != nil {
			end = *body.EndDate
		}

		now, err := currentDate(body.CurrentDate, clock)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		tracker, err := projecthealth.New(
			body.TotalTaskCount.Value,
			body.CompletedTaskCount.Value,
			start,
			end,
			body.RiskFactors.Values,
		)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if body.Refresh != nil {
			u := projecthealth.Update{
				RiskFactors:  body.Refresh.RiskFactors.Values,
				ReplaceRisks: body.Refresh.RiskFactors.Set,
			}
			if body.Refresh.CompletedTaskCount.Set {
				n := body.Refresh.CompletedTaskCount.Value
				u.Completed = &n
			}
			if err := tracker.Refresh(u); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		web.WriteJSON(w, http.StatusOK, tracker.Evaluate(now))
	}
}

// projectHealth is the response of GET /projects/{id}/health.
type projectHealth struct {
	ProjectID          int    `json:"projectId"`
	TotalTaskCount     int    `json:"totalTaskCount"`
	CompletedTaskCount int    `json:"completedTaskCount"`
	StartDate          string `json:"startDate"`
	EndDate            string `json:"endDate"`
	CurrentDate        string `json:"currentDate"`
	projecthealth.Report
}

// HealthHandler serves GET /projects/{id}/health?date=YYYY-MM-DD from the
// stored project and its task counts.
func HealthHandler(store *Store, defaults Defaults, clock Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.PathID(w, r, "id")
		if !ok {
			return
		}

		now, err := currentDate(r.URL.Query().Get("date"), clock)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		p, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		counts, err := store.TaskCounts(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		start := firstNonEmpty(p.StartDate, defaults.StartDate)
		end := firstNonEmpty(p.EndDate, defaults.EndDate)

		tracker, err := projecthealth.New(counts.Total, counts.Completed, start, end, p.RiskFactors)
		if err != nil {
			// stored dates were validated on write, so only bad defaults land here
			web.ServerError(w, r, "health evaluation failed", err)
			return
		}

		web.WriteJSON(w, http.StatusOK, projectHealth{
			ProjectID:          p.ID,
			TotalTaskCount:     counts.Total,
			CompletedTaskCount: counts.Completed,
			StartDate:          start,
			EndDate:            end,
			CurrentDate:        now.Format(projecthealth.DateLayout),
			Report:             tracker.Evaluate(now),
		})
	}
}

// decodeStrict keeps the message of count/risk-factor type errors and reduces
// every other decode failure to "invalid json".
func decodeStrict(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}
	var herr *projecthealth.Error
	if errors.As(err, &herr) {
		return err
	}
	return errors.New("invalid json")
}

func currentDate(s string, clock Clock) (time.Time, error) {
	if s == "" {
		return clock(), nil
	}
	return projecthealth.ParseDate("currentDate", s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
