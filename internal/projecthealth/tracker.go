// Package projecthealth derives simple health indicators for a single project
// from its task counters, date range and risk-factor list.
//
// A Tracker is a plain value owned by one caller. It does no I/O and is not
// safe for concurrent Refresh calls; callers sharing one must serialize access.
package projecthealth

import (
	"errors"
	"time"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

// Risk thresholds on the number of risk factors.
const secondsPerDay = 24 * 60 * 60

const (
	mediumRiskMin = 1
	highRiskMin   = 6
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Tracker holds one project's snapshot.
type Tracker struct {
	total       int
	completed   int
	start       time.Time
	end         time.Time
	riskFactors []string
}

// Snapshot is a copy of a tracker's current state.
type Snapshot struct {
	TotalTaskCount     int
	CompletedTaskCount int
	StartDate          time.Time
	EndDate            time.Time
	RiskFactors        []string
}

// Update describes a Refresh. A nil Completed leaves the count unchanged;
// RiskFactors is applied only when ReplaceRisks is set, so an empty list can
// clear the factors.
type Update struct {
	Completed    *int
	RiskFactors  []string
	ReplaceRisks bool
}

// Report is the wire shape of the derived indicators.
type Report struct {
	ProgressPercentage float64   `json:"progressPercentage"`
	TaskCompletionRate float64   `json:"taskCompletionRate"`
	RiskLevel          RiskLevel `json:"riskLevel"`
	DaysRemaining      int       `json:"daysRemaining"`
}

// New validates its inputs and returns a tracker, or an *Error and no tracker.
// A non-positive total is accepted; the derived ratios fall back to zero.
func New(total, completed int, startText, endText string, riskFactors []string) (*Tracker, error) {
	start, err := ParseDate("startDate", startText)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate("endDate", endText)
	if err != nil {
		return nil, err
	}
	if completed < 0 {
		return nil, invalidf("completedTaskCount", "must be non-negative, got %d", completed)
	}

	return &Tracker{
		total:       total,
		completed:   completed,
		start:       start,
		end:         end,
		riskFactors: cloneStrings(riskFactors),
	}, nil
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(field, s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, parseErrorf(field, "%q is not a YYYY-MM-DD date", s)
	}
	return d, nil
}

// Progress returns completed/total*100, or 0 when total is not positive.
// The result is not clamped: more completed than total tasks yields >100.
func (t *Tracker) Progress() float64 {
	if t.total <= 0 {
		return 0
	}
	return float64(t.completed) / float64(t.total) * 100
}

// CompletionRate returns completed tasks per elapsed day since the start date,
// or 0 when now's calendar date is not after the start date.
func (t *Tracker) CompletionRate(now time.Time) float64 {
	elapsed := daysBetween(t.start, now)
	if elapsed <= 0 {
		return 0
	}
	return float64(t.completed) / float64(elapsed)
}

// DaysRemaining returns whole days from now's calendar date to the end date.
// It is negative once the end date has passed.
func (t *Tracker) DaysRemaining(now time.Time) int {
	return daysBetween(calendarDate(now), t.end)
}

func (t *Tracker) RiskLevel() RiskLevel {
	switch n := len(t.riskFactors); {
	case n >= highRiskMin:
		return RiskHigh
	case n >= mediumRiskMin:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Refresh replaces the completed count and/or the risk factors. Each field is
// validated and applied on its own: a rejected count leaves the previous
// value in place without blocking the risk-factor replacement.
func (t *Tracker) Refresh(u Update) error {
	var errs []error

	if u.Completed != nil {
		if *u.Completed < 0 {
			errs = append(errs, invalidf("completedTaskCount", "must be non-negative, got %d", *u.Completed))
		} else {
			t.completed = *u.Completed
		}
	}

	if u.ReplaceRisks {
		t.riskFactors = cloneStrings(u.RiskFactors)
	}

	return errors.Join(errs...)
}

func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		TotalTaskCount:     t.total,
		CompletedTaskCount: t.completed,
		StartDate:          t.start,
		EndDate:            t.end,
		RiskFactors:        cloneStrings(t.riskFactors),
	}
}

// Evaluate computes every indicator against the given current date.
func (t *Tracker) Evaluate(now time.Time) Report {
	return Report{
		ProgressPercentage: t.Progress(),
		TaskCompletionRate: t.CompletionRate(now),
		RiskLevel:          t.RiskLevel(),
		DaysRemaining:      t.DaysRemaining(now),
	}
}

// calendarDate drops the clock, keeping the date as seen in t's location.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole civil days. It stays off time.Duration, which
// saturates at about 292 years.
func daysBetween(from, to time.Time) int {
	return int((calendarDate(to).Unix() - calendarDate(from).Unix()) / secondsPerDay)
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
