// Package progress implements the course progress bookkeeping rules.
// Status follows percentage, recorded study time nudges the percentage
// toward the course's estimated total hours, and values the caller sets
// explicitly always win over derived ones.
package progress

import (
	"fmt"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/config"
	apperrors "github.com/garyellow/ossu-tracker-go/internal/errors"
	"github.com/garyellow/ossu-tracker-go/internal/extract"
)

// Course progress states.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// ValidStatus reports whether s names a known progress state.
func ValidStatus(s string) bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// StatusForPercentage derives the state a percentage implies.
func StatusForPercentage(pct float64) string {
	switch {
	case pct <= 0:
		return StatusNotStarted
	case pct >= config.ProgressComplete:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

// State is the progress of one course as stored. StartedAt is set when the
// course first leaves not_started; CompletedAt is set while the course is
// completed and cleared when it regresses.
type State struct {
	Status         string
	Percentage     float64
	TimeSpentHours float64
	Notes          string
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// NewState returns the default state for a course nobody started.
func NewState() State {
	return State{Status: StatusNotStarted}
}

// Update carries the fields of one progress update. Nil fields were not
// provided by the caller. TimeSpentHours is the new cumulative total, not
// an increment.
type Update struct {
	Status         *string
	Percentage     *float64
	TimeSpentHours *float64
	Notes          *string
}

// Validate checks every provided field against its value range.
func (u Update) Validate() error {
	if u.Status != nil && !ValidStatus(*u.Status) {
		return apperrors.NewValidationError("status",
			fmt.Sprintf("unknown status %q", *u.Status))
	}
	if u.Percentage != nil && (*u.Percentage < 0 || *u.Percentage > config.ProgressComplete) {
		return apperrors.NewValidationError("percentage",
			fmt.Sprintf("must be between 0 and 100, got %g", *u.Percentage))
	}
	if u.TimeSpentHours != nil && *u.TimeSpentHours < 0 {
		return apperrors.NewValidationError("time_spent_hours",
			fmt.Sprintf("must not be negative, got %g", *u.TimeSpentHours))
	}
	if u.Status == nil && u.Percentage == nil && u.TimeSpentHours == nil && u.Notes == nil {
		return apperrors.NewValidationError("update", "no fields provided")
	}
	return nil
}

// EstimateTotalHours derives a course's total study hours from its effort
// and duration strings: the minimum weekly hours times the week count.
// Reports false when either part cannot be parsed.
func EstimateTotalHours(effort, duration string) (float64, bool) {
	minHours, _, ok := extract.ParseEffortHours(effort)
	if !ok {
		return 0, false
	}
	weeks, ok := extract.ParseDurationWeeks(duration)
	if !ok {
		return 0, false
	}
	return float64(minHours * weeks), true
}

// SuggestedPercentage converts cumulative study time into a percentage:
// the share of the estimated total, or the flat per-hour fallback when no
// estimate exists. Capped at 100.
func SuggestedPercentage(timeSpentHours, estimatedHours float64) float64 {
	if timeSpentHours <= 0 {
		return 0
	}

	var pct float64
	if estimatedHours > 0 {
		pct = timeSpentHours / estimatedHours * config.ProgressComplete
	} else {
		pct = timeSpentHours * config.ProgressFallbackPercentPerHour
	}
	return min(pct, config.ProgressComplete)
}

// WorthBulkUpdate reports whether the reconciliation job should rewrite a
// stored percentage: only when the suggestion improves on it by the
// configured margin.
func WorthBulkUpdate(suggested, current float64) bool {
	return suggested > current+config.ProgressBulkMinGain
}

// Apply merges upd into st. estimatedHours is the course's estimated
// total (zero when unknown); now stamps any state transition.
//
// An explicit percentage always wins. Otherwise newly added study time
// raises the percentage by its time-derived share, bounded per update, so
// derived progress is monotonic. Status follows the resulting percentage
// whenever the update touched it; a standalone explicit status is kept
// as given.
func Apply(st *State, upd Update, estimatedHours float64, now time.Time) error {
	if err := upd.Validate(); err != nil {
		return err
	}

	pctTouched := false

	if upd.TimeSpentHours != nil {
		added := *upd.TimeSpentHours - st.TimeSpentHours
		st.TimeSpentHours = *upd.TimeSpentHours

		if added > 0 && upd.Percentage == nil {
			gain := min(SuggestedPercentage(added, estimatedHours), config.ProgressMaxAutoGain)
			st.Percentage = min(st.Percentage+gain, config.ProgressComplete)
			pctTouched = true
		}
	}

	if upd.Percentage != nil {
		st.Percentage = *upd.Percentage
		pctTouched = true
	}

	if upd.Notes != nil {
		st.Notes = *upd.Notes
	}

	switch {
	case upd.Status != nil && upd.Percentage == nil && !pctTouched:
		st.Status = *upd.Status
	case pctTouched:
		st.Status = StatusForPercentage(st.Percentage)
	}

	stamp(st, now)
	return nil
}

// stamp reconciles the transition timestamps with the current status.
func stamp(st *State, now time.Time) {
	switch st.Status {
	case StatusNotStarted:
		st.StartedAt = nil
		st.CompletedAt = nil
	case StatusInProgress:
		if st.StartedAt == nil {
			t := now
			st.StartedAt = &t
		}
		st.CompletedAt = nil
	case StatusCompleted:
		if st.StartedAt == nil {
			t := now
			st.StartedAt = &t
		}
		if st.CompletedAt == nil {
			t := now
			st.CompletedAt = &t
		}
	}
}
