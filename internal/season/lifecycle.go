// Package season holds the date-driven season lifecycle.
package season

import (
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
)

// NextStatus returns the status s should hold at now. DRAFT becomes ACTIVE
// once today reaches the start date and ACTIVE becomes COMPLETED once today
// is past the end date; a draft whose whole window has passed moves straight
// through to COMPLETED. Terminal statuses never change.
func NextStatus(now time.Time, s models.Season) models.SeasonStatus {
	today := models.DayOf(now)
	status := s.Status

	if status == models.SeasonDraft && !today.Before(models.DayOf(s.StartDate)) {
		status = models.SeasonActive
	}
	if status == models.SeasonActive && today.After(models.DayOf(s.EndDate)) {
		status = models.SeasonCompleted
	}
	return status
}

// Steps returns the single-step transitions needed to move from s.Status to
// NextStatus, in order. Each step is applied as its own conditional update.
func Steps(now time.Time, s models.Season) [][2]models.SeasonStatus {
	target := NextStatus(now, s)
	var steps [][2]models.SeasonStatus
	current := s.Status
	if current == models.SeasonDraft && target != models.SeasonDraft {
		steps = append(steps, [2]models.SeasonStatus{models.SeasonDraft, models.SeasonActive})
		current = models.SeasonActive
	}
	if current == models.SeasonActive && target == models.SeasonCompleted {
		steps = append(steps, [2]models.SeasonStatus{models.SeasonActive, models.SeasonCompleted})
	}
	return steps
}

// AcceptsTransitions reports whether tier transitions may still be applied
func AcceptsTransitions(s models.Season) bool {
	return s.Status == models.SeasonActive
}
