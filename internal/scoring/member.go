// Package scoring holds the pure point arithmetic: anomaly verdicts, the
// per-member daily score with its streak, and the club roll-up. Nothing here
// touches the store; callers load the inputs and persist the results.
package scoring

import (
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/google/uuid"
)

const (
	// ActivityFloor is the minimal-effort activity value that keeps a
	// streak alive without a check-in.
	ActivityFloor = 100
	// StreakLookbackDays bounds how far back a streak walk goes.
	StreakLookbackDays = 30
)

// DayActivity is what the store knows about one member-day
type DayActivity struct {
	HasCheckin     bool
	ActiveCalories int
	Flagged        bool
}

// Qualifies reports whether the day counts towards a streak
func (d DayActivity) Qualifies() bool {
	return d.HasCheckin || d.ActiveCalories > ActivityFloor
}

// History is a member's activity keyed by UTC day. Missing days are empty.
type History map[time.Time]DayActivity

// Day returns the activity for the day containing t
func (h History) Day(t time.Time) DayActivity {
	return h[models.DayOf(t)]
}

// Streak counts consecutive qualifying days ending at date, walking back at
// most StreakLookbackDays days.
func Streak(h History, date time.Time) int {
	day := models.DayOf(date)
	streak := 0
	for i := 0; i < StreakLookbackDays; i++ {
		if !h.Day(day).Qualifies() {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// ActivityPoints converts an activity value to capped points
func ActivityPoints(value int, p models.RulesetParams) int {
	if value <= 0 || p.ActivityPointsDivisor <= 0 {
		return 0
	}
	return min(value/p.ActivityPointsDivisor, p.MaxActivityPointsPerDay)
}

// ComputeDaily scores one member-day. Flagged days earn no activity points
// but keep their check-in and streak points.
func ComputeDaily(memberID uuid.UUID, date time.Time, h History, rs *models.Ruleset) models.MemberScoreDaily {
	day := models.DayOf(date)
	today := h.Day(day)
	p := rs.Params

	score := models.MemberScoreDaily{
		MemberID:   memberID,
		Date:       day,
		StreakDays: Streak(h, day),
		RulesetID:  rs.ID,
	}

	if today.HasCheckin {
		score.PointsCheckin = p.CheckinPoints
	}
	if !today.Flagged {
		score.PointsActivity = ActivityPoints(today.ActiveCalories, p)
	}
	if score.StreakDays >= p.StreakDaysRequired {
		score.PointsBonus = p.StreakBonusPoints
	}

	score.TotalPoints = score.PointsCheckin + score.PointsActivity + score.PointsBonus
	return score
}
