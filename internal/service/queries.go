package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/scoring"
	"github.com/google/uuid"
)

// ScoreRange names a window ending today
type ScoreRange string

const (
	RangeToday ScoreRange = "today"
	RangeWeek  ScoreRange = "week"
	RangeMonth ScoreRange = "month"
)

// ScoreQuery selects a member's scores. Start and End, when both set,
// take precedence over Range.
type ScoreQuery struct {
	Range ScoreRange
	Start time.Time
	End   time.Time
}

// MemberScores is a member's daily scores over a window with totals
type MemberScores struct {
	MemberID      uuid.UUID                 `json:"member_id"`
	Start         string                    `json:"start"`
	End           string                    `json:"end"`
	Scores        []models.MemberScoreDaily `json:"scores"`
	Totals        models.ScoreTotals        `json:"totals"`
	CurrentStreak int                       `json:"current_streak"`
}

func (q ScoreQuery) bounds(now time.Time) (time.Time, time.Time, error) {
	today := models.DayOf(now)
	if !q.Start.IsZero() || !q.End.IsZero() {
		if q.Start.IsZero() || q.End.IsZero() {
			return time.Time{}, time.Time{}, fmt.Errorf("both start and end are required")
		}
		start, end := models.DayOf(q.Start), models.DayOf(q.End)
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("end %s is before start %s", end.Format(models.DateLayout), start.Format(models.DateLayout))
		}
		return start, end, nil
	}

	switch q.Range {
	case RangeToday:
		return today, today, nil
	case RangeWeek, "":
		return models.WeekStart(today), today, nil
	case RangeMonth:
		return models.MonthStart(today), today, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown range %q", q.Range)
	}
}

// QueryError marks a malformed query
type QueryError struct{ Err error }

func (e *QueryError) Error() string { return e.Err.Error() }
func (e *QueryError) Unwrap() error { return e.Err }

// MemberScores lists the member's stored daily scores in the window with
// their component totals and the streak as of today.
func (s *Service) MemberScores(ctx context.Context, memberID uuid.UUID, q ScoreQuery) (*MemberScores, error) {
	now := s.now()
	start, end, err := q.bounds(now)
	if err != nil {
		return nil, &QueryError{Err: err}
	}

	member, err := s.Members.GetByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", memberID, err)
	}
	if member == nil {
		return nil, models.ErrMemberNotFound
	}

	scores, err := s.Scores.ListMemberDaily(ctx, memberID, start, end)
	if err != nil {
		return nil, err
	}
	if scores == nil {
		scores = []models.MemberScoreDaily{}
	}

	result := &MemberScores{
		MemberID: memberID,
		Start:    start.Format(models.DateLayout),
		End:      end.Format(models.DateLayout),
		Scores:   scores,
	}
	for _, sc := range scores {
		result.Totals.Add(sc)
	}

	today := models.DayOf(now)
	history, err := s.Scores.History(ctx, memberID, today.AddDate(0, 0, -(scoring.StreakLookbackDays-1)), today)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	result.CurrentStreak = scoring.Streak(history, today)
	return result, nil
}
