package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/Kerhoff/clubleague/internal/scoring"
	"github.com/google/uuid"
)

type scoreRepository struct {
	db *sql.DB
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db *sql.DB) repository.ScoreRepository {
	return &scoreRepository{db: db}
}

func (r *scoreRepository) History(ctx context.Context, memberID uuid.UUID, from, to time.Time) (scoring.History, error) {
	from, to = models.DayOf(from), models.DayOf(to)
	history := make(scoring.History)

	checkinQuery := `
		SELECT checkin_date
		FROM checkins
		WHERE member_id = $1 AND checkin_date BETWEEN $2::date AND $3::date`

	rows, err := r.db.QueryContext(ctx, checkinQuery, memberID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query check-in history: %w", err)
	}
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan check-in day: %w", err)
		}
		day = models.DayOf(day)
		entry := history[day]
		entry.HasCheckin = true
		history[day] = entry
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read check-in history: %w", err)
	}
	rows.Close()

	activityQuery := `
		SELECT date, active_calories, anomaly_flag
		FROM activity_daily_summary
		WHERE member_id = $1 AND date BETWEEN $2::date AND $3::date`

	rows, err = r.db.QueryContext(ctx, activityQuery, memberID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			day      time.Time
			calories int
			flagged  bool
		)
		if err := rows.Scan(&day, &calories, &flagged); err != nil {
			return nil, fmt.Errorf("failed to scan activity day: %w", err)
		}
		day = models.DayOf(day)
		entry := history[day]
		entry.ActiveCalories = calories
		entry.Flagged = flagged
		history[day] = entry
	}

	return history, rows.Err()
}

func (r *scoreRepository) UpsertMemberDaily(ctx context.Context, score *models.MemberScoreDaily) error {
	query := `
		INSERT INTO member_score_daily (member_id, date, points_checkin, points_activity, points_bonus, total_points, streak_days, ruleset_id)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (member_id, date) DO UPDATE SET
			points_checkin = EXCLUDED.points_checkin,
			points_activity = EXCLUDED.points_activity,
			points_bonus = EXCLUDED.points_bonus,
			total_points = EXCLUDED.total_points,
			streak_days = EXCLUDED.streak_days,
			ruleset_id = EXCLUDED.ruleset_id`

	_, err := r.db.ExecContext(ctx, query,
		score.MemberID,
		models.DayOf(score.Date),
		score.PointsCheckin,
		score.PointsActivity,
		score.PointsBonus,
		score.TotalPoints,
		score.StreakDays,
		score.RulesetID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert member score: %w", err)
	}

	return nil
}

const memberScoreColumns = `member_id, date, points_checkin, points_activity, points_bonus, total_points, streak_days, ruleset_id`

func scanMemberScore(row interface{ Scan(...any) error }) (models.MemberScoreDaily, error) {
	var s models.MemberScoreDaily
	err := row.Scan(
		&s.MemberID,
		&s.Date,
		&s.PointsCheckin,
		&s.PointsActivity,
		&s.PointsBonus,
		&s.TotalPoints,
		&s.StreakDays,
		&s.RulesetID,
	)
	s.Date = models.DayOf(s.Date)
	return s, err
}

func (r *scoreRepository) ListMemberDaily(ctx context.Context, memberID uuid.UUID, from, to time.Time) ([]models.MemberScoreDaily, error) {
	query := `SELECT ` + memberScoreColumns + `
		FROM member_score_daily
		WHERE member_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query, memberID, models.DayOf(from), models.DayOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query member scores: %w", err)
	}
	defer rows.Close()

	var scores []models.MemberScoreDaily
	for rows.Next() {
		s, err := scanMemberScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member score: %w", err)
		}
		scores = append(scores, s)
	}

	return scores, rows.Err()
}

func (r *scoreRepository) LatestMemberDaily(ctx context.Context, memberID uuid.UUID) (*models.MemberScoreDaily, error) {
	query := `SELECT ` + memberScoreColumns + `
		FROM member_score_daily
		WHERE member_id = $1
		ORDER BY date DESC
		LIMIT 1`

	s, err := scanMemberScore(r.db.QueryRowContext(ctx, query, memberID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest member score: %w", err)
	}

	return &s, nil
}

func (r *scoreRepository) HomeMemberTotals(ctx context.Context, clubID uuid.UUID, from, to time.Time) ([]models.MemberTotal, error) {
	query := `
		SELECT m.id, SUM(s.total_points)
		FROM members m
		JOIN member_score_daily s ON s.member_id = m.id
		WHERE m.club_id = $1
		  AND m.status = 'ACTIVE'
		  AND s.date BETWEEN $2::date AND $3::date
		GROUP BY m.id
		ORDER BY m.id`

	return r.memberTotals(ctx, "home", query, clubID, from, to)
}

func (r *scoreRepository) VisitorMemberTotals(ctx context.Context, clubID uuid.UUID, from, to time.Time) ([]models.MemberTotal, error) {
	// Home members checking in at their own club are included here too.
	query := `
		SELECT c.member_id, SUM(s.total_points)
		FROM checkins c
		JOIN member_score_daily s ON s.member_id = c.member_id AND s.date = c.checkin_date
		WHERE c.club_id = $1
		  AND c.checkin_date BETWEEN $2::date AND $3::date
		GROUP BY c.member_id
		ORDER BY c.member_id`

	return r.memberTotals(ctx, "visitor", query, clubID, from, to)
}

func (r *scoreRepository) memberTotals(ctx context.Context, kind, query string, clubID uuid.UUID, from, to time.Time) ([]models.MemberTotal, error) {
	rows, err := r.db.QueryContext(ctx, query, clubID, models.DayOf(from), models.DayOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s totals: %w", kind, err)
	}
	defer rows.Close()

	var totals []models.MemberTotal
	for rows.Next() {
		var t models.MemberTotal
		if err := rows.Scan(&t.MemberID, &t.Points); err != nil {
			return nil, fmt.Errorf("failed to scan %s total: %w", kind, err)
		}
		totals = append(totals, t)
	}

	return totals, rows.Err()
}

func (r *scoreRepository) UpsertClubPeriod(ctx context.Context, score *models.ClubPeriodScore) error {
	query := `
		INSERT INTO club_period_scores (club_id, season_id, period_type, period_start, period_end, total_points, contributors_count, breakdown, calculated_at)
		VALUES ($1, $2, $3, $4::date, $5::date, $6, $7, $8, $9)
		ON CONFLICT (club_id, season_id, period_type, period_start) DO UPDATE SET
			period_end = EXCLUDED.period_end,
			total_points = EXCLUDED.total_points,
			contributors_count = EXCLUDED.contributors_count,
			breakdown = EXCLUDED.breakdown,
			calculated_at = EXCLUDED.calculated_at`

	if score.CalculatedAt.IsZero() {
		score.CalculatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		score.ClubID,
		score.SeasonID,
		score.PeriodType,
		models.DayOf(score.PeriodStart),
		models.DayOf(score.PeriodEnd),
		score.TotalPoints,
		score.ContributorsCount,
		score.Breakdown,
		score.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert club period score: %w", err)
	}

	return nil
}
