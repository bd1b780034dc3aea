package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/google/uuid"
)

type activityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity summary repository
func NewActivityRepository(db *sql.DB) repository.ActivityRepository {
	return &activityRepository{db: db}
}

const activityColumns = `member_id, date, active_calories, steps, workout_minutes, source, device_info, anomaly_flag, anomaly_reason, last_sync_at`

func scanActivity(row interface{ Scan(...any) error }) (*models.ActivitySummary, error) {
	summary := &models.ActivitySummary{}
	var deviceInfo []byte
	if err := row.Scan(
		&summary.MemberID,
		&summary.Date,
		&summary.ActiveCalories,
		&summary.Steps,
		&summary.WorkoutMinutes,
		&summary.Source,
		&deviceInfo,
		&summary.AnomalyFlag,
		&summary.AnomalyReason,
		&summary.LastSyncAt,
	); err != nil {
		return nil, err
	}
	summary.Date = models.DayOf(summary.Date)
	summary.DeviceInfo = deviceInfo
	return summary, nil
}

func (r *activityRepository) Get(ctx context.Context, memberID uuid.UUID, day time.Time) (*models.ActivitySummary, error) {
	query := `SELECT ` + activityColumns + `
		FROM activity_daily_summary
		WHERE member_id = $1 AND date = $2::date`

	summary, err := scanActivity(r.db.QueryRowContext(ctx, query, memberID, models.DayOf(day)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get activity summary: %w", err)
	}

	return summary, nil
}

func (r *activityRepository) Upsert(ctx context.Context, summary *models.ActivitySummary) (*models.ActivitySummary, error) {
	query := `
		INSERT INTO activity_daily_summary (` + activityColumns + `)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7::jsonb, $8, $9, $10)
		ON CONFLICT (member_id, date) DO UPDATE SET
			active_calories = EXCLUDED.active_calories,
			steps = EXCLUDED.steps,
			workout_minutes = EXCLUDED.workout_minutes,
			source = EXCLUDED.source,
			device_info = EXCLUDED.device_info,
			anomaly_flag = activity_daily_summary.anomaly_flag OR EXCLUDED.anomaly_flag,
			anomaly_reason = COALESCE(activity_daily_summary.anomaly_reason, EXCLUDED.anomaly_reason),
			last_sync_at = EXCLUDED.last_sync_at
		RETURNING anomaly_flag, anomaly_reason`

	summary.Date = models.DayOf(summary.Date)
	if summary.LastSyncAt.IsZero() {
		summary.LastSyncAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		summary.MemberID,
		summary.Date,
		summary.ActiveCalories,
		summary.Steps,
		summary.WorkoutMinutes,
		summary.Source,
		nullJSON(summary.DeviceInfo),
		summary.AnomalyFlag,
		summary.AnomalyReason,
		summary.LastSyncAt,
	).Scan(&summary.AnomalyFlag, &summary.AnomalyReason)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert activity summary: %w", err)
	}

	return summary, nil
}

func (r *activityRepository) ListUnflaggedOn(ctx context.Context, day time.Time) ([]*models.ActivitySummary, error) {
	query := `SELECT ` + activityColumns + `
		FROM activity_daily_summary
		WHERE date = $1::date AND NOT anomaly_flag
		ORDER BY member_id`

	rows, err := r.db.QueryContext(ctx, query, models.DayOf(day))
	if err != nil {
		return nil, fmt.Errorf("failed to query activity summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.ActivitySummary
	for rows.Next() {
		summary, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

func (r *activityRepository) Flag(ctx context.Context, memberID uuid.UUID, day time.Time, reason string) (bool, error) {
	query := `
		UPDATE activity_daily_summary
		SET anomaly_flag = TRUE, anomaly_reason = $3
		WHERE member_id = $1 AND date = $2::date AND NOT anomaly_flag`

	result, err := r.db.ExecContext(ctx, query, memberID, models.DayOf(day), reason)
	if err != nil {
		return false, fmt.Errorf("failed to flag activity summary: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}
