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

type standingRepository struct {
	db *sql.DB
}

// NewStandingRepository creates a new league standing repository
func NewStandingRepository(db *sql.DB) repository.StandingRepository {
	return &standingRepository{db: db}
}

const standingColumns = `ls.season_id, ls.club_id, c.name, ls.period_type, ls.period_start, ls.tier, ls.rank, ls.points, ls.promotion, ls.demotion, ls.breakdown, ls.calculated_at`

func scanStanding(row interface{ Scan(...any) error }) (models.LeagueStanding, error) {
	var s models.LeagueStanding
	err := row.Scan(
		&s.SeasonID,
		&s.ClubID,
		&s.ClubName,
		&s.PeriodType,
		&s.PeriodStart,
		&s.Tier,
		&s.Rank,
		&s.Points,
		&s.Promotion,
		&s.Demotion,
		&s.Breakdown,
		&s.CalculatedAt,
	)
	s.PeriodStart = models.DayOf(s.PeriodStart)
	return s, err
}

func (r *standingRepository) Upsert(ctx context.Context, standings []models.LeagueStanding) error {
	if len(standings) == 0 {
		return nil
	}

	query := `
		INSERT INTO league_standings (season_id, club_id, period_type, period_start, tier, rank, points, promotion, demotion, breakdown, calculated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (season_id, club_id, period_type, period_start) DO UPDATE SET
			tier = EXCLUDED.tier,
			rank = EXCLUDED.rank,
			points = EXCLUDED.points,
			promotion = EXCLUDED.promotion,
			demotion = EXCLUDED.demotion,
			breakdown = EXCLUDED.breakdown,
			calculated_at = EXCLUDED.calculated_at`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, s := range standings {
		if s.CalculatedAt.IsZero() {
			s.CalculatedAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query,
			s.SeasonID,
			s.ClubID,
			s.PeriodType,
			models.DayOf(s.PeriodStart),
			s.Tier,
			s.Rank,
			s.Points,
			s.Promotion,
			s.Demotion,
			s.Breakdown,
			s.CalculatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert standing for club %s: %w", s.ClubID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit standings: %w", err)
	}

	return nil
}

func (r *standingRepository) List(ctx context.Context, seasonID uuid.UUID, filters repository.StandingFilters) ([]models.LeagueStanding, error) {
	query := `SELECT ` + standingColumns + `
		FROM league_standings ls
		JOIN clubs c ON c.id = ls.club_id
		WHERE ls.season_id = $1
		  AND ls.period_type = $2
		  AND ls.period_start = $3::date
		  AND ($4::text IS NULL OR ls.tier = $4)
		ORDER BY CASE ls.tier WHEN 'GOLD' THEN 0 WHEN 'SILVER' THEN 1 ELSE 2 END, ls.rank`

	var tier any
	if filters.Tier != nil {
		tier = string(*filters.Tier)
	}

	rows, err := r.db.QueryContext(ctx, query, seasonID, filters.PeriodType, models.DayOf(filters.PeriodStart), tier)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings: %w", err)
	}
	defer rows.Close()

	var standings []models.LeagueStanding
	for rows.Next() {
		s, err := scanStanding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		standings = append(standings, s)
	}

	return standings, rows.Err()
}

func (r *standingRepository) LatestPeriod(ctx context.Context, seasonID uuid.UUID, periodType models.PeriodType) (*time.Time, error) {
	query := `
		SELECT MAX(period_start)
		FROM league_standings
		WHERE season_id = $1 AND period_type = $2`

	var latest *time.Time
	if err := r.db.QueryRowContext(ctx, query, seasonID, periodType).Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to get latest standings period: %w", err)
	}
	if latest != nil {
		d := models.DayOf(*latest)
		latest = &d
	}

	return latest, nil
}

func (r *standingRepository) GetForClub(ctx context.Context, seasonID, clubID uuid.UUID, periodType models.PeriodType, periodStart time.Time) (*models.LeagueStanding, error) {
	query := `SELECT ` + standingColumns + `
		FROM league_standings ls
		JOIN clubs c ON c.id = ls.club_id
		WHERE ls.season_id = $1 AND ls.club_id = $2 AND ls.period_type = $3 AND ls.period_start = $4::date`

	s, err := scanStanding(r.db.QueryRowContext(ctx, query, seasonID, clubID, periodType, models.DayOf(periodStart)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get club standing: %w", err)
	}

	return &s, nil
}

func (r *standingRepository) ApplyTransition(ctx context.Context, seasonID uuid.UUID, periodStart time.Time, changes []models.TierChange, at time.Time) ([]models.TierChange, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Advancing the marker first serialises concurrent runs on the row lock.
	marker := `
		UPDATE seasons
		SET last_transition_period = $2::date, updated_at = $3
		WHERE id = $1 AND (last_transition_period IS NULL OR last_transition_period < $2::date)`

	result, err := tx.ExecContext(ctx, marker, seasonID, models.DayOf(periodStart), at)
	if err != nil {
		return nil, false, fmt.Errorf("failed to advance transition marker: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return nil, true, nil
	}

	move := `
		UPDATE season_clubs
		SET league_tier = $4
		WHERE season_id = $1 AND club_id = $2 AND league_tier = $3`

	var applied []models.TierChange
	for _, change := range changes {
		result, err := tx.ExecContext(ctx, move, seasonID, change.ClubID, change.From, change.To)
		if err != nil {
			return nil, false, fmt.Errorf("failed to move club %s to %s: %w", change.ClubID, change.To, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, false, fmt.Errorf("failed to get affected rows: %w", err)
		}
		if affected == 0 {
			continue
		}

		action := models.AuditTierDemoted
		if change.Promoted() {
			action = models.AuditTierPromoted
		}
		if err := recordAudit(ctx, tx, &models.AuditEntry{
			Action:     action,
			EntityType: "season_club",
			EntityID:   change.ClubID,
			OldValue:   string(change.From),
			NewValue:   string(change.To),
			CreatedAt:  at,
		}); err != nil {
			return nil, false, err
		}
		applied = append(applied, change)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit tier transition: %w", err)
	}

	return applied, false, nil
}
