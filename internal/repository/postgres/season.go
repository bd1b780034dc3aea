package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type seasonRepository struct {
	db *sql.DB
}

// NewSeasonRepository creates a new season repository
func NewSeasonRepository(db *sql.DB) repository.SeasonRepository {
	return &seasonRepository{db: db}
}

const seasonColumns = `id, brand_id, name, scope, start_date, end_date, status, ruleset_id, last_transition_period, created_at, updated_at`

func scanSeason(row interface{ Scan(...any) error }) (*models.Season, error) {
	season := &models.Season{}
	if err := row.Scan(
		&season.ID,
		&season.BrandID,
		&season.Name,
		&season.Scope,
		&season.StartDate,
		&season.EndDate,
		&season.Status,
		&season.RulesetID,
		&season.LastTransitionPeriod,
		&season.CreatedAt,
		&season.UpdatedAt,
	); err != nil {
		return nil, err
	}
	season.StartDate = models.DayOf(season.StartDate)
	season.EndDate = models.DayOf(season.EndDate)
	if season.LastTransitionPeriod != nil {
		d := models.DayOf(*season.LastTransitionPeriod)
		season.LastTransitionPeriod = &d
	}
	return season, nil
}

func (r *seasonRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE id = $1`

	season, err := scanSeason(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get season: %w", err)
	}

	return season, nil
}

func (r *seasonRepository) ListByStatus(ctx context.Context, statuses ...models.SeasonStatus) ([]*models.Season, error) {
	query := `SELECT ` + seasonColumns + `
		FROM seasons
		WHERE status = ANY($1)
		ORDER BY start_date ASC, id ASC`

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("failed to query seasons: %w", err)
	}
	defer rows.Close()

	var seasons []*models.Season
	for rows.Next() {
		season, err := scanSeason(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan season: %w", err)
		}
		seasons = append(seasons, season)
	}

	return seasons, rows.Err()
}

func (r *seasonRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.SeasonStatus, at time.Time) (bool, error) {
	query := `
		UPDATE seasons
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, id, from, to, at)
	if err != nil {
		return false, fmt.Errorf("failed to transition season: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *seasonRepository) ListClubs(ctx context.Context, seasonID uuid.UUID) ([]models.SeasonClub, error) {
	query := `
		SELECT sc.season_id, sc.club_id, sc.league_tier, sc.joined_at
		FROM season_clubs sc
		JOIN clubs c ON c.id = sc.club_id
		WHERE sc.season_id = $1 AND c.status = 'ACTIVE'
		ORDER BY sc.club_id`

	rows, err := r.db.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query season clubs: %w", err)
	}
	defer rows.Close()

	var clubs []models.SeasonClub
	for rows.Next() {
		var sc models.SeasonClub
		if err := rows.Scan(&sc.SeasonID, &sc.ClubID, &sc.LeagueTier, &sc.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan season club: %w", err)
		}
		clubs = append(clubs, sc)
	}

	return clubs, rows.Err()
}
