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

type clubRepository struct {
	db *sql.DB
}

// NewClubRepository creates a new club repository
func NewClubRepository(db *sql.DB) repository.ClubRepository {
	return &clubRepository{db: db}
}

func (r *clubRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Club, error) {
	query := `
		SELECT id, brand_id, name, city, timezone, token_secret, token_last_rotation, status, created_at, updated_at
		FROM clubs
		WHERE id = $1 AND status <> 'DELETED'`

	club := &models.Club{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&club.ID,
		&club.BrandID,
		&club.Name,
		&club.City,
		&club.Timezone,
		&club.TokenSecret,
		&club.TokenLastRotation,
		&club.Status,
		&club.CreatedAt,
		&club.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get club: %w", err)
	}

	return club, nil
}

func (r *clubRepository) GetTokenSecret(ctx context.Context, clubID uuid.UUID) (string, *time.Time, error) {
	query := `
		SELECT token_secret, token_last_rotation
		FROM clubs
		WHERE id = $1 AND status <> 'DELETED'`

	var (
		secret       string
		lastRotation *time.Time
	)
	err := r.db.QueryRowContext(ctx, query, clubID).Scan(&secret, &lastRotation)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil, models.ErrClubNotFound
		}
		return "", nil, fmt.Errorf("failed to get token secret: %w", err)
	}

	return secret, lastRotation, nil
}

func (r *clubRepository) RotateTokenSecret(ctx context.Context, clubID uuid.UUID, secret string, at time.Time) error {
	query := `
		UPDATE clubs
		SET token_secret = $2, token_last_rotation = $3, updated_at = $3
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, clubID, secret, at)
	if err != nil {
		return fmt.Errorf("failed to rotate token secret: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return models.ErrClubNotFound
	}

	return nil
}
