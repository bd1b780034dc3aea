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

type memberRepository struct {
	db *sql.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *sql.DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	query := `
		SELECT id, club_id, first_name, last_name, activity_consent, activity_consent_at, status, created_at, updated_at
		FROM members
		WHERE id = $1 AND status <> 'DELETED'`

	member := &models.Member{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&member.ID,
		&member.ClubID,
		&member.FirstName,
		&member.LastName,
		&member.ActivityConsent,
		&member.ActivityConsentAt,
		&member.Status,
		&member.CreatedAt,
		&member.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

func (r *memberRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM members WHERE status = 'ACTIVE' ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active members: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *memberRepository) SetHomeClub(ctx context.Context, memberID, clubID uuid.UUID, at time.Time) (bool, *uuid.UUID, error) {
	// The CTE reads the previous value in the same statement as the update.
	query := `
		WITH prev AS (
			SELECT club_id FROM members WHERE id = $1 FOR UPDATE
		)
		UPDATE members m
		SET club_id = $2, updated_at = $3
		FROM prev
		WHERE m.id = $1 AND m.club_id IS DISTINCT FROM $2
		RETURNING prev.club_id`

	var previous *uuid.UUID
	err := r.db.QueryRowContext(ctx, query, memberID, clubID, at).Scan(&previous)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to set home club: %w", err)
	}

	return true, previous, nil
}

func (r *memberRepository) SetActivityConsent(ctx context.Context, memberID uuid.UUID, granted bool, at time.Time) error {
	query := `
		UPDATE members
		SET activity_consent = $2,
		    activity_consent_at = CASE WHEN $2 THEN $3::timestamptz ELSE NULL END,
		    updated_at = $3
		WHERE id = $1 AND status <> 'DELETED'`

	result, err := r.db.ExecContext(ctx, query, memberID, granted, at)
	if err != nil {
		return fmt.Errorf("failed to set activity consent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return models.ErrMemberNotFound
	}

	return nil
}
