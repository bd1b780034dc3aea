package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE postgres reports for a unique constraint
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// nullJSON maps an empty raw message to SQL NULL
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

type checkinRepository struct {
	db *sql.DB
}

// NewCheckinRepository creates a new check-in repository
func NewCheckinRepository(db *sql.DB) repository.CheckinRepository {
	return &checkinRepository{db: db}
}

func (r *checkinRepository) GetForMemberOnDay(ctx context.Context, memberID uuid.UUID, day time.Time) (*models.Checkin, error) {
	query := `
		SELECT id, member_id, club_id, checked_in_at, checkin_date, method, token, device_info
		FROM checkins
		WHERE member_id = $1 AND checkin_date = $2::date`

	checkin := &models.Checkin{}
	var deviceInfo []byte
	err := r.db.QueryRowContext(ctx, query, memberID, models.DayOf(day)).Scan(
		&checkin.ID,
		&checkin.MemberID,
		&checkin.ClubID,
		&checkin.Timestamp,
		&checkin.CheckinDate,
		&checkin.Method,
		&checkin.Token,
		&deviceInfo,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get check-in: %w", err)
	}

	checkin.CheckinDate = models.DayOf(checkin.CheckinDate)
	checkin.DeviceInfo = deviceInfo
	return checkin, nil
}

func (r *checkinRepository) Create(ctx context.Context, checkin *models.Checkin) (*models.Checkin, error) {
	query := `
		INSERT INTO checkins (id, member_id, club_id, checked_in_at, checkin_date, method, token, device_info)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8::jsonb)`

	if checkin.ID == uuid.Nil {
		checkin.ID = uuid.New()
	}
	if checkin.Method == "" {
		checkin.Method = models.CheckinQR
	}
	checkin.CheckinDate = models.DayOf(checkin.Timestamp)

	_, err := r.db.ExecContext(ctx, query,
		checkin.ID,
		checkin.MemberID,
		checkin.ClubID,
		checkin.Timestamp,
		checkin.CheckinDate,
		checkin.Method,
		checkin.Token,
		nullJSON(checkin.DeviceInfo),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrAlreadyCheckedIn
		}
		return nil, fmt.Errorf("failed to create check-in: %w", err)
	}

	return checkin, nil
}
