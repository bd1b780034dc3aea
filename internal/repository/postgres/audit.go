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

type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db *sql.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

const insertAudit = `
	INSERT INTO audit_logs (id, action, entity_type, entity_id, old_value, new_value, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func recordAudit(ctx context.Context, db execer, entry *models.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := db.ExecContext(ctx, insertAudit,
		entry.ID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.OldValue,
		entry.NewValue,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}

func (r *auditRepository) Record(ctx context.Context, entry *models.AuditEntry) error {
	return recordAudit(ctx, r.db, entry)
}

func (r *auditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return deleted, nil
}
