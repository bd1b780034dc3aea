package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/google/uuid"
)

type rulesetRepository struct {
	db *sql.DB
}

// NewRulesetRepository creates a new ruleset repository
func NewRulesetRepository(db *sql.DB) repository.RulesetRepository {
	return &rulesetRepository{db: db}
}

func (r *rulesetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ruleset, error) {
	query := `SELECT id, name, params, created_at FROM rulesets WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *rulesetRepository) Latest(ctx context.Context) (*models.Ruleset, error) {
	query := `SELECT id, name, params, created_at FROM rulesets ORDER BY created_at DESC, id DESC LIMIT 1`
	return r.get(ctx, query)
}

func (r *rulesetRepository) get(ctx context.Context, query string, args ...any) (*models.Ruleset, error) {
	rs := &models.Ruleset{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&rs.ID,
		&rs.Name,
		&rs.Params,
		&rs.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ruleset: %w", err)
	}

	return rs, nil
}
