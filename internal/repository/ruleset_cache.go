package repository

import (
	"context"
	"fmt"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// CachedRulesetRepository keeps recently used rulesets in memory. Rulesets
// are immutable once created, so entries never go stale. Latest always
// reaches the store since a newer ruleset may appear at any time.
type CachedRulesetRepository struct {
	next  RulesetRepository
	cache *lru.Cache
}

// NewCachedRulesetRepository wraps next with an LRU of the given size
func NewCachedRulesetRepository(next RulesetRepository, size int) (*CachedRulesetRepository, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create ruleset cache: %w", err)
	}
	return &CachedRulesetRepository{next: next, cache: cache}, nil
}

func (c *CachedRulesetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ruleset, error) {
	if cached, ok := c.cache.Get(id); ok {
		return cached.(*models.Ruleset), nil
	}

	rs, err := c.next.GetByID(ctx, id)
	if err != nil || rs == nil {
		return rs, err
	}
	c.cache.Add(id, rs)
	return rs, nil
}

func (c *CachedRulesetRepository) Latest(ctx context.Context) (*models.Ruleset, error) {
	rs, err := c.next.Latest(ctx)
	if err != nil || rs == nil {
		return rs, err
	}
	c.cache.Add(rs.ID, rs)
	return rs, nil
}

// Len reports how many rulesets are cached
func (c *CachedRulesetRepository) Len() int {
	return c.cache.Len()
}
