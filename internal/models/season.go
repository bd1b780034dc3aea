package models

import (
	"time"

	"github.com/google/uuid"
)

// SeasonStatus is the lifecycle state of a season
type SeasonStatus string

const (
	SeasonDraft     SeasonStatus = "DRAFT"
	SeasonActive    SeasonStatus = "ACTIVE"
	SeasonCompleted SeasonStatus = "COMPLETED"
	SeasonCancelled SeasonStatus = "CANCELLED"
)

// SeasonScope describes which clubs may take part
type SeasonScope string

const (
	ScopeInterclubOpen SeasonScope = "INTERCLUB_OPEN"
	ScopeIntrabrand    SeasonScope = "INTRABRAND"
	ScopeCustomMatch   SeasonScope = "CUSTOM_MATCH"
)

func (s SeasonStatus) order() int {
	switch s {
	case SeasonDraft:
		return 0
	case SeasonActive:
		return 1
	case SeasonCompleted:
		return 2
	default:
		return -1
	}
}

// IsTerminal reports whether no further transition is possible
func (s SeasonStatus) IsTerminal() bool {
	return s == SeasonCompleted || s == SeasonCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Statuses only move forward; CANCELLED is reachable from any
// non-terminal state.
func (s SeasonStatus) CanTransitionTo(next SeasonStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == SeasonCancelled {
		return true
	}
	from, to := s.order(), next.order()
	return from >= 0 && to > from
}

// Season is a competition window over a set of clubs
type Season struct {
	ID                   uuid.UUID    `json:"id" db:"id"`
	BrandID              *uuid.UUID   `json:"brand_id,omitempty" db:"brand_id"`
	Name                 string       `json:"name" db:"name"`
	Scope                SeasonScope  `json:"scope" db:"scope"`
	StartDate            time.Time    `json:"start_date" db:"start_date"`
	EndDate              time.Time    `json:"end_date" db:"end_date"`
	Status               SeasonStatus `json:"status" db:"status"`
	RulesetID            *uuid.UUID   `json:"ruleset_id,omitempty" db:"ruleset_id"`
	LastTransitionPeriod *time.Time   `json:"last_transition_period,omitempty" db:"last_transition_period"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at" db:"updated_at"`
}

// SeasonClub is a club's membership in a season with its current tier
type SeasonClub struct {
	SeasonID   uuid.UUID  `json:"season_id" db:"season_id"`
	ClubID     uuid.UUID  `json:"club_id" db:"club_id"`
	LeagueTier LeagueTier `json:"league_tier" db:"league_tier"`
	JoinedAt   time.Time  `json:"joined_at" db:"joined_at"`
}
