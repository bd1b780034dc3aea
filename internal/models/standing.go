package models

import (
	"time"

	"github.com/google/uuid"
)

// LeagueStanding is the per-period audit row for a club's rank in its tier.
// Tier records the tier the club competed in, not the tier it moved to.
type LeagueStanding struct {
	SeasonID     uuid.UUID          `json:"season_id" db:"season_id"`
	ClubID       uuid.UUID          `json:"club_id" db:"club_id"`
	ClubName     string             `json:"club_name,omitempty" db:"club_name"`
	PeriodType   PeriodType         `json:"period_type" db:"period_type"`
	PeriodStart  time.Time          `json:"period_start" db:"period_start"`
	Tier         LeagueTier         `json:"tier" db:"tier"`
	Rank         int                `json:"rank" db:"rank"`
	Points       int                `json:"points" db:"points"`
	Promotion    bool               `json:"promotion" db:"promotion"`
	Demotion     bool               `json:"demotion" db:"demotion"`
	Breakdown    ClubScoreBreakdown `json:"breakdown" db:"breakdown"`
	CalculatedAt time.Time          `json:"calculated_at" db:"calculated_at"`
}

// TierChange is one applied promotion or demotion
type TierChange struct {
	ClubID uuid.UUID  `json:"club_id"`
	From   LeagueTier `json:"from"`
	To     LeagueTier `json:"to"`
}

// Promoted reports whether the change moves the club up one tier
func (c TierChange) Promoted() bool {
	next, ok := c.From.Up()
	return ok && next == c.To
}

// AuditEntry is a housekeeping record of a state change made by the engine
type AuditEntry struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id" db:"entity_id"`
	OldValue   string    `json:"old_value,omitempty" db:"old_value"`
	NewValue   string    `json:"new_value,omitempty" db:"new_value"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

const (
	AuditTierPromoted    = "tier.promoted"
	AuditTierDemoted     = "tier.demoted"
	AuditHomeClubChanged = "member.home_club_changed"
	AuditSeasonStatus    = "season.status_changed"
)
