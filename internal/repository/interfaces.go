package repository

import (
	"context"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/scoring"
	"github.com/google/uuid"
)

// Lookups by ID return (nil, nil) when the row does not exist.

// MemberRepository defines member data operations
type MemberRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
	// SetHomeClub moves the member to clubID at at. changed is false when the
	// member already belonged to it.
	SetHomeClub(ctx context.Context, memberID, clubID uuid.UUID, at time.Time) (changed bool, previous *uuid.UUID, err error)
	SetActivityConsent(ctx context.Context, memberID uuid.UUID, granted bool, at time.Time) error
}

// ClubRepository defines club data operations, including the token secret
type ClubRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
	GetTokenSecret(ctx context.Context, clubID uuid.UUID) (secret string, lastRotation *time.Time, err error)
	RotateTokenSecret(ctx context.Context, clubID uuid.UUID, secret string, at time.Time) error
}

// CheckinRepository defines check-in data operations
type CheckinRepository interface {
	// GetForMemberOnDay returns the member's check-in on day at any club
	GetForMemberOnDay(ctx context.Context, memberID uuid.UUID, day time.Time) (*models.Checkin, error)
	// Create inserts the check-in, returning models.ErrAlreadyCheckedIn if
	// one already exists for the member and day.
	Create(ctx context.Context, checkin *models.Checkin) (*models.Checkin, error)
}

// ActivityRepository defines daily activity summary operations
type ActivityRepository interface {
	Get(ctx context.Context, memberID uuid.UUID, day time.Time) (*models.ActivitySummary, error)
	// Upsert stores the summary keyed by member and day. An existing
	// anomaly flag is never cleared.
	Upsert(ctx context.Context, summary *models.ActivitySummary) (*models.ActivitySummary, error)
	ListUnflaggedOn(ctx context.Context, day time.Time) ([]*models.ActivitySummary, error)
	// Flag sets the anomaly flag if it is not already set
	Flag(ctx context.Context, memberID uuid.UUID, day time.Time, reason string) (bool, error)
}

// ScoreRepository defines member and club score operations
type ScoreRepository interface {
	// History returns check-in and activity facts for each day in [from, to]
	History(ctx context.Context, memberID uuid.UUID, from, to time.Time) (scoring.History, error)
	UpsertMemberDaily(ctx context.Context, score *models.MemberScoreDaily) error
	ListMemberDaily(ctx context.Context, memberID uuid.UUID, from, to time.Time) ([]models.MemberScoreDaily, error)
	LatestMemberDaily(ctx context.Context, memberID uuid.UUID) (*models.MemberScoreDaily, error)

	// HomeMemberTotals sums each active home member's daily totals in [from, to]
	HomeMemberTotals(ctx context.Context, clubID uuid.UUID, from, to time.Time) ([]models.MemberTotal, error)
	// VisitorMemberTotals sums, per member, the daily totals of days the
	// member checked in at clubID in [from, to]
	VisitorMemberTotals(ctx context.Context, clubID uuid.UUID, from, to time.Time) ([]models.MemberTotal, error)
	UpsertClubPeriod(ctx context.Context, score *models.ClubPeriodScore) error
}

// RulesetRepository defines ruleset lookups
type RulesetRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ruleset, error)
	Latest(ctx context.Context) (*models.Ruleset, error)
}

// SeasonRepository defines season data operations
type SeasonRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Season, error)
	ListByStatus(ctx context.Context, statuses ...models.SeasonStatus) ([]*models.Season, error)
	// TransitionStatus moves the season from one status to another and
	// reports false when it was not in the from status.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.SeasonStatus, at time.Time) (bool, error)
	ListClubs(ctx context.Context, seasonID uuid.UUID) ([]models.SeasonClub, error)
}

// StandingRepository defines league standing operations
type StandingRepository interface {
	Upsert(ctx context.Context, standings []models.LeagueStanding) error
	List(ctx context.Context, seasonID uuid.UUID, filters StandingFilters) ([]models.LeagueStanding, error)
	LatestPeriod(ctx context.Context, seasonID uuid.UUID, periodType models.PeriodType) (*time.Time, error)
	GetForClub(ctx context.Context, seasonID, clubID uuid.UUID, periodType models.PeriodType, periodStart time.Time) (*models.LeagueStanding, error)
	// ApplyTransition advances the season's last transitioned period to
	// periodStart and applies changes atomically. alreadyApplied is true
	// when periodStart was already processed; nothing is written then.
	ApplyTransition(ctx context.Context, seasonID uuid.UUID, periodStart time.Time, changes []models.TierChange, at time.Time) (applied []models.TierChange, alreadyApplied bool, err error)
}

// AuditRepository defines audit log operations
type AuditRepository interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StandingFilters narrows a standings listing
type StandingFilters struct {
	PeriodType  models.PeriodType
	PeriodStart time.Time
	Tier        *models.LeagueTier
}
