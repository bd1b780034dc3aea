package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// RulesetParams holds the tunable scoring and anti-cheat constants.
// A ruleset is immutable once created.
type RulesetParams struct {
	CheckinPoints           int     `json:"checkinPoints"`
	ActivityPointsDivisor   int     `json:"activityPointsDivisor"`
	MaxActivityPointsPerDay int     `json:"maxActivityPointsPerDay"`
	StreakBonusPoints       int     `json:"streakBonusPoints"`
	StreakDaysRequired      int     `json:"streakDaysRequired"`
	TopNContributors        int     `json:"topNContributors"`
	MaxActivityPerDay       int     `json:"maxActivityPerDay"`
	MaxActivitySpike        int     `json:"maxActivitySpike"`
	HybridScoring           bool    `json:"hybridScoring"`
	HomeWeight              float64 `json:"homeWeight"`
	VisitorWeight           float64 `json:"visitorWeight"`
	PromotionCount          int     `json:"promotionCount"`
	DemotionCount           int     `json:"demotionCount"`
}

// DefaultRulesetParams mirrors the values the platform launched with
func DefaultRulesetParams() RulesetParams {
	return RulesetParams{
		CheckinPoints:           50,
		ActivityPointsDivisor:   10,
		MaxActivityPointsPerDay: 150,
		StreakBonusPoints:       20,
		StreakDaysRequired:      3,
		TopNContributors:        10,
		MaxActivityPerDay:       2500,
		MaxActivitySpike:        1000,
		HybridScoring:           true,
		HomeWeight:              0.7,
		VisitorWeight:           0.3,
		PromotionCount:          2,
		DemotionCount:           2,
	}
}

// Validate rejects parameter sets the engines cannot compute with
func (p RulesetParams) Validate() error {
	var errs *multierror.Error
	if p.ActivityPointsDivisor <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("activityPointsDivisor must be positive, got %d", p.ActivityPointsDivisor))
	}
	if p.CheckinPoints < 0 || p.MaxActivityPointsPerDay < 0 || p.StreakBonusPoints < 0 {
		errs = multierror.Append(errs, errors.New("point values must not be negative"))
	}
	if p.StreakDaysRequired < 1 {
		errs = multierror.Append(errs, fmt.Errorf("streakDaysRequired must be at least 1, got %d", p.StreakDaysRequired))
	}
	if !p.HybridScoring && p.TopNContributors < 1 {
		errs = multierror.Append(errs, fmt.Errorf("topNContributors must be at least 1, got %d", p.TopNContributors))
	}
	if p.HybridScoring && (p.HomeWeight < 0 || p.VisitorWeight < 0) {
		errs = multierror.Append(errs, errors.New("hybrid weights must not be negative"))
	}
	if p.PromotionCount < 0 || p.DemotionCount < 0 {
		errs = multierror.Append(errs, errors.New("promotion and demotion counts must not be negative"))
	}
	return errs.ErrorOrNil()
}

// Value implements driver.Valuer so params are stored as JSONB
func (p RulesetParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB params
func (p *RulesetParams) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		return errors.New("ruleset params are null")
	default:
		return fmt.Errorf("unsupported ruleset params type %T", src)
	}
	return json.Unmarshal(raw, p)
}

// Ruleset is a named, versioned set of params
type Ruleset struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Params    RulesetParams `json:"params" db:"params"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
