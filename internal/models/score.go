package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MemberScoreDaily is the derived score for one member-day. It is only
// ever written by the scoring engine.
type MemberScoreDaily struct {
	MemberID       uuid.UUID `json:"member_id" db:"member_id"`
	Date           time.Time `json:"date" db:"date"`
	PointsCheckin  int       `json:"points_checkin" db:"points_checkin"`
	PointsActivity int       `json:"points_activity" db:"points_activity"`
	PointsBonus    int       `json:"points_bonus" db:"points_bonus"`
	TotalPoints    int       `json:"total_points" db:"total_points"`
	StreakDays     int       `json:"streak_days" db:"streak_days"`
	RulesetID      uuid.UUID `json:"ruleset_id" db:"ruleset_id"`
}

// ScoreTotals sums score components over a range
type ScoreTotals struct {
	Checkin  int `json:"checkin"`
	Activity int `json:"activity"`
	Bonus    int `json:"bonus"`
	Total    int `json:"total"`
}

// Add accumulates one day into the totals
func (t *ScoreTotals) Add(s MemberScoreDaily) {
	t.Checkin += s.PointsCheckin
	t.Activity += s.PointsActivity
	t.Bonus += s.PointsBonus
	t.Total += s.TotalPoints
}

// AggregationMode selects how member points roll up to a club
type AggregationMode string

const (
	ModeHybrid AggregationMode = "HYBRID"
	ModeTopN   AggregationMode = "TOP_N"
)

// ClubScoreBreakdown is the auditable roll-up of a club's period score
type ClubScoreBreakdown struct {
	Mode                AggregationMode `json:"mode"`
	HomeRaw             int             `json:"home_raw"`
	VisitorRaw          int             `json:"visitor_raw"`
	HomeWeighted        int             `json:"home_weighted"`
	VisitorWeighted     int             `json:"visitor_weighted"`
	HomeWeight          float64         `json:"home_weight,omitempty"`
	VisitorWeight       float64         `json:"visitor_weight,omitempty"`
	HomeContributors    int             `json:"home_contributors"`
	VisitorContributors int             `json:"visitor_contributors"`
	Contributors        int             `json:"contributors"`
	TopN                int             `json:"top_n,omitempty"`
	Total               int             `json:"total"`
}

// Value implements driver.Valuer so the breakdown is stored as JSONB
func (b ClubScoreBreakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner for the JSONB breakdown
func (b *ClubScoreBreakdown) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	case nil:
		*b = ClubScoreBreakdown{}
		return nil
	default:
		return fmt.Errorf("unsupported breakdown type %T", src)
	}
}

// ClubPeriodScore is a club's persisted score for a season period
type ClubPeriodScore struct {
	ClubID            uuid.UUID          `json:"club_id" db:"club_id"`
	SeasonID          uuid.UUID          `json:"season_id" db:"season_id"`
	PeriodType        PeriodType         `json:"period_type" db:"period_type"`
	PeriodStart       time.Time          `json:"period_start" db:"period_start"`
	PeriodEnd         time.Time          `json:"period_end" db:"period_end"`
	TotalPoints       int                `json:"total_points" db:"total_points"`
	ContributorsCount int                `json:"contributors_count" db:"contributors_count"`
	Breakdown         ClubScoreBreakdown `json:"breakdown" db:"breakdown"`
	CalculatedAt      time.Time          `json:"calculated_at" db:"calculated_at"`
}

// MemberTotal is one member's summed points over a window
type MemberTotal struct {
	MemberID uuid.UUID
	Points   int
}
