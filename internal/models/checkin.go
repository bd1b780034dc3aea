package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CheckinMethod is how a check-in was captured
type CheckinMethod string

const (
	CheckinQR     CheckinMethod = "QR"
	CheckinKiosk  CheckinMethod = "KIOSK"
	CheckinManual CheckinMethod = "MANUAL"
)

// Checkin records a physical visit. At most one exists per member per
// calendar day across all clubs.
type Checkin struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	MemberID    uuid.UUID       `json:"member_id" db:"member_id"`
	ClubID      uuid.UUID       `json:"club_id" db:"club_id"`
	Timestamp   time.Time       `json:"timestamp" db:"checked_in_at"`
	CheckinDate time.Time       `json:"checkin_date" db:"checkin_date"`
	Method      CheckinMethod   `json:"method" db:"method"`
	Token       string          `json:"-" db:"token"`
	DeviceInfo  json.RawMessage `json:"device_info,omitempty" db:"device_info"`
}

// ActivitySource is where activity metrics were synced from
type ActivitySource string

const (
	SourceHealthKit     ActivitySource = "HEALTHKIT"
	SourceHealthConnect ActivitySource = "HEALTH_CONNECT"
	SourceManual        ActivitySource = "MANUAL"
)

// Valid reports whether s is a known source
func (s ActivitySource) Valid() bool {
	switch s {
	case SourceHealthKit, SourceHealthConnect, SourceManual:
		return true
	}
	return false
}

// ActivitySummary is a member's synced physiological data for one day.
// The anomaly fields are owned by the detector and never cleared.
type ActivitySummary struct {
	MemberID       uuid.UUID       `json:"member_id" db:"member_id"`
	Date           time.Time       `json:"date" db:"date"`
	ActiveCalories int             `json:"active_calories" db:"active_calories"`
	Steps          int             `json:"steps" db:"steps"`
	WorkoutMinutes int             `json:"workout_minutes" db:"workout_minutes"`
	Source         ActivitySource  `json:"source" db:"source"`
	DeviceInfo     json.RawMessage `json:"device_info,omitempty" db:"device_info"`
	AnomalyFlag    bool            `json:"anomaly_flag" db:"anomaly_flag"`
	AnomalyReason  *string         `json:"anomaly_reason,omitempty" db:"anomaly_reason"`
	LastSyncAt     time.Time       `json:"last_sync_at" db:"last_sync_at"`
}
