package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityStatus is the soft-delete state shared by members and clubs
type EntityStatus string

const (
	StatusActive    EntityStatus = "ACTIVE"
	StatusInactive  EntityStatus = "INACTIVE"
	StatusSuspended EntityStatus = "SUSPENDED"
	StatusDeleted   EntityStatus = "DELETED"
)

// Member is a gym member. ClubID is the current home club and moves to
// whichever club the member last checked in at.
type Member struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	ClubID            *uuid.UUID   `json:"club_id,omitempty" db:"club_id"`
	FirstName         string       `json:"first_name" db:"first_name"`
	LastName          string       `json:"last_name" db:"last_name"`
	ActivityConsent   bool         `json:"activity_consent" db:"activity_consent"`
	ActivityConsentAt *time.Time   `json:"activity_consent_at,omitempty" db:"activity_consent_at"`
	Status            EntityStatus `json:"status" db:"status"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// HomeClubIs reports whether clubID is the member's current home club
func (m *Member) HomeClubIs(clubID uuid.UUID) bool {
	return m.ClubID != nil && *m.ClubID == clubID
}

// Club is a physical gym location. The token secret fields are owned by
// the token protocol.
type Club struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	BrandID           *uuid.UUID   `json:"brand_id,omitempty" db:"brand_id"`
	Name              string       `json:"name" db:"name"`
	City              string       `json:"city" db:"city"`
	Timezone          string       `json:"timezone" db:"timezone"`
	TokenSecret       string       `json:"-" db:"token_secret"`
	TokenLastRotation *time.Time   `json:"-" db:"token_last_rotation"`
	Status            EntityStatus `json:"status" db:"status"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}
