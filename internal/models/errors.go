package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind is the machine-readable category surfaced to callers
type ErrorKind string

const (
	KindTokenExpired      ErrorKind = "TOKEN_EXPIRED"
	KindTokenInvalid      ErrorKind = "TOKEN_INVALID"
	KindAlreadyCheckedIn  ErrorKind = "ALREADY_CHECKED_IN"
	KindClubNotFound      ErrorKind = "CLUB_NOT_FOUND"
	KindSeasonNotFound    ErrorKind = "SEASON_NOT_FOUND"
	KindMemberNotFound    ErrorKind = "MEMBER_NOT_FOUND"
	KindRulesetMissing    ErrorKind = "RULESET_MISSING"
	KindConsentRequired   ErrorKind = "CONSENT_REQUIRED"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindComputationFailed ErrorKind = "COMPUTATION_FAILED"
	KindInternal          ErrorKind = "INTERNAL"
)

var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenInvalid      = errors.New("token invalid")
	ErrAlreadyCheckedIn  = errors.New("already checked in today")
	ErrClubNotFound      = errors.New("club not found")
	ErrSeasonNotFound    = errors.New("season not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrRulesetMissing    = errors.New("no ruleset available")
	ErrConsentRequired   = errors.New("activity consent not granted")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var sentinelKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrTokenExpired, KindTokenExpired},
	{ErrTokenInvalid, KindTokenInvalid},
	{ErrAlreadyCheckedIn, KindAlreadyCheckedIn},
	{ErrClubNotFound, KindClubNotFound},
	{ErrSeasonNotFound, KindSeasonNotFound},
	{ErrMemberNotFound, KindMemberNotFound},
	{ErrRulesetMissing, KindRulesetMissing},
	{ErrConsentRequired, KindConsentRequired},
	{ErrInvalidTransition, KindInvalidTransition},
}

// ComputationError records a batch failure for a single entity
type ComputationError struct {
	Entity string
	ID     uuid.UUID
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation failed for %s %s: %v", e.Entity, e.ID, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// KindOf maps err to its kind. Sentinel errors win over the
// computation wrapper so a wrapped ErrClubNotFound still reports as such.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, sk := range sentinelKinds {
		if errors.Is(err, sk.err) {
			return sk.kind
		}
	}
	var ce *ComputationError
	if errors.As(err, &ce) {
		return KindComputationFailed
	}
	return KindInternal
}
