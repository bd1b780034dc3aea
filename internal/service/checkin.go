package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/token"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CheckinRequest is what a member's device submits after scanning a club code
type CheckinRequest struct {
	MemberID   uuid.UUID
	ClubID     uuid.UUID
	Token      string
	IssuedAt   int64
	DeviceInfo json.RawMessage
}

// IssueToken returns a fresh code for a club display
func (s *Service) IssueToken(ctx context.Context, clubID uuid.UUID) (*token.Token, error) {
	tok, err := s.Tokens.Issue(ctx, clubID, s.now())
	if err != nil {
		return nil, err
	}
	s.metrics.TokensIssued.Inc()
	return tok, nil
}

// CheckIn records a member's visit. The token must be current for the club
// and the member must not have checked in anywhere today. A check-in at a
// different club moves the member's home club there.
func (s *Service) CheckIn(ctx context.Context, req CheckinRequest) (checkin *models.Checkin, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = string(models.KindOf(err))
		}
		s.metrics.Checkins.WithLabelValues(result).Inc()
	}()

	now := s.now()
	if err := s.Tokens.Validate(ctx, req.ClubID, req.Token, req.IssuedAt, now); err != nil {
		return nil, err
	}

	member, err := s.Members.GetByID(ctx, req.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", req.MemberID, err)
	}
	if member == nil {
		return nil, models.ErrMemberNotFound
	}

	today := models.DayOf(now)
	existing, err := s.Checkins.GetForMemberOnDay(ctx, req.MemberID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to look up today's check-in: %w", err)
	}
	if existing != nil {
		return nil, models.ErrAlreadyCheckedIn
	}

	checkin, err = s.Checkins.Create(ctx, &models.Checkin{
		ID:          uuid.New(),
		MemberID:    req.MemberID,
		ClubID:      req.ClubID,
		Timestamp:   now,
		CheckinDate: today,
		Method:      models.CheckinQR,
		Token:       req.Token,
		DeviceInfo:  req.DeviceInfo,
	})
	if err != nil {
		if errors.Is(err, models.ErrAlreadyCheckedIn) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record check-in: %w", err)
	}

	if !member.HomeClubIs(req.ClubID) {
		s.reassignHomeClub(ctx, req.MemberID, req.ClubID, now)
	}

	s.logger.WithFields(logrus.Fields{
		"member_id": req.MemberID,
		"club_id":   req.ClubID,
	}).Debug("Recorded check-in")
	return checkin, nil
}

// reassignHomeClub is best effort: the check-in already stands.
func (s *Service) reassignHomeClub(ctx context.Context, memberID, clubID uuid.UUID, at time.Time) {
	changed, previous, err := s.Members.SetHomeClub(ctx, memberID, clubID, at)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"member_id": memberID,
			"club_id":   clubID,
		}).WithError(err).Error("Failed to update home club")
		return
	}
	if !changed {
		return
	}

	old := ""
	if previous != nil {
		old = previous.String()
	}
	s.audit(ctx, &models.AuditEntry{
		Action:     models.AuditHomeClubChanged,
		EntityType: "member",
		EntityID:   memberID,
		OldValue:   old,
		NewValue:   clubID.String(),
	})
}
