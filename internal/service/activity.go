package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/scoring"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ActivitySync is one day of activity pushed from a member's device
type ActivitySync struct {
	MemberID       uuid.UUID
	Date           time.Time
	ActiveCalories int
	Steps          int
	WorkoutMinutes int
	Source         models.ActivitySource
	DeviceInfo     json.RawMessage
}

// SyncResult is the stored summary and whether the day is flagged
type SyncResult struct {
	Summary         *models.ActivitySummary `json:"summary"`
	AnomalyDetected bool                    `json:"anomaly_detected"`
}

// SyncActivity evaluates the day against the anti-cheat thresholds and
// upserts it. A day flagged earlier stays flagged.
func (s *Service) SyncActivity(ctx context.Context, req ActivitySync) (*SyncResult, error) {
	member, err := s.Members.GetByID(ctx, req.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", req.MemberID, err)
	}
	if member == nil {
		return nil, models.ErrMemberNotFound
	}
	if !member.ActivityConsent {
		return nil, models.ErrConsentRequired
	}

	rs, err := s.resolveRuleset(ctx, nil)
	if err != nil {
		return nil, err
	}

	day := models.DayOf(req.Date)
	previous, err := s.previousActivity(ctx, req.MemberID, day)
	if err != nil {
		return nil, err
	}
	verdict := scoring.Evaluate(req.ActiveCalories, previous, scoring.ThresholdsFrom(rs.Params))

	source := req.Source
	if source == "" {
		source = models.SourceManual
	}

	stored, err := s.Activity.Upsert(ctx, &models.ActivitySummary{
		MemberID:       req.MemberID,
		Date:           day,
		ActiveCalories: req.ActiveCalories,
		Steps:          req.Steps,
		WorkoutMinutes: req.WorkoutMinutes,
		Source:         source,
		DeviceInfo:     req.DeviceInfo,
		AnomalyFlag:    verdict.Flagged,
		AnomalyReason:  verdict.ReasonPtr(),
		LastSyncAt:     s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store activity: %w", err)
	}

	if verdict.Flagged {
		s.metrics.Anomalies.WithLabelValues("sync").Inc()
		s.logger.WithFields(logrus.Fields{
			"member_id": req.MemberID,
			"date":      day.Format(models.DateLayout),
			"reason":    verdict.Reason,
		}).Info("Flagged activity anomaly")
	}

	return &SyncResult{Summary: stored, AnomalyDetected: stored.AnomalyFlag}, nil
}

func (s *Service) previousActivity(ctx context.Context, memberID uuid.UUID, day time.Time) (*int, error) {
	prev, err := s.Activity.Get(ctx, memberID, day.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("failed to load previous day activity: %w", err)
	}
	if prev == nil {
		return nil, nil
	}
	return &prev.ActiveCalories, nil
}

// SetConsent records whether the member allows activity data collection
func (s *Service) SetConsent(ctx context.Context, memberID uuid.UUID, granted bool) error {
	if err := s.Members.SetActivityConsent(ctx, memberID, granted, s.now()); err != nil {
		return fmt.Errorf("failed to set consent for member %s: %w", memberID, err)
	}
	return nil
}

// SweepAnomalies re-applies both rules to every unflagged summary of day.
// It only ever sets flags.
func (s *Service) SweepAnomalies(ctx context.Context, day time.Time) (*RunReport, error) {
	started := time.Now()
	report := &RunReport{Job: JobAnomalySweep}

	rs, err := s.resolveRuleset(ctx, nil)
	if err != nil {
		s.observe(report, started, err)
		return report, err
	}
	th := scoring.ThresholdsFrom(rs.Params)

	day = models.DayOf(day)
	summaries, err := s.Activity.ListUnflaggedOn(ctx, day)
	if err != nil {
		err = fmt.Errorf("failed to list activity for %s: %w", day.Format(models.DateLayout), err)
		s.observe(report, started, err)
		return report, err
	}

	byMember := make(map[uuid.UUID]*models.ActivitySummary, len(summaries))
	ids := make([]uuid.UUID, 0, len(summaries))
	for _, summary := range summaries {
		byMember[summary.MemberID] = summary
		ids = append(ids, summary.MemberID)
	}

	run := s.forEach(ctx, "member", ids, func(ctx context.Context, memberID uuid.UUID) error {
		previous, err := s.previousActivity(ctx, memberID, day)
		if err != nil {
			return err
		}
		verdict := scoring.Evaluate(byMember[memberID].ActiveCalories, previous, th)
		if !verdict.Flagged {
			return nil
		}
		flagged, err := s.Activity.Flag(ctx, memberID, day, verdict.Reason)
		if err != nil {
			return err
		}
		if flagged {
			s.metrics.Anomalies.WithLabelValues("sweep").Inc()
		}
		return nil
	})
	report.merge(run)

	s.observe(report, started, nil)
	return report, nil
}
