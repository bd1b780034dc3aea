package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/season"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RunLifecycle moves draft and active seasons along by date. Each step is a
// conditional update, so a repeated or late run changes nothing twice.
func (s *Service) RunLifecycle(ctx context.Context, now time.Time) (*RunReport, error) {
	started := time.Now()
	report := &RunReport{Job: JobLifecycle}

	seasons, err := s.Seasons.ListByStatus(ctx, models.SeasonDraft, models.SeasonActive)
	if err != nil {
		err = fmt.Errorf("failed to list open seasons: %w", err)
		s.observe(report, started, err)
		return report, err
	}

	for _, sn := range seasons {
		sub := &RunReport{Processed: 1}
		if err := s.advanceSeason(ctx, sn, now); err != nil {
			sub.Failed = 1
			sub.Err = &models.ComputationError{Entity: "season", ID: sn.ID, Err: err}
			s.logger.WithField("season_id", sn.ID).WithError(err).Error("Failed to advance season")
		}
		report.merge(sub)
	}

	s.observe(report, started, nil)
	return report, nil
}

func (s *Service) advanceSeason(ctx context.Context, sn *models.Season, now time.Time) error {
	for _, step := range season.Steps(now, *sn) {
		from, to := step[0], step[1]
		ok, err := s.Seasons.TransitionStatus(ctx, sn.ID, from, to, now)
		if err != nil {
			return err
		}
		if !ok {
			// Another run got there first.
			return nil
		}
		s.recordStatusChange(ctx, sn.ID, from, to)
	}
	return nil
}

func (s *Service) recordStatusChange(ctx context.Context, seasonID uuid.UUID, from, to models.SeasonStatus) {
	s.logger.WithFields(logrus.Fields{
		"season_id": seasonID,
		"from":      from,
		"to":        to,
	}).Info("Season status changed")

	s.audit(ctx, &models.AuditEntry{
		Action:     models.AuditSeasonStatus,
		EntityType: "season",
		EntityID:   seasonID,
		OldValue:   string(from),
		NewValue:   string(to),
	})
}

// CancelSeason ends a season that has not finished yet
func (s *Service) CancelSeason(ctx context.Context, seasonID uuid.UUID) (*models.Season, error) {
	sn, err := s.seasonByID(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	if !sn.Status.CanTransitionTo(models.SeasonCancelled) {
		return nil, fmt.Errorf("season %s is %s: %w", sn.ID, sn.Status, models.ErrInvalidTransition)
	}

	ok, err := s.Seasons.TransitionStatus(ctx, sn.ID, sn.Status, models.SeasonCancelled, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("season %s changed status concurrently: %w", sn.ID, models.ErrInvalidTransition)
	}

	s.recordStatusChange(ctx, sn.ID, sn.Status, models.SeasonCancelled)
	sn.Status = models.SeasonCancelled
	return sn, nil
}
