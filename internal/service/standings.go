package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kerhoff/clubleague/internal/league"
	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/Kerhoff/clubleague/internal/season"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StandingsRun is the outcome of snapshotting one season period
type StandingsRun struct {
	SeasonID       uuid.UUID               `json:"season_id"`
	PeriodType     models.PeriodType       `json:"period_type"`
	PeriodStart    time.Time               `json:"period_start"`
	PeriodEnd      time.Time               `json:"period_end"`
	Standings      []models.LeagueStanding `json:"standings"`
	Changes        []models.TierChange     `json:"changes,omitempty"`
	AlreadyApplied bool                    `json:"already_applied,omitempty"`
}

// ComputeStandings scores every club of the season for the period
// containing periodStart, ranks each tier and stores the snapshot. With
// transition set, a weekly period of an active season also moves clubs
// between tiers, at most once per period. Tiers only move for a week that
// has closed; asking to transition the current or a future week fails with
// models.ErrInvalidTransition before anything is written.
//
// If any club fails to score the snapshot is not written, since ranks
// computed without it would be wrong.
func (s *Service) ComputeStandings(ctx context.Context, seasonID uuid.UUID, periodType models.PeriodType, periodStart time.Time, transition bool) (*StandingsRun, error) {
	sn, err := s.seasonByID(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	if sn.Status == models.SeasonDraft || sn.Status == models.SeasonCancelled {
		return nil, fmt.Errorf("season %s is %s: %w", sn.ID, sn.Status, models.ErrInvalidTransition)
	}

	rs, err := s.seasonRuleset(ctx, sn)
	if err != nil {
		return nil, err
	}

	start, end := periodType.Bounds(periodStart)
	applyTiers := transition && periodType == models.PeriodWeekly && season.AcceptsTransitions(*sn)
	if applyTiers && !end.Before(models.DayOf(s.now())) {
		return nil, fmt.Errorf("week %s to %s has not closed: %w",
			start.Format(models.DateLayout), end.Format(models.DateLayout), models.ErrInvalidTransition)
	}
	run := &StandingsRun{SeasonID: sn.ID, PeriodType: periodType, PeriodStart: start, PeriodEnd: end}

	clubs, err := s.Seasons.ListClubs(ctx, sn.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list season clubs: %w", err)
	}

	tiers, err := s.competedTiers(ctx, sn, periodType, start, clubs)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		entries = make([]league.Entry, 0, len(clubs))
	)
	report := s.forEach(ctx, "club", clubIDs(clubs), func(ctx context.Context, clubID uuid.UUID) error {
		score, err := s.ComputeClubPeriodScore(ctx, clubID, sn, periodType, start, end, rs)
		if err != nil {
			return err
		}
		mu.Lock()
		entries = append(entries, league.Entry{
			ClubID:    clubID,
			Tier:      tiers[clubID],
			Points:    score.TotalPoints,
			Breakdown: score.Breakdown,
		})
		mu.Unlock()
		return nil
	})
	if report.Failed > 0 {
		report.finish(time.Now())
		return nil, fmt.Errorf("%d of %d clubs failed to score: %w", report.Failed, report.Processed, report.Err)
	}

	now := s.now()
	placements := league.RankAll(entries, rs.Params.PromotionCount, rs.Params.DemotionCount)
	run.Standings = make([]models.LeagueStanding, len(placements))
	for i, p := range placements {
		run.Standings[i] = models.LeagueStanding{
			SeasonID:     sn.ID,
			ClubID:       p.ClubID,
			PeriodType:   periodType,
			PeriodStart:  start,
			Tier:         p.Tier,
			Rank:         p.Rank,
			Points:       p.Points,
			Promotion:    p.Promotion,
			Demotion:     p.Demotion,
			Breakdown:    p.Breakdown,
			CalculatedAt: now,
		}
	}
	if err := s.Standings.Upsert(ctx, run.Standings); err != nil {
		return nil, fmt.Errorf("failed to store standings: %w", err)
	}

	if applyTiers {
		if err := s.applyTransition(ctx, run); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// competedTiers returns the tier each club competed in for the period.
// Once a period's transition has run, the stored snapshot keeps the tier
// the club held before moving.
func (s *Service) competedTiers(ctx context.Context, sn *models.Season, periodType models.PeriodType, start time.Time, clubs []models.SeasonClub) (map[uuid.UUID]models.LeagueTier, error) {
	tiers := make(map[uuid.UUID]models.LeagueTier, len(clubs))
	for _, c := range clubs {
		tiers[c.ClubID] = c.LeagueTier
	}

	transitioned := periodType == models.PeriodWeekly &&
		sn.LastTransitionPeriod != nil && !start.After(*sn.LastTransitionPeriod)
	if !transitioned {
		return tiers, nil
	}

	previous, err := s.Standings.List(ctx, sn.ID, repository.StandingFilters{PeriodType: periodType, PeriodStart: start})
	if err != nil {
		return nil, fmt.Errorf("failed to load stored standings: %w", err)
	}
	for _, st := range previous {
		if _, ok := tiers[st.ClubID]; ok {
			tiers[st.ClubID] = st.Tier
		}
	}
	return tiers, nil
}

func (s *Service) applyTransition(ctx context.Context, run *StandingsRun) error {
	changes := league.Plan(run.Standings)
	applied, already, err := s.Standings.ApplyTransition(ctx, run.SeasonID, run.PeriodStart, changes, s.now())
	if err != nil {
		return fmt.Errorf("failed to apply tier transition: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"season_id":    run.SeasonID,
		"period_start": run.PeriodStart.Format(models.DateLayout),
	})
	if already {
		run.AlreadyApplied = true
		log.Info("Tier transition already applied for period")
		return nil
	}

	run.Changes = applied
	for _, c := range applied {
		direction := "down"
		if c.Promoted() {
			direction = "up"
		}
		s.metrics.TierChanges.WithLabelValues(direction).Inc()
	}
	log.WithField("changes", len(applied)).Info("Applied tier transition")
	return nil
}

// RunPeriodStandings snapshots the period before the one containing now for
// every active season, and for every completed season whose last day fell
// in or after that period so its final period is still recorded. Weekly
// runs also apply tier transitions to active seasons.
func (s *Service) RunPeriodStandings(ctx context.Context, periodType models.PeriodType, now time.Time) (*RunReport, error) {
	started := time.Now()
	report := &RunReport{Job: standingsJob(periodType)}

	seasons, err := s.Seasons.ListByStatus(ctx, models.SeasonActive, models.SeasonCompleted)
	if err != nil {
		err = fmt.Errorf("failed to list seasons: %w", err)
		s.observe(report, started, err)
		return report, err
	}

	start, end := periodType.Previous(now)
	ids := make([]uuid.UUID, 0, len(seasons))
	for _, sn := range seasons {
		if end.Before(models.DayOf(sn.StartDate)) {
			continue
		}
		if sn.Status == models.SeasonCompleted && models.DayOf(sn.EndDate).Before(start) {
			continue
		}
		ids = append(ids, sn.ID)
	}

	// Seasons run one after another; each already fans out over its clubs.
	for _, id := range ids {
		_, err := s.ComputeStandings(ctx, id, periodType, start, periodType == models.PeriodWeekly)
		sub := &RunReport{Processed: 1}
		if err != nil {
			sub.Failed = 1
			sub.Err = &models.ComputationError{Entity: "season", ID: id, Err: err}
			s.logger.WithField("season_id", id).WithError(err).Error("Failed to compute standings")
		}
		report.merge(sub)
	}

	s.observe(report, started, nil)
	return report, nil
}

func standingsJob(periodType models.PeriodType) string {
	if periodType == models.PeriodMonthly {
		return JobMonthlyStandings
	}
	return JobWeeklyStandings
}

// GetStandings lists a season's standings for one period. Without an
// explicit period start the latest snapshot of the period type is used;
// the returned time is the period listed, nil when none exists yet.
func (s *Service) GetStandings(ctx context.Context, seasonID uuid.UUID, filters repository.StandingFilters) ([]models.LeagueStanding, *time.Time, error) {
	if _, err := s.seasonByID(ctx, seasonID); err != nil {
		return nil, nil, err
	}
	if filters.PeriodType == "" {
		filters.PeriodType = models.PeriodWeekly
	}

	if filters.PeriodStart.IsZero() {
		latest, err := s.Standings.LatestPeriod(ctx, seasonID, filters.PeriodType)
		if err != nil {
			return nil, nil, err
		}
		if latest == nil {
			return []models.LeagueStanding{}, nil, nil
		}
		filters.PeriodStart = *latest
	} else {
		filters.PeriodStart, _ = filters.PeriodType.Bounds(filters.PeriodStart)
	}

	standings, err := s.Standings.List(ctx, seasonID, filters)
	if err != nil {
		return nil, nil, err
	}
	if standings == nil {
		standings = []models.LeagueStanding{}
	}
	period := filters.PeriodStart
	return standings, &period, nil
}

// ClubStanding is a club's current tier and its latest weekly snapshot
type ClubStanding struct {
	SeasonID    uuid.UUID              `json:"season_id"`
	ClubID      uuid.UUID              `json:"club_id"`
	CurrentTier models.LeagueTier      `json:"current_tier"`
	Latest      *models.LeagueStanding `json:"latest,omitempty"`
}

// GetClubStanding returns one club's position in a season
func (s *Service) GetClubStanding(ctx context.Context, seasonID, clubID uuid.UUID) (*ClubStanding, error) {
	if _, err := s.seasonByID(ctx, seasonID); err != nil {
		return nil, err
	}

	clubs, err := s.Seasons.ListClubs(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list season clubs: %w", err)
	}

	result := &ClubStanding{SeasonID: seasonID, ClubID: clubID}
	found := false
	for _, c := range clubs {
		if c.ClubID == clubID {
			result.CurrentTier = c.LeagueTier
			found = true
			break
		}
	}
	if !found {
		return nil, models.ErrClubNotFound
	}

	latest, err := s.Standings.LatestPeriod(ctx, seasonID, models.PeriodWeekly)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return result, nil
	}

	result.Latest, err = s.Standings.GetForClub(ctx, seasonID, clubID, models.PeriodWeekly, *latest)
	if err != nil {
		return nil, err
	}
	return result, nil
}
