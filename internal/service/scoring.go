package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/scoring"
	"github.com/google/uuid"
)

// ComputeDailyScore derives and stores one member-day under rs. Running it
// again with the same inputs rewrites an identical row.
func (s *Service) ComputeDailyScore(ctx context.Context, memberID uuid.UUID, date time.Time, rs *models.Ruleset) (*models.MemberScoreDaily, error) {
	day := models.DayOf(date)
	from := day.AddDate(0, 0, -(scoring.StreakLookbackDays - 1))

	history, err := s.Scores.History(ctx, memberID, from, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	score := scoring.ComputeDaily(memberID, day, history, rs)
	if err := s.Scores.UpsertMemberDaily(ctx, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// RecomputeDailyScores scores every active member for date. The ruleset is
// resolved once up front; a missing ruleset aborts the run untouched.
func (s *Service) RecomputeDailyScores(ctx context.Context, date time.Time, rulesetID *uuid.UUID) (*RunReport, error) {
	started := time.Now()
	report := &RunReport{Job: JobDailyScores}

	rs, err := s.resolveRuleset(ctx, rulesetID)
	if err != nil {
		s.observe(report, started, err)
		return report, err
	}

	ids, err := s.Members.ListActiveIDs(ctx)
	if err != nil {
		err = fmt.Errorf("failed to list active members: %w", err)
		s.observe(report, started, err)
		return report, err
	}

	report.merge(s.forEach(ctx, "member", ids, func(ctx context.Context, id uuid.UUID) error {
		_, err := s.ComputeDailyScore(ctx, id, date, rs)
		return err
	}))

	s.observe(report, started, nil)
	return report, nil
}

// ComputeClubPeriodScore rolls member totals in [start, end] up to the club
// and stores the result for the season period.
func (s *Service) ComputeClubPeriodScore(ctx context.Context, clubID uuid.UUID, season *models.Season, periodType models.PeriodType, start, end time.Time, rs *models.Ruleset) (*models.ClubPeriodScore, error) {
	home, err := s.Scores.HomeMemberTotals(ctx, clubID, start, end)
	if err != nil {
		return nil, err
	}

	var visitor []models.MemberTotal
	if rs.Params.HybridScoring {
		visitor, err = s.Scores.VisitorMemberTotals(ctx, clubID, start, end)
		if err != nil {
			return nil, err
		}
	}

	breakdown := scoring.Aggregate(home, visitor, rs.Params)
	score := &models.ClubPeriodScore{
		ClubID:            clubID,
		SeasonID:          season.ID,
		PeriodType:        periodType,
		PeriodStart:       models.DayOf(start),
		PeriodEnd:         models.DayOf(end),
		TotalPoints:       breakdown.Total,
		ContributorsCount: breakdown.Contributors,
		Breakdown:         breakdown,
		CalculatedAt:      s.now(),
	}
	if err := s.Scores.UpsertClubPeriod(ctx, score); err != nil {
		return nil, err
	}
	return score, nil
}

// seasonRuleset resolves the ruleset a season scores with
func (s *Service) seasonRuleset(ctx context.Context, season *models.Season) (*models.Ruleset, error) {
	return s.resolveRuleset(ctx, season.RulesetID)
}

// RefreshWeekToDate recomputes each active season's club scores for the
// week containing date, up to and including date.
func (s *Service) RefreshWeekToDate(ctx context.Context, date time.Time) (*RunReport, error) {
	started := time.Now()
	report := &RunReport{Job: JobClubScores}

	seasons, err := s.Seasons.ListByStatus(ctx, models.SeasonActive)
	if err != nil {
		err = fmt.Errorf("failed to list active seasons: %w", err)
		s.observe(report, started, err)
		return report, err
	}

	day := models.DayOf(date)
	start := models.WeekStart(day)
	for _, season := range seasons {
		rs, err := s.seasonRuleset(ctx, season)
		if err != nil {
			report.merge(&RunReport{Processed: 1, Failed: 1, Err: &models.ComputationError{Entity: "season", ID: season.ID, Err: err}})
			continue
		}

		clubs, err := s.Seasons.ListClubs(ctx, season.ID)
		if err != nil {
			report.merge(&RunReport{Processed: 1, Failed: 1, Err: &models.ComputationError{Entity: "season", ID: season.ID, Err: err}})
			continue
		}

		report.merge(s.forEach(ctx, "club", clubIDs(clubs), func(ctx context.Context, clubID uuid.UUID) error {
			_, err := s.ComputeClubPeriodScore(ctx, clubID, season, models.PeriodWeekly, start, day, rs)
			return err
		}))
	}

	s.observe(report, started, nil)
	return report, nil
}

func clubIDs(clubs []models.SeasonClub) []uuid.UUID {
	ids := make([]uuid.UUID, len(clubs))
	for i, c := range clubs {
		ids[i] = c.ClubID
	}
	return ids
}
