package service

import (
	"context"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"
)

// Job names, used for logging, metrics and run reports
const (
	JobDailyScores      = "daily_scores"
	JobClubScores       = "club_scores"
	JobWeeklyStandings  = "weekly_standings"
	JobMonthlyStandings = "monthly_standings"
	JobLifecycle        = "season_lifecycle"
	JobAnomalySweep     = "anomaly_sweep"
	JobAuditCleanup     = "audit_cleanup"
)

// Cron specs for the periodic jobs. Standings run after the daily job has
// scored the last day of the closing period.
const (
	ScheduleDailyScores      = "30 0 * * *"
	ScheduleWeeklyStandings  = "0 1 * * 1"
	ScheduleMonthlyStandings = "15 1 1 * *"
	ScheduleAnomalySweep     = "0 2 * * *"
	ScheduleAuditCleanup     = "0 3 * * 0"
	ScheduleLifecycle        = "0 * * * *"
)

// StartScheduler runs the periodic jobs in loc until the context is
// cancelled, so it should be launched in a separate goroutine. A tick that
// fires while the previous run of the same job is still going is skipped.
func (s *Service) StartScheduler(ctx context.Context, loc *time.Location) error {
	c, err := s.buildScheduler(ctx, loc)
	if err != nil {
		return err
	}

	c.Start()
	s.logger.WithField("jobs", len(c.Entries())).Info("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

type scheduledJob struct {
	spec string
	name string
	run  func(ctx context.Context)
}

func (s *Service) buildScheduler(ctx context.Context, loc *time.Location) (*cron.Cron, error) {
	cronLog := cron.PrintfLogger(s.logger)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog)),
	)

	jobs := []scheduledJob{
		{ScheduleDailyScores, JobDailyScores, s.runDaily},
		{ScheduleWeeklyStandings, JobWeeklyStandings, func(ctx context.Context) {
			_, _ = s.RunPeriodStandings(ctx, models.PeriodWeekly, s.now())
		}},
		{ScheduleMonthlyStandings, JobMonthlyStandings, func(ctx context.Context) {
			_, _ = s.RunPeriodStandings(ctx, models.PeriodMonthly, s.now())
		}},
		{ScheduleLifecycle, JobLifecycle, func(ctx context.Context) {
			_, _ = s.RunLifecycle(ctx, s.now())
		}},
		{ScheduleAuditCleanup, JobAuditCleanup, func(ctx context.Context) {
			_, _ = s.CleanupAudit(ctx, s.now())
		}},
	}
	if s.opts.AnomalySweep {
		jobs = append(jobs, scheduledJob{ScheduleAnomalySweep, JobAnomalySweep, func(ctx context.Context) {
			_, _ = s.SweepAnomalies(ctx, yesterday(s.now()))
		}})
	}

	for _, job := range jobs {
		if _, err := c.AddFunc(job.spec, s.guarded(ctx, job.name, job.run)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// guarded wraps run so that at most one instance of the job is in flight
func (s *Service) guarded(ctx context.Context, name string, run func(ctx context.Context)) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			s.logger.WithField("job", name).Warn("Previous run still in progress, skipping tick")
			return
		}
		defer running.Store(false)

		if ctx.Err() != nil {
			return
		}
		run(ctx)
	}
}

// runDaily scores yesterday for every member, then refreshes the
// week-to-date club scores.
func (s *Service) runDaily(ctx context.Context) {
	day := yesterday(s.now())
	if _, err := s.RecomputeDailyScores(ctx, day, nil); err != nil {
		return
	}
	_, _ = s.RefreshWeekToDate(ctx, day)
}

func yesterday(now time.Time) time.Time {
	return models.DayOf(now).AddDate(0, 0, -1)
}
