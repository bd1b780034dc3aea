package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kerhoff/clubleague/internal/metrics"
	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/Kerhoff/clubleague/internal/token"
	"github.com/Kerhoff/clubleague/pkg/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Repositories bundles the stores the service orchestrates
type Repositories struct {
	Members   repository.MemberRepository
	Clubs     repository.ClubRepository
	Checkins  repository.CheckinRepository
	Activity  repository.ActivityRepository
	Scores    repository.ScoreRepository
	Rulesets  repository.RulesetRepository
	Seasons   repository.SeasonRepository
	Standings repository.StandingRepository
	Audit     repository.AuditRepository
}

// Options tunes the batch jobs
type Options struct {
	// Concurrency bounds per-entity fan-out in batch runs
	Concurrency int
	// AnomalySweep enables the nightly re-evaluation of unflagged days
	AnomalySweep bool
	// RetentionDays is how long audit entries are kept
	RetentionDays int
}

// Service is the central business logic layer. It records check-ins and
// activity, runs the scoring and league batch jobs and answers queries.
type Service struct {
	Repositories

	Tokens  *token.Protocol
	metrics *metrics.Metrics
	logger  *logrus.Logger
	opts    Options
	now     func() time.Time
}

// New creates a new Service with all required dependencies.
func New(repos Repositories, tokens *token.Protocol, m *metrics.Metrics, logger *logrus.Logger, opts Options) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Service{
		Repositories: repos,
		Tokens:       tokens,
		metrics:      m,
		logger:       logger,
		opts:         opts,
		now:          time.Now,
	}
}

// Now returns the service clock
func (s *Service) Now() time.Time {
	return s.now()
}

// RunReport summarises one batch run. A run with failures still completed
// its pass; Err aggregates the per-entity failures.
type RunReport struct {
	Job       string        `json:"job"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
	Errors    []string      `json:"errors,omitempty"`
	Err       error         `json:"-"`
}

func (r *RunReport) merge(other *RunReport) {
	r.Processed += other.Processed
	r.Failed += other.Failed
	if other.Err != nil {
		r.Err = multierror.Append(r.Err, other.Err)
	}
}

func (r *RunReport) finish(started time.Time) {
	r.Duration = time.Since(started)
	if merr, ok := r.Err.(*multierror.Error); ok {
		r.Err = merr.ErrorOrNil()
		if merr != nil {
			for _, e := range merr.Errors {
				r.Errors = append(r.Errors, e.Error())
			}
		}
	}
}

// observe closes the report, logs the summary and records metrics
func (s *Service) observe(report *RunReport, started time.Time, abortErr error) {
	report.finish(started)
	s.metrics.ObserveJob(report.Job, started, report.Processed, report.Failed, abortErr)

	entry := logger.ForJob(s.logger, report.Job).WithFields(logrus.Fields{
		"processed": report.Processed,
		"failed":    report.Failed,
		"duration":  report.Duration.String(),
	})
	switch {
	case abortErr != nil:
		entry.WithError(abortErr).Error("Job aborted")
	case report.Failed > 0:
		entry.Warn("Job finished with failures")
	default:
		entry.Info("Job finished")
	}
}

// forEach runs fn for every id with bounded concurrency. A failing entity
// is recorded and the pass continues.
func (s *Service) forEach(ctx context.Context, entity string, ids []uuid.UUID, fn func(ctx context.Context, id uuid.UUID) error) *RunReport {
	report := &RunReport{}

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := fn(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			report.Processed++
			if err != nil {
				report.Failed++
				errs = multierror.Append(errs, &models.ComputationError{Entity: entity, ID: id, Err: err})
				s.logger.WithFields(logrus.Fields{
					entity + "_id": id,
				}).WithError(err).Error("Failed to process entity")
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		report.Err = errs
	}
	return report
}

// resolveRuleset picks the ruleset for a run: the explicit id when given,
// else the most recently created one.
func (s *Service) resolveRuleset(ctx context.Context, id *uuid.UUID) (*models.Ruleset, error) {
	var (
		rs  *models.Ruleset
		err error
	)
	if id != nil {
		rs, err = s.Rulesets.GetByID(ctx, *id)
	} else {
		rs, err = s.Rulesets.Latest(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ruleset: %w", err)
	}
	if rs == nil {
		return nil, models.ErrRulesetMissing
	}
	if err := rs.Params.Validate(); err != nil {
		return nil, fmt.Errorf("ruleset %s is unusable: %w", rs.ID, err)
	}
	return rs, nil
}

func (s *Service) seasonByID(ctx context.Context, id uuid.UUID) (*models.Season, error) {
	season, err := s.Seasons.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load season %s: %w", id, err)
	}
	if season == nil {
		return nil, models.ErrSeasonNotFound
	}
	return season, nil
}

func (s *Service) audit(ctx context.Context, entry *models.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.Audit.Record(ctx, entry); err != nil {
		s.logger.WithFields(logrus.Fields{
			"action":    entry.Action,
			"entity_id": entry.EntityID,
		}).WithError(err).Warn("Failed to record audit entry")
	}
}
