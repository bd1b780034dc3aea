package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kerhoff/clubleague/internal/api"
	"github.com/Kerhoff/clubleague/internal/config"
	"github.com/Kerhoff/clubleague/internal/metrics"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/Kerhoff/clubleague/internal/repository/postgres"
	"github.com/Kerhoff/clubleague/internal/service"
	"github.com/Kerhoff/clubleague/internal/token"
	"github.com/Kerhoff/clubleague/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting leagued...")

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Database
	db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(cfg.MigrationsPath); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	clubRepo := postgres.NewClubRepository(db.DB)
	rulesetRepo, err := repository.NewCachedRulesetRepository(postgres.NewRulesetRepository(db.DB), cfg.RulesetCacheSize)
	if err != nil {
		l.Fatalf("Failed to create ruleset cache: %v", err)
	}

	repos := service.Repositories{
		Members:   postgres.NewMemberRepository(db.DB),
		Clubs:     clubRepo,
		Checkins:  postgres.NewCheckinRepository(db.DB),
		Activity:  postgres.NewActivityRepository(db.DB),
		Scores:    postgres.NewScoreRepository(db.DB),
		Rulesets:  rulesetRepo,
		Seasons:   postgres.NewSeasonRepository(db.DB),
		Standings: postgres.NewStandingRepository(db.DB),
		Audit:     postgres.NewAuditRepository(db.DB),
	}

	// Service layer
	m := metrics.New()
	tokens := token.New(clubRepo, cfg.TokenRotationInterval, cfg.TokenSalt, l)
	svc := service.New(repos, tokens, m, l, service.Options{
		Concurrency:   cfg.ScoringConcurrency,
		AnomalySweep:  cfg.AnomalySweepEnabled,
		RetentionDays: cfg.RetentionDays,
	})

	// Start batch scheduler
	if cfg.SchedulerEnabled {
		loc, err := time.LoadLocation(cfg.SchedulerTimezone)
		if err != nil {
			l.Fatalf("Failed to load scheduler timezone: %v", err)
		}
		go func() {
			if err := svc.StartScheduler(ctx, loc); err != nil {
				l.Errorf("Scheduler error: %v", err)
			}
		}()
	} else {
		l.Warn("Scheduler disabled; jobs run only through the admin API")
	}

	// Start HTTP servers
	apiServer := api.NewServer(svc, l)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serve := func(name string, srv *http.Server) {
		l.Infof("%s server listening on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("%s server error: %v", name, err)
			cancel()
		}
	}
	go serve("HTTP", httpServer)
	go serve("Metrics", metricsServer)

	l.Info("leagued started successfully")

	<-ctx.Done()
	l.Info("Received shutdown signal...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	l.Info("Shutting down HTTP servers...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("Metrics server shutdown error: %v", err)
	}

	l.Info("leagued stopped")
}
