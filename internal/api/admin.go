package api

import (
	"net/http"
	"strconv"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/service"
	"github.com/google/uuid"
)

// Manual triggers for the scheduled jobs. A run that completes with some
// entities failed still answers 200; the report lists the failures.

type dailyScoresResponse struct {
	Date      string             `json:"date"`
	MemberRun *service.RunReport `json:"member_scores"`
	ClubRun   *service.RunReport `json:"club_scores,omitempty"`
}

func (s *Server) handleRunDailyScores(w http.ResponseWriter, r *http.Request) {
	day, ok := s.queryDay(w, r, "date")
	if !ok {
		return
	}
	if day.IsZero() {
		day = models.DayOf(s.svc.Now()).AddDate(0, 0, -1)
	}

	var rulesetID *uuid.UUID
	if raw := r.URL.Query().Get("ruleset_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "ruleset_id must be a UUID")
			return
		}
		rulesetID = &id
	}

	memberRun, err := s.svc.RecomputeDailyScores(r.Context(), day, rulesetID)
	if err != nil {
		s.respondServiceError(w, err, "failed to compute daily scores")
		return
	}
	clubRun, err := s.svc.RefreshWeekToDate(r.Context(), day)
	if err != nil {
		s.respondServiceError(w, err, "failed to refresh club scores")
		return
	}

	s.respondJSON(w, http.StatusOK, dailyScoresResponse{
		Date:      day.Format(models.DateLayout),
		MemberRun: memberRun,
		ClubRun:   clubRun,
	})
}

func (s *Server) handleRunStandings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	periodType, ok := s.queryPeriod(w, r)
	if !ok {
		return
	}

	raw := q.Get("season_id")
	if raw == "" {
		report, err := s.svc.RunPeriodStandings(r.Context(), periodType, s.svc.Now())
		if err != nil {
			s.respondServiceError(w, err, "failed to compute standings")
			return
		}
		s.respondJSON(w, http.StatusOK, report)
		return
	}

	seasonID, err := uuid.Parse(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "season_id must be a UUID")
		return
	}
	periodStart, ok := s.queryDay(w, r, "period_start")
	if !ok {
		return
	}
	if periodStart.IsZero() {
		periodStart, _ = periodType.Previous(s.svc.Now())
	}
	transition := false
	if v := q.Get("transition"); v != "" {
		transition, err = strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "transition must be a boolean")
			return
		}
	}

	run, err := s.svc.ComputeStandings(r.Context(), seasonID, periodType, periodStart, transition)
	if err != nil {
		s.respondServiceError(w, err, "failed to compute standings")
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunLifecycle(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.RunLifecycle(r.Context(), s.svc.Now())
	if err != nil {
		s.respondServiceError(w, err, "failed to advance seasons")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleRunAnomalySweep(w http.ResponseWriter, r *http.Request) {
	day, ok := s.queryDay(w, r, "date")
	if !ok {
		return
	}
	if day.IsZero() {
		day = models.DayOf(s.svc.Now()).AddDate(0, 0, -1)
	}

	report, err := s.svc.SweepAnomalies(r.Context(), day)
	if err != nil {
		s.respondServiceError(w, err, "failed to sweep anomalies")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleCancelSeason(w http.ResponseWriter, r *http.Request) {
	seasonID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	sn, err := s.svc.CancelSeason(r.Context(), seasonID)
	if err != nil {
		s.respondServiceError(w, err, "failed to cancel season")
		return
	}
	s.respondJSON(w, http.StatusOK, sn)
}
