package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/Kerhoff/clubleague/internal/service"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MemberHeader carries the authenticated member on member-facing calls
const MemberHeader = "X-Member-ID"

// Server provides the HTTP API.
type Server struct {
	svc    *service.Service
	logger *logrus.Logger
	mux    *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// API – Check-ins and activity
	s.mux.HandleFunc("POST /api/checkins", s.handleCheckin)
	s.mux.HandleFunc("POST /api/activity/sync", s.handleActivitySync)
	s.mux.HandleFunc("POST /api/members/{id}/consent", s.handleConsent)
	s.mux.HandleFunc("GET /api/clubs/{id}/token", s.handleClubToken)

	// API – Scores and standings
	s.mux.HandleFunc("GET /api/members/{id}/scores", s.handleMemberScores)
	s.mux.HandleFunc("GET /api/seasons/{id}/standings", s.handleStandings)
	s.mux.HandleFunc("GET /api/seasons/{id}/clubs/{club_id}/standing", s.handleClubStanding)

	// Admin – manual job triggers
	s.mux.HandleFunc("POST /api/admin/jobs/daily-scores", s.handleRunDailyScores)
	s.mux.HandleFunc("POST /api/admin/jobs/standings", s.handleRunStandings)
	s.mux.HandleFunc("POST /api/admin/jobs/lifecycle", s.handleRunLifecycle)
	s.mux.HandleFunc("POST /api/admin/jobs/anomaly-sweep", s.handleRunAnomalySweep)
	s.mux.HandleFunc("POST /api/admin/seasons/{id}/cancel", s.handleCancelSeason)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string           `json:"error"`
	Kind  models.ErrorKind `json:"kind,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

// respondServiceError maps a service error to its status and kind. Internal
// failures are logged and their detail is not returned.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, message string) {
	var qe *service.QueryError
	if errors.As(err, &qe) {
		s.respondError(w, http.StatusBadRequest, qe.Error())
		return
	}

	kind := models.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error(message)
		s.respondJSON(w, status, errorResponse{Error: message, Kind: kind})
		return
	}
	s.respondJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindTokenExpired:
		return http.StatusGone
	case models.KindTokenInvalid:
		return http.StatusUnauthorized
	case models.KindAlreadyCheckedIn:
		return http.StatusConflict
	case models.KindClubNotFound, models.KindSeasonNotFound, models.KindMemberNotFound:
		return http.StatusNotFound
	case models.KindConsentRequired:
		return http.StatusForbidden
	case models.KindRulesetMissing, models.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathUUID extracts a UUID path value.  It writes an error response and
// returns false when the value is missing or malformed.
func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

// requireMemberID reads the calling member from MemberHeader.
func (s *Server) requireMemberID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(MemberHeader)
	if raw == "" {
		s.respondError(w, http.StatusUnauthorized, MemberHeader+" header is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, MemberHeader+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryDay parses an optional YYYY-MM-DD query parameter. The zero time is
// returned when the parameter is absent.
func (s *Server) queryDay(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	d, err := models.ParseDay(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s must be YYYY-MM-DD", name))
		return time.Time{}, false
	}
	return d, true
}

func (s *Server) queryPeriod(w http.ResponseWriter, r *http.Request) (models.PeriodType, bool) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return models.PeriodWeekly, true
	}
	pt := models.PeriodType(raw)
	if !pt.Valid() {
		s.respondError(w, http.StatusBadRequest, "period must be weekly or monthly")
		return "", false
	}
	return pt, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Check-ins
// ---------------------------------------------------------------------------

type checkinRequest struct {
	ClubID     uuid.UUID       `json:"club_id"`
	Token      string          `json:"token"`
	IssuedAt   int64           `json:"issued_at"`
	DeviceInfo json.RawMessage `json:"device_info"`
}

type checkinResponse struct {
	CheckinID uuid.UUID `json:"checkin_id"`
	Timestamp time.Time `json:"timestamp"`
	ClubID    uuid.UUID `json:"club_id"`
}

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	memberID, ok := s.requireMemberID(w, r)
	if !ok {
		return
	}

	var req checkinRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if req.ClubID == uuid.Nil || req.Token == "" || req.IssuedAt == 0 {
		s.respondError(w, http.StatusBadRequest, "club_id, token and issued_at are required")
		return
	}

	checkin, err := s.svc.CheckIn(r.Context(), service.CheckinRequest{
		MemberID:   memberID,
		ClubID:     req.ClubID,
		Token:      req.Token,
		IssuedAt:   req.IssuedAt,
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		s.respondServiceError(w, err, "failed to record check-in")
		return
	}

	s.respondJSON(w, http.StatusCreated, checkinResponse{
		CheckinID: checkin.ID,
		Timestamp: checkin.Timestamp,
		ClubID:    checkin.ClubID,
	})
}

func (s *Server) handleClubToken(w http.ResponseWriter, r *http.Request) {
	clubID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	tok, err := s.svc.IssueToken(r.Context(), clubID)
	if err != nil {
		s.respondServiceError(w, err, "failed to issue token")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.respondJSON(w, http.StatusOK, tok)
}

// ---------------------------------------------------------------------------
// Activity
// ---------------------------------------------------------------------------

type activitySyncRequest struct {
	Date           string          `json:"date"`
	ActiveCalories int             `json:"active_calories"`
	Steps          int             `json:"steps"`
	WorkoutMinutes int             `json:"workout_minutes"`
	Source         string          `json:"source"`
	DeviceInfo     json.RawMessage `json:"device_info"`
}

func (s *Server) handleActivitySync(w http.ResponseWriter, r *http.Request) {
	memberID, ok := s.requireMemberID(w, r)
	if !ok {
		return
	}

	var req activitySyncRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	day, err := models.ParseDay(req.Date)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if req.ActiveCalories < 0 || req.Steps < 0 || req.WorkoutMinutes < 0 {
		s.respondError(w, http.StatusBadRequest, "activity values must not be negative")
		return
	}
	source := models.ActivitySource(req.Source)
	if source != "" && !source.Valid() {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown source %q", req.Source))
		return
	}

	res, err := s.svc.SyncActivity(r.Context(), service.ActivitySync{
		MemberID:       memberID,
		Date:           day,
		ActiveCalories: req.ActiveCalories,
		Steps:          req.Steps,
		WorkoutMinutes: req.WorkoutMinutes,
		Source:         source,
		DeviceInfo:     req.DeviceInfo,
	})
	if err != nil {
		s.respondServiceError(w, err, "failed to sync activity")
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

type consentRequest struct {
	Granted *bool `json:"granted"`
}

func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	memberID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req consentRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Granted == nil {
		s.respondError(w, http.StatusBadRequest, "granted is required")
		return
	}

	if err := s.svc.SetConsent(r.Context(), memberID, *req.Granted); err != nil {
		s.respondServiceError(w, err, "failed to update consent")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"member_id": memberID, "activity_consent": *req.Granted})
}

// ---------------------------------------------------------------------------
// Scores and standings
// ---------------------------------------------------------------------------

func (s *Server) handleMemberScores(w http.ResponseWriter, r *http.Request) {
	memberID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	start, ok := s.queryDay(w, r, "start")
	if !ok {
		return
	}
	end, ok := s.queryDay(w, r, "end")
	if !ok {
		return
	}

	scores, err := s.svc.MemberScores(r.Context(), memberID, service.ScoreQuery{
		Range: service.ScoreRange(r.URL.Query().Get("range")),
		Start: start,
		End:   end,
	})
	if err != nil {
		s.respondServiceError(w, err, "failed to get member scores")
		return
	}
	s.respondJSON(w, http.StatusOK, scores)
}

type standingsResponse struct {
	SeasonID    uuid.UUID               `json:"season_id"`
	PeriodType  models.PeriodType       `json:"period_type"`
	PeriodStart *string                 `json:"period_start"`
	Standings   []models.LeagueStanding `json:"standings"`
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	seasonID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	periodType, ok := s.queryPeriod(w, r)
	if !ok {
		return
	}
	periodStart, ok := s.queryDay(w, r, "period_start")
	if !ok {
		return
	}

	filters := repository.StandingFilters{PeriodType: periodType, PeriodStart: periodStart}
	if raw := r.URL.Query().Get("tier"); raw != "" {
		tier, err := models.ParseTier(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filters.Tier = &tier
	}

	standings, period, err := s.svc.GetStandings(r.Context(), seasonID, filters)
	if err != nil {
		s.respondServiceError(w, err, "failed to get standings")
		return
	}

	resp := standingsResponse{SeasonID: seasonID, PeriodType: periodType, Standings: standings}
	if period != nil {
		p := period.Format(models.DateLayout)
		resp.PeriodStart = &p
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClubStanding(w http.ResponseWriter, r *http.Request) {
	seasonID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	clubID, ok := s.pathUUID(w, r, "club_id")
	if !ok {
		return
	}

	standing, err := s.svc.GetClubStanding(r.Context(), seasonID, clubID)
	if err != nil {
		s.respondServiceError(w, err, "failed to get club standing")
		return
	}
	s.respondJSON(w, http.StatusOK, standing)
}
