package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Kerhoff/clubleague/internal/metrics"
	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/Kerhoff/clubleague/internal/service"
	"github.com/Kerhoff/clubleague/internal/token"
	"github.com/Kerhoff/clubleague/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The stubs embed the repository interfaces and override only what the
// handlers under test reach.

type stubClubs struct {
	repository.ClubRepository
	mu      sync.Mutex
	secrets map[uuid.UUID]string
	rotated map[uuid.UUID]time.Time
}

func (c *stubClubs) GetTokenSecret(_ context.Context, clubID uuid.UUID) (string, *time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	secret, ok := c.secrets[clubID]
	if !ok {
		return "", nil, models.ErrClubNotFound
	}
	if at, ok := c.rotated[clubID]; ok {
		return secret, &at, nil
	}
	return secret, nil, nil
}

func (c *stubClubs) RotateTokenSecret(_ context.Context, clubID uuid.UUID, secret string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.secrets[clubID]; !ok {
		return models.ErrClubNotFound
	}
	c.secrets[clubID] = secret
	c.rotated[clubID] = at
	return nil
}

type stubMembers struct {
	repository.MemberRepository
	members map[uuid.UUID]*models.Member
	err     error
}

func (m *stubMembers) GetByID(_ context.Context, id uuid.UUID) (*models.Member, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.members[id], nil
}

type stubCheckins struct {
	repository.CheckinRepository
	mu       sync.Mutex
	checkins []*models.Checkin
}

func (c *stubCheckins) GetForMemberOnDay(_ context.Context, memberID uuid.UUID, day time.Time) (*models.Checkin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.checkins {
		if ch.MemberID == memberID && ch.CheckinDate.Equal(day) {
			return ch, nil
		}
	}
	return nil, nil
}

func (c *stubCheckins) Create(_ context.Context, checkin *models.Checkin) (*models.Checkin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkins = append(c.checkins, checkin)
	return checkin, nil
}

type stubSeasons struct {
	repository.SeasonRepository
	seasons map[uuid.UUID]*models.Season
}

func (s *stubSeasons) GetByID(_ context.Context, id uuid.UUID) (*models.Season, error) {
	return s.seasons[id], nil
}

type fixture struct {
	server  *Server
	club    uuid.UUID
	member  uuid.UUID
	season  uuid.UUID
	members *stubMembers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	club, member, season := uuid.New(), uuid.New(), uuid.New()

	clubs := &stubClubs{
		secrets: map[uuid.UUID]string{club: ""},
		rotated: map[uuid.UUID]time.Time{},
	}
	members := &stubMembers{members: map[uuid.UUID]*models.Member{
		member: {ID: member, ClubID: &club, ActivityConsent: true, Status: models.StatusActive},
	}}
	seasons := &stubSeasons{seasons: map[uuid.UUID]*models.Season{
		season: {ID: season, Name: "Spring", Status: models.SeasonCompleted},
	}}

	log := logger.Discard()
	svc := service.New(service.Repositories{
		Members:  members,
		Clubs:    clubs,
		Checkins: &stubCheckins{},
		Seasons:  seasons,
	}, token.New(clubs, 5*time.Minute, "salt", log), metrics.New(), log, service.Options{})

	return &fixture{
		server:  NewServer(svc, log),
		club:    club,
		member:  member,
		season:  season,
		members: members,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var payload *strings.Reader
	switch b := body.(type) {
	case nil:
		payload = strings.NewReader("")
	case string:
		payload = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		payload = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, path, payload)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) issue(t *testing.T) token.Token {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/api/clubs/"+f.club.String()+"/token", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var tok token.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	return tok
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestCheckinFlow(t *testing.T) {
	f := newFixture(t)
	tok := f.issue(t)
	header := map[string]string{MemberHeader: f.member.String()}
	body := map[string]any{"club_id": f.club, "token": tok.Value, "issued_at": tok.IssuedAt}

	rec := f.do(t, http.MethodPost, "/api/checkins", body, header)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created checkinResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEqual(t, uuid.Nil, created.CheckinID)
	assert.Equal(t, f.club, created.ClubID)

	rec = f.do(t, http.MethodPost, "/api/checkins", body, header)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, models.KindAlreadyCheckedIn, decodeError(t, rec).Kind)
}

func TestCheckinTokenErrors(t *testing.T) {
	f := newFixture(t)
	tok := f.issue(t)
	header := map[string]string{MemberHeader: f.member.String()}

	tests := []struct {
		name   string
		body   map[string]any
		status int
		kind   models.ErrorKind
	}{
		{
			name:   "expired",
			body:   map[string]any{"club_id": f.club, "token": tok.Value, "issued_at": tok.IssuedAt - 3600},
			status: http.StatusGone,
			kind:   models.KindTokenExpired,
		},
		{
			name:   "wrong value",
			body:   map[string]any{"club_id": f.club, "token": "deadbeef", "issued_at": tok.IssuedAt},
			status: http.StatusUnauthorized,
			kind:   models.KindTokenInvalid,
		},
		{
			name:   "unknown club",
			body:   map[string]any{"club_id": uuid.New(), "token": tok.Value, "issued_at": tok.IssuedAt},
			status: http.StatusNotFound,
			kind:   models.KindClubNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/checkins", tt.body, header)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decodeError(t, rec).Kind)
		})
	}
}

func TestCheckinUnknownMember(t *testing.T) {
	f := newFixture(t)
	tok := f.issue(t)

	rec := f.do(t, http.MethodPost, "/api/checkins",
		map[string]any{"club_id": f.club, "token": tok.Value, "issued_at": tok.IssuedAt},
		map[string]string{MemberHeader: uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.KindMemberNotFound, decodeError(t, rec).Kind)
}

func TestCheckinRequestValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/checkins", map[string]any{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/checkins", map[string]any{}, map[string]string{MemberHeader: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	header := map[string]string{MemberHeader: f.member.String()}
	rec = f.do(t, http.MethodPost, "/api/checkins", "{", header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "invalid JSON")

	rec = f.do(t, http.MethodPost, "/api/checkins", map[string]any{"club_id": f.club}, header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivitySyncValidation(t *testing.T) {
	f := newFixture(t)
	header := map[string]string{MemberHeader: f.member.String()}

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad date", map[string]any{"date": "03/06/2024"}},
		{"negative", map[string]any{"date": "2024-03-06", "steps": -1}},
		{"unknown source", map[string]any{"date": "2024-03-06", "source": "FITBIT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/activity/sync", tt.body, header)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestConsentRequiresFlag(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/members/"+f.member.String()+"/consent", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/members/not-a-uuid/consent", map[string]any{"granted": true}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberScoresBadQuery(t *testing.T) {
	f := newFixture(t)
	base := "/api/members/" + f.member.String() + "/scores"

	for _, q := range []string{"?range=year", "?start=2024-03-01", "?start=2024-03-05&end=2024-03-01", "?end=garbage"} {
		rec := f.do(t, http.MethodGet, base+q, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestStandingsQueries(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/seasons/"+uuid.NewString()+"/standings", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.KindSeasonNotFound, decodeError(t, rec).Kind)

	base := "/api/seasons/" + f.season.String() + "/standings"
	rec = f.do(t, http.MethodGet, base+"?tier=PLATINUM", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, base+"?period=daily", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelSeason(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/admin/seasons/"+uuid.NewString()+"/cancel", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/seasons/"+f.season.String()+"/cancel", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, models.KindInvalidTransition, decodeError(t, rec).Kind)
}

func TestAdminJobValidation(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{
		"/api/admin/jobs/daily-scores?date=yesterday",
		"/api/admin/jobs/daily-scores?date=2024-03-05&ruleset_id=x",
		"/api/admin/jobs/standings?season_id=x",
		"/api/admin/jobs/standings?period=yearly",
		"/api/admin/jobs/standings?season_id=" + f.season.String() + "&transition=maybe",
		"/api/admin/jobs/anomaly-sweep?date=2024-13-01",
	} {
		rec := f.do(t, http.MethodPost, path, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	f := newFixture(t)
	f.members.err = errors.New("pq: connection refused")

	rec := f.do(t, http.MethodGet, "/api/members/"+f.member.String()+"/scores", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "failed to get member scores", resp.Error)
	assert.Equal(t, models.KindInternal, resp.Kind)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.ErrTokenExpired, http.StatusGone},
		{models.ErrTokenInvalid, http.StatusUnauthorized},
		{models.ErrAlreadyCheckedIn, http.StatusConflict},
		{models.ErrClubNotFound, http.StatusNotFound},
		{models.ErrSeasonNotFound, http.StatusNotFound},
		{models.ErrMemberNotFound, http.StatusNotFound},
		{models.ErrConsentRequired, http.StatusForbidden},
		{models.ErrRulesetMissing, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", models.ErrInvalidTransition), http.StatusUnprocessableEntity},
		{&models.ComputationError{Entity: "club", ID: uuid.New(), Err: errors.New("x")}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(models.KindOf(tt.err)), tt.err.Error())
	}
}
