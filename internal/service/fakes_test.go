package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Kerhoff/clubleague/internal/metrics"
	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/Kerhoff/clubleague/internal/repository"
	"github.com/Kerhoff/clubleague/internal/scoring"
	"github.com/Kerhoff/clubleague/internal/token"
	"github.com/Kerhoff/clubleague/pkg/logger"
	"github.com/google/uuid"
)

var errBoom = errors.New("boom")

type dayKey struct {
	id  uuid.UUID
	day time.Time
}

type periodKey struct {
	season uuid.UUID
	club   uuid.UUID
	period models.PeriodType
	start  time.Time
}

// memStore backs every repository fake with one set of maps
type memStore struct {
	mu          sync.Mutex
	members     map[uuid.UUID]*models.Member
	clubs       map[uuid.UUID]*models.Club
	checkins    []*models.Checkin
	activity    map[dayKey]*models.ActivitySummary
	scores      map[dayKey]models.MemberScoreDaily
	clubScores  map[periodKey]*models.ClubPeriodScore
	rulesets    []*models.Ruleset
	seasons     map[uuid.UUID]*models.Season
	seasonClubs map[uuid.UUID][]*models.SeasonClub
	standings   map[periodKey]models.LeagueStanding
	audit       []*models.AuditEntry

	failHistory map[uuid.UUID]bool
	failClub    map[uuid.UUID]bool
	upserts     int
}

func newMemStore() *memStore {
	return &memStore{
		members:     make(map[uuid.UUID]*models.Member),
		clubs:       make(map[uuid.UUID]*models.Club),
		activity:    make(map[dayKey]*models.ActivitySummary),
		scores:      make(map[dayKey]models.MemberScoreDaily),
		clubScores:  make(map[periodKey]*models.ClubPeriodScore),
		seasons:     make(map[uuid.UUID]*models.Season),
		seasonClubs: make(map[uuid.UUID][]*models.SeasonClub),
		standings:   make(map[periodKey]models.LeagueStanding),
		failHistory: make(map[uuid.UUID]bool),
		failClub:    make(map[uuid.UUID]bool),
	}
}

func (m *memStore) repositories() Repositories {
	return Repositories{
		Members:   memberFake{m},
		Clubs:     clubFake{m},
		Checkins:  checkinFake{m},
		Activity:  activityFake{m},
		Scores:    scoreFake{m},
		Rulesets:  rulesetFake{m},
		Seasons:   seasonFake{m},
		Standings: standingFake{m},
		Audit:     auditFake{m},
	}
}

func (m *memStore) addClub(name string) uuid.UUID {
	id := uuid.New()
	m.clubs[id] = &models.Club{ID: id, Name: name, Status: models.StatusActive}
	return id
}

func (m *memStore) addMember(home *uuid.UUID, consent bool) uuid.UUID {
	id := uuid.New()
	m.members[id] = &models.Member{ID: id, ClubID: home, ActivityConsent: consent, Status: models.StatusActive}
	return id
}

func (m *memStore) addRuleset(p models.RulesetParams) *models.Ruleset {
	rs := &models.Ruleset{ID: uuid.New(), Name: "rules", Params: p, CreatedAt: time.Now()}
	m.rulesets = append(m.rulesets, rs)
	return rs
}

func (m *memStore) addSeason(status models.SeasonStatus, start, end time.Time, clubs map[uuid.UUID]models.LeagueTier) *models.Season {
	sn := &models.Season{ID: uuid.New(), Name: "season", Status: status, StartDate: start, EndDate: end}
	m.seasons[sn.ID] = sn
	for id, tier := range clubs {
		m.seasonClubs[sn.ID] = append(m.seasonClubs[sn.ID], &models.SeasonClub{SeasonID: sn.ID, ClubID: id, LeagueTier: tier})
	}
	return sn
}

func (m *memStore) tierOf(seasonID, clubID uuid.UUID) models.LeagueTier {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sc := range m.seasonClubs[seasonID] {
		if sc.ClubID == clubID {
			return sc.LeagueTier
		}
	}
	return ""
}

func (m *memStore) setScore(memberID uuid.UUID, day time.Time, total int) {
	d := models.DayOf(day)
	m.scores[dayKey{memberID, d}] = models.MemberScoreDaily{MemberID: memberID, Date: d, TotalPoints: total}
}

func (m *memStore) addCheckin(memberID, clubID uuid.UUID, at time.Time) {
	m.checkins = append(m.checkins, &models.Checkin{
		ID: uuid.New(), MemberID: memberID, ClubID: clubID, Timestamp: at, CheckinDate: models.DayOf(at),
	})
}

var testNow = time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

func newTestService(store *memStore) *Service {
	log := logger.Discard()
	tokens := token.New(clubFake{store}, 5*time.Minute, "salt", log)
	svc := New(store.repositories(), tokens, metrics.New(), log, Options{Concurrency: 4, AnomalySweep: true, RetentionDays: 90})
	svc.now = func() time.Time { return testNow }
	return svc
}

type memberFake struct{ *memStore }

func (f memberFake) GetByID(_ context.Context, id uuid.UUID) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f memberFake) ListActiveIDs(context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, m := range f.members {
		if m.Status == models.StatusActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids, nil
}

func (f memberFake) SetHomeClub(_ context.Context, memberID, clubID uuid.UUID, at time.Time) (bool, *uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberID]
	if !ok || m.HomeClubIs(clubID) {
		return false, nil, nil
	}
	prev := m.ClubID
	id := clubID
	m.ClubID = &id
	m.UpdatedAt = at
	return true, prev, nil
}

func (f memberFake) SetActivityConsent(_ context.Context, memberID uuid.UUID, granted bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberID]
	if !ok {
		return models.ErrMemberNotFound
	}
	m.ActivityConsent = granted
	m.ActivityConsentAt = nil
	if granted {
		m.ActivityConsentAt = &at
	}
	return nil
}

type clubFake struct{ *memStore }

func (f clubFake) GetByID(_ context.Context, id uuid.UUID) (*models.Club, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clubs[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f clubFake) GetTokenSecret(_ context.Context, id uuid.UUID) (string, *time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clubs[id]
	if !ok {
		return "", nil, models.ErrClubNotFound
	}
	return c.TokenSecret, c.TokenLastRotation, nil
}

func (f clubFake) RotateTokenSecret(_ context.Context, id uuid.UUID, secret string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clubs[id]
	if !ok {
		return models.ErrClubNotFound
	}
	c.TokenSecret = secret
	c.TokenLastRotation = &at
	return nil
}

type checkinFake struct{ *memStore }

func (f checkinFake) GetForMemberOnDay(_ context.Context, memberID uuid.UUID, day time.Time) (*models.Checkin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.checkins {
		if c.MemberID == memberID && c.CheckinDate.Equal(models.DayOf(day)) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f checkinFake) Create(_ context.Context, checkin *models.Checkin) (*models.Checkin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	checkin.CheckinDate = models.DayOf(checkin.Timestamp)
	for _, c := range f.checkins {
		if c.MemberID == checkin.MemberID && c.CheckinDate.Equal(checkin.CheckinDate) {
			return nil, models.ErrAlreadyCheckedIn
		}
	}
	cp := *checkin
	f.checkins = append(f.checkins, &cp)
	return checkin, nil
}

type activityFake struct{ *memStore }

func (f activityFake) Get(_ context.Context, memberID uuid.UUID, day time.Time) (*models.ActivitySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activity[dayKey{memberID, models.DayOf(day)}]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f activityFake) Upsert(_ context.Context, summary *models.ActivitySummary) (*models.ActivitySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dayKey{summary.MemberID, models.DayOf(summary.Date)}
	cp := *summary
	if old, ok := f.activity[key]; ok {
		cp.AnomalyFlag = old.AnomalyFlag || summary.AnomalyFlag
		if old.AnomalyReason != nil {
			cp.AnomalyReason = old.AnomalyReason
		}
	}
	f.activity[key] = &cp
	out := cp
	return &out, nil
}

func (f activityFake) ListUnflaggedOn(_ context.Context, day time.Time) ([]*models.ActivitySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ActivitySummary
	for k, a := range f.activity {
		if k.day.Equal(models.DayOf(day)) && !a.AnomalyFlag {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f activityFake) Flag(_ context.Context, memberID uuid.UUID, day time.Time, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activity[dayKey{memberID, models.DayOf(day)}]
	if !ok || a.AnomalyFlag {
		return false, nil
	}
	a.AnomalyFlag = true
	a.AnomalyReason = &reason
	return true, nil
}

type scoreFake struct{ *memStore }

func (f scoreFake) History(_ context.Context, memberID uuid.UUID, from, to time.Time) (scoring.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHistory[memberID] {
		return nil, errBoom
	}
	h := make(scoring.History)
	inRange := func(d time.Time) bool { return !d.Before(from) && !d.After(to) }
	for _, c := range f.checkins {
		if c.MemberID == memberID && inRange(c.CheckinDate) {
			e := h[c.CheckinDate]
			e.HasCheckin = true
			h[c.CheckinDate] = e
		}
	}
	for k, a := range f.activity {
		if k.id == memberID && inRange(k.day) {
			e := h[k.day]
			e.ActiveCalories = a.ActiveCalories
			e.Flagged = a.AnomalyFlag
			h[k.day] = e
		}
	}
	return h, nil
}

func (f scoreFake) UpsertMemberDaily(_ context.Context, score *models.MemberScoreDaily) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.scores[dayKey{score.MemberID, models.DayOf(score.Date)}] = *score
	return nil
}

func (f scoreFake) ListMemberDaily(_ context.Context, memberID uuid.UUID, from, to time.Time) ([]models.MemberScoreDaily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MemberScoreDaily
	for k, s := range f.scores {
		if k.id == memberID && !k.day.Before(from) && !k.day.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f scoreFake) LatestMemberDaily(_ context.Context, memberID uuid.UUID) (*models.MemberScoreDaily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.MemberScoreDaily
	for k, s := range f.scores {
		if k.id == memberID && (latest == nil || s.Date.After(latest.Date)) {
			cp := s
			latest = &cp
		}
	}
	return latest, nil
}

func (f scoreFake) HomeMemberTotals(_ context.Context, clubID uuid.UUID, from, to time.Time) ([]models.MemberTotal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClub[clubID] {
		return nil, errBoom
	}
	sums := make(map[uuid.UUID]int)
	for k, s := range f.scores {
		m, ok := f.members[k.id]
		if !ok || !m.HomeClubIs(clubID) || k.day.Before(from) || k.day.After(to) {
			continue
		}
		sums[k.id] += s.TotalPoints
	}
	return totalsOf(sums), nil
}

func (f scoreFake) VisitorMemberTotals(_ context.Context, clubID uuid.UUID, from, to time.Time) ([]models.MemberTotal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sums := make(map[uuid.UUID]int)
	for _, c := range f.checkins {
		if c.ClubID != clubID || c.CheckinDate.Before(from) || c.CheckinDate.After(to) {
			continue
		}
		if s, ok := f.scores[dayKey{c.MemberID, c.CheckinDate}]; ok {
			sums[c.MemberID] += s.TotalPoints
		}
	}
	return totalsOf(sums), nil
}

func totalsOf(sums map[uuid.UUID]int) []models.MemberTotal {
	out := make([]models.MemberTotal, 0, len(sums))
	for id, p := range sums {
		out = append(out, models.MemberTotal{MemberID: id, Points: p})
	}
	return out
}

func (f scoreFake) UpsertClubPeriod(_ context.Context, score *models.ClubPeriodScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *score
	f.clubScores[periodKey{score.SeasonID, score.ClubID, score.PeriodType, score.PeriodStart}] = &cp
	return nil
}

type rulesetFake struct{ *memStore }

func (f rulesetFake) GetByID(_ context.Context, id uuid.UUID) (*models.Ruleset, error) {
	for _, rs := range f.rulesets {
		if rs.ID == id {
			return rs, nil
		}
	}
	return nil, nil
}

func (f rulesetFake) Latest(context.Context) (*models.Ruleset, error) {
	if len(f.rulesets) == 0 {
		return nil, nil
	}
	return f.rulesets[len(f.rulesets)-1], nil
}

type seasonFake struct{ *memStore }

func (f seasonFake) GetByID(_ context.Context, id uuid.UUID) (*models.Season, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sn, ok := f.seasons[id]
	if !ok {
		return nil, nil
	}
	cp := *sn
	return &cp, nil
}

func (f seasonFake) ListByStatus(_ context.Context, statuses ...models.SeasonStatus) ([]*models.Season, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Season
	for _, sn := range f.seasons {
		for _, st := range statuses {
			if sn.Status == st {
				cp := *sn
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (f seasonFake) TransitionStatus(_ context.Context, id uuid.UUID, from, to models.SeasonStatus, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sn, ok := f.seasons[id]
	if !ok || sn.Status != from {
		return false, nil
	}
	sn.Status = to
	sn.UpdatedAt = at
	return true, nil
}

func (f seasonFake) ListClubs(_ context.Context, seasonID uuid.UUID) ([]models.SeasonClub, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SeasonClub
	for _, sc := range f.seasonClubs[seasonID] {
		out = append(out, *sc)
	}
	return out, nil
}

type standingFake struct{ *memStore }

func (f standingFake) Upsert(_ context.Context, standings []models.LeagueStanding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range standings {
		f.standings[periodKey{s.SeasonID, s.ClubID, s.PeriodType, s.PeriodStart}] = s
	}
	return nil
}

func (f standingFake) List(_ context.Context, seasonID uuid.UUID, filters repository.StandingFilters) ([]models.LeagueStanding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LeagueStanding
	for k, s := range f.standings {
		if k.season != seasonID || k.period != filters.PeriodType || !k.start.Equal(filters.PeriodStart) {
			continue
		}
		if filters.Tier != nil && s.Tier != *filters.Tier {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return tierOrder(out[i].Tier) > tierOrder(out[j].Tier)
		}
		return out[i].Rank < out[j].Rank
	})
	return out, nil
}

func tierOrder(t models.LeagueTier) int {
	for i, tier := range models.Tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

func (f standingFake) LatestPeriod(_ context.Context, seasonID uuid.UUID, periodType models.PeriodType) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *time.Time
	for k := range f.standings {
		if k.season == seasonID && k.period == periodType && (latest == nil || k.start.After(*latest)) {
			start := k.start
			latest = &start
		}
	}
	return latest, nil
}

func (f standingFake) GetForClub(_ context.Context, seasonID, clubID uuid.UUID, periodType models.PeriodType, periodStart time.Time) (*models.LeagueStanding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.standings[periodKey{seasonID, clubID, periodType, periodStart}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f standingFake) ApplyTransition(_ context.Context, seasonID uuid.UUID, periodStart time.Time, changes []models.TierChange, at time.Time) ([]models.TierChange, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sn := f.seasons[seasonID]
	if sn.LastTransitionPeriod != nil && !periodStart.After(*sn.LastTransitionPeriod) {
		return nil, true, nil
	}
	start := periodStart
	sn.LastTransitionPeriod = &start

	var applied []models.TierChange
	for _, c := range changes {
		for _, sc := range f.seasonClubs[seasonID] {
			if sc.ClubID == c.ClubID && sc.LeagueTier == c.From {
				sc.LeagueTier = c.To
				applied = append(applied, c)
			}
		}
	}
	return applied, false, nil
}

type auditFake struct{ *memStore }

func (f auditFake) Record(_ context.Context, entry *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *entry
	f.audit = append(f.audit, &cp)
	return nil
}

func (f auditFake) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.AuditEntry
	var deleted int64
	for _, e := range f.audit {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.audit = kept
	return deleted, nil
}
