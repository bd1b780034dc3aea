// Package league ranks clubs within their tier and decides promotions and
// demotions. It is pure; the service layer persists snapshots and applies
// the resulting tier changes.
package league

import (
	"bytes"
	"sort"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/google/uuid"
)

// Entry is one club's score for the period being ranked
type Entry struct {
	ClubID    uuid.UUID
	Tier      models.LeagueTier
	Points    int
	Breakdown models.ClubScoreBreakdown
}

// Placement is an entry with its rank and movement flags
type Placement struct {
	Entry
	Rank      int
	Promotion bool
	Demotion  bool
}

// Sort orders entries by points descending, then club ID ascending
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return bytes.Compare(entries[i].ClubID[:], entries[j].ClubID[:]) < 0
	})
}

// RankTier ranks one tier's entries and marks the top promotionCount for
// promotion and the bottom demotionCount for demotion. GOLD is never
// promoted and BRONZE never demoted. When the two ranges overlap the
// promotion flag wins.
func RankTier(tier models.LeagueTier, entries []Entry, promotionCount, demotionCount int) []Placement {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)
	Sort(ranked)

	n := len(ranked)
	out := make([]Placement, n)
	for i, e := range ranked {
		e.Tier = tier
		p := Placement{Entry: e, Rank: i + 1}
		if i < promotionCount && !tier.IsTop() {
			p.Promotion = true
		}
		if !p.Promotion && i >= n-demotionCount && !tier.IsBottom() {
			p.Demotion = true
		}
		out[i] = p
	}
	return out
}

// RankAll groups entries by tier and ranks each group. Entries with an
// unknown tier are dropped.
func RankAll(entries []Entry, promotionCount, demotionCount int) []Placement {
	byTier := make(map[models.LeagueTier][]Entry, len(models.Tiers))
	for _, e := range entries {
		if !e.Tier.Valid() {
			continue
		}
		byTier[e.Tier] = append(byTier[e.Tier], e)
	}

	var out []Placement
	for i := len(models.Tiers) - 1; i >= 0; i-- {
		tier := models.Tiers[i]
		if len(byTier[tier]) == 0 {
			continue
		}
		out = append(out, RankTier(tier, byTier[tier], promotionCount, demotionCount)...)
	}
	return out
}

// NextTier returns the tier a standing moves the club to. ok is false when
// the club stays put, either unflagged or already at the boundary.
func NextTier(s models.LeagueStanding) (next models.LeagueTier, ok bool) {
	switch {
	case s.Promotion:
		return s.Tier.Up()
	case s.Demotion:
		return s.Tier.Down()
	default:
		return s.Tier, false
	}
}

// Plan lists the tier changes a period's standings call for
func Plan(standings []models.LeagueStanding) []models.TierChange {
	var changes []models.TierChange
	for _, s := range standings {
		next, ok := NextTier(s)
		if !ok {
			continue
		}
		changes = append(changes, models.TierChange{ClubID: s.ClubID, From: s.Tier, To: next})
	}
	return changes
}
