package scoring

import (
	"bytes"
	"math"
	"sort"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/google/uuid"
)

// Aggregate rolls member totals up to a club score using the mode the
// ruleset selects. home holds the club's home members, visitor holds every
// member's points on days they checked in at the club.
func Aggregate(home, visitor []models.MemberTotal, p models.RulesetParams) models.ClubScoreBreakdown {
	if p.HybridScoring {
		return AggregateHybrid(home, visitor, p.HomeWeight, p.VisitorWeight)
	}
	return AggregateTopN(home, p.TopNContributors)
}

// AggregateHybrid weights the home and visitor sums independently and rounds
// each component before adding them. A home member checking in at their own
// club counts in both sums.
func AggregateHybrid(home, visitor []models.MemberTotal, homeWeight, visitorWeight float64) models.ClubScoreBreakdown {
	b := models.ClubScoreBreakdown{
		Mode:          models.ModeHybrid,
		HomeWeight:    homeWeight,
		VisitorWeight: visitorWeight,
	}

	b.HomeRaw, b.HomeContributors = sumPositive(home)
	b.VisitorRaw, b.VisitorContributors = sumPositive(visitor)

	b.HomeWeighted = int(math.Round(float64(b.HomeRaw) * homeWeight))
	b.VisitorWeighted = int(math.Round(float64(b.VisitorRaw) * visitorWeight))
	b.Total = b.HomeWeighted + b.VisitorWeighted
	b.Contributors = distinctContributors(home, visitor)
	return b
}

// AggregateTopN sums the n highest home member totals. Ties are broken by
// member ID so the selection is deterministic.
func AggregateTopN(home []models.MemberTotal, n int) models.ClubScoreBreakdown {
	ranked := make([]models.MemberTotal, 0, len(home))
	for _, m := range home {
		if m.Points > 0 {
			ranked = append(ranked, m)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		return bytes.Compare(ranked[i].MemberID[:], ranked[j].MemberID[:]) < 0
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	b := models.ClubScoreBreakdown{Mode: models.ModeTopN, TopN: n}
	b.HomeRaw, b.HomeContributors = sumPositive(ranked)
	b.HomeWeighted = b.HomeRaw
	b.Total = b.HomeRaw
	b.Contributors = b.HomeContributors
	return b
}

func sumPositive(totals []models.MemberTotal) (sum, contributors int) {
	for _, m := range totals {
		if m.Points > 0 {
			sum += m.Points
			contributors++
		}
	}
	return sum, contributors
}

func distinctContributors(groups ...[]models.MemberTotal) int {
	seen := make(map[uuid.UUID]struct{})
	for _, g := range groups {
		for _, m := range g {
			if m.Points > 0 {
				seen[m.MemberID] = struct{}{}
			}
		}
	}
	return len(seen)
}
