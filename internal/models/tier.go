package models

import "fmt"

// LeagueTier is a league division. Tiers are totally ordered
// BRONZE < SILVER < GOLD.
type LeagueTier string

const (
	TierBronze LeagueTier = "BRONZE"
	TierSilver LeagueTier = "SILVER"
	TierGold   LeagueTier = "GOLD"
)

// Tiers lists every tier from lowest to highest
var Tiers = []LeagueTier{TierBronze, TierSilver, TierGold}

func (t LeagueTier) index() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is a known tier
func (t LeagueTier) Valid() bool {
	return t.index() >= 0
}

// Up returns the next tier up. ok is false at the ceiling.
func (t LeagueTier) Up() (next LeagueTier, ok bool) {
	i := t.index()
	if i < 0 || i == len(Tiers)-1 {
		return t, false
	}
	return Tiers[i+1], true
}

// Down returns the next tier down. ok is false at the floor.
func (t LeagueTier) Down() (next LeagueTier, ok bool) {
	i := t.index()
	if i <= 0 {
		return t, false
	}
	return Tiers[i-1], true
}

// IsTop reports whether no tier exists above t
func (t LeagueTier) IsTop() bool {
	_, ok := t.Up()
	return !ok
}

// IsBottom reports whether no tier exists below t
func (t LeagueTier) IsBottom() bool {
	_, ok := t.Down()
	return !ok
}

// ParseTier validates a tier name
func ParseTier(s string) (LeagueTier, error) {
	t := LeagueTier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown league tier %q", s)
	}
	return t, nil
}
