package scoring

import (
	"strings"

	"github.com/Kerhoff/clubleague/internal/models"
)

const (
	ReasonExceedsDailyMax = "exceeds maximum daily activity"
	ReasonSpike           = "unusual spike from previous day"
)

// Thresholds are the anti-cheat limits applied to a day's activity value
type Thresholds struct {
	MaxPerDay int
	MaxSpike  int
}

// ThresholdsFrom extracts the anti-cheat limits from a ruleset
func ThresholdsFrom(p models.RulesetParams) Thresholds {
	return Thresholds{MaxPerDay: p.MaxActivityPerDay, MaxSpike: p.MaxActivitySpike}
}

// Verdict is the outcome of evaluating one member-day
type Verdict struct {
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason,omitempty"`
}

// ReasonPtr returns the reason for storage, nil when not flagged
func (v Verdict) ReasonPtr() *string {
	if !v.Flagged {
		return nil
	}
	r := v.Reason
	return &r
}

// Evaluate applies the absolute ceiling and the day-over-day spike rule.
// previous is nil when no summary exists for the day before.
func Evaluate(value int, previous *int, th Thresholds) Verdict {
	var reasons []string
	if value > th.MaxPerDay {
		reasons = append(reasons, ReasonExceedsDailyMax)
	}
	if previous != nil && value-*previous > th.MaxSpike {
		reasons = append(reasons, ReasonSpike)
	}
	if len(reasons) == 0 {
		return Verdict{}
	}
	return Verdict{Flagged: true, Reason: strings.Join(reasons, "; ")}
}
