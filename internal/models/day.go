package models

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format for calendar days
const DateLayout = "2006-01-02"

// DayOf truncates t to midnight UTC of its calendar day
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string as a UTC day
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// PeriodType is the window standings are snapshotted over
type PeriodType string

const (
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// Valid reports whether p is a known period type
func (p PeriodType) Valid() bool {
	return p == PeriodWeekly || p == PeriodMonthly
}

// WeekStart returns the Monday of the week containing t
func WeekStart(t time.Time) time.Time {
	d := DayOf(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// MonthStart returns the first day of the month containing t
func MonthStart(t time.Time) time.Time {
	d := DayOf(t)
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Bounds returns the first and last day (inclusive) of the period containing t
func (p PeriodType) Bounds(t time.Time) (start, end time.Time) {
	switch p {
	case PeriodMonthly:
		start = MonthStart(t)
		return start, start.AddDate(0, 1, -1)
	default:
		start = WeekStart(t)
		return start, start.AddDate(0, 0, 6)
	}
}

// Previous returns the bounds of the period before the one containing t
func (p PeriodType) Previous(t time.Time) (start, end time.Time) {
	start, _ = p.Bounds(t)
	return p.Bounds(start.AddDate(0, 0, -1))
}
