package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

// Period is a calendar bucket size.
type Period string

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
)

// ParsePeriod accepts day|week|month and their d/w/m abbreviations.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "week", "w", "weekly":
		return Week, nil
	case "day", "d", "daily":
		return Day, nil
	case "month", "m", "monthly":
		return Month, nil
	}
	return "", fmt.Errorf("unknown period %q (want day, week or month)", s)
}

// Start truncates t to the beginning of its period in UTC. Weeks start on Monday.
func (p Period) Start(t time.Time) time.Time {
	d := table.Day(t)
	switch p {
	case Week:
		wd := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -wd)
	case Month:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return d
}

// Next returns the start of the period after start.
func (p Period) Next(start time.Time) time.Time {
	switch p {
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 1)
}

// Offset counts whole periods from a to b, both period starts.
func (p Period) Offset(a, b time.Time) int {
	switch p {
	case Month:
		return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	case Week:
		return daysBetween(a, b) / 7
	}
	return daysBetween(a, b)
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
