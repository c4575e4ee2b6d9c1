package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

// Preset is a named date filter.
type Preset string

const (
	All    Preset = "all"
	Last7  Preset = "7d"
	Last30 Preset = "30d"
	Last90 Preset = "90d"
	Custom Preset = "custom"
)

// Window filters rows by date. Start and End are inclusive calendar dates and
// only apply to Custom; a zero bound is open.
type Window struct {
	Preset Preset    `json:"preset"`
	Start  time.Time `json:"start,omitempty"`
	End    time.Time `json:"end,omitempty"`
}

// ParseWindow builds a Window from a preset name and optional YYYY-MM-DD
// bounds. Bounds imply Custom.
func ParseWindow(preset, start, end string) (Window, error) {
	var w Window
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "", "all":
		w.Preset = All
	case "7d", "last7":
		w.Preset = Last7
	case "30d", "last30":
		w.Preset = Last30
	case "90d", "last90":
		w.Preset = Last90
	case "custom":
		w.Preset = Custom
	default:
		return Window{}, fmt.Errorf("unknown window %q (want all, 7d, 30d, 90d or custom)", preset)
	}
	for _, b := range []struct {
		raw string
		dst *time.Time
	}{{start, &w.Start}, {end, &w.End}} {
		if strings.TrimSpace(b.raw) == "" {
			continue
		}
		ts, ok := table.ParseTime(b.raw)
		if !ok {
			return Window{}, fmt.Errorf("invalid date %q", b.raw)
		}
		*b.dst = table.Day(ts)
		w.Preset = Custom
	}
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		return Window{}, fmt.Errorf("window end %s is before start %s", w.End.Format("2006-01-02"), w.Start.Format("2006-01-02"))
	}
	return w, nil
}

// Key is a stable string form used in cache keys.
func (w Window) Key() string {
	p := w.Preset
	if p == "" {
		p = All
	}
	if p != Custom {
		return string(p)
	}
	return fmt.Sprintf("custom:%s:%s", dateKey(w.Start), dateKey(w.End))
}

func dateKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func (p Preset) days() int {
	switch p {
	case Last7:
		return 7
	case Last30:
		return 30
	case Last90:
		return 90
	}
	return 0
}

// ApplyWindow returns the rows of t inside w. Relative presets end at the
// latest parsed date in the table. With All the table is returned as is;
// otherwise rows with unparseable dates are dropped and a new table is built.
func ApplyWindow(t *table.Table, dateCol string, w Window) (*table.Table, error) {
	if w.Preset == "" || w.Preset == All || t.Len() == 0 {
		return t, nil
	}
	di, err := resolve(t, roleDate, dateCol)
	if err != nil {
		return nil, err
	}
	dates, dc := times(t, di)
	var lo, hi time.Time
	if n := w.Preset.days(); n > 0 {
		for i, ok := range dc.ok {
			if ok && dates[i].After(hi) {
				hi = dates[i]
			}
		}
		hi = table.Day(hi)
		lo = hi.AddDate(0, 0, -(n - 1))
	} else {
		lo, hi = w.Start, w.End
	}
	out := t.Filter(func(i int) bool {
		if !dc.ok[i] {
			return false
		}
		d := table.Day(dates[i])
		if !lo.IsZero() && d.Before(lo) {
			return false
		}
		if !hi.IsZero() && d.After(hi) {
			return false
		}
		return true
	})
	return out, joinQuality(dc.quality(dateCol, roleDate))
}
