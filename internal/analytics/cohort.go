package analytics

import (
	"sort"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

// Cohort is the retention row for addresses first seen in the same period.
// Active and Retention are indexed by period offset and stop at the last
// observed period; later offsets are absent rather than zero.
type Cohort struct {
	Start     time.Time `json:"start"`
	Size      int       `json:"size"`
	Active    []int     `json:"active"`
	Retention []float64 `json:"retention"`
}

// CohortMatrix holds cohorts in ascending order of start period.
type CohortMatrix struct {
	Period       Period   `json:"period"`
	Cohorts      []Cohort `json:"cohorts"`
	MaxOffset    int      `json:"max_offset"`
	ExcludedRows int      `json:"excluded_rows"`

	Warning *EmptyResultWarning `json:"warning,omitempty"`
}

// BuildCohortRetention assigns each address to the period of its first
// transaction and measures how many of each cohort are active at every later
// offset. Rows with a missing or unparseable date, or an empty address, are
// excluded from cohort membership.
func BuildCohortRetention(t *table.Table, dateCol, addressCol string, period Period) (CohortMatrix, error) {
	if period == "" {
		period = Week
	}
	m := CohortMatrix{Period: period, Cohorts: []Cohort{}}
	if t.Len() == 0 {
		m.Warning = emptyWarning("cohorts", "table has no rows")
		return m, nil
	}
	di, err := resolve(t, roleDate, dateCol)
	if err != nil {
		return CohortMatrix{}, err
	}
	ai, err := resolve(t, roleAddress, addressCol)
	if err != nil {
		return CohortMatrix{}, err
	}
	dates, dc := times(t, di)
	addrs, _ := addresses(t, ai)

	first := make(map[string]time.Time)
	activity := make(map[string]map[time.Time]struct{})
	var last time.Time
	for i := 0; i < t.Len(); i++ {
		if !dc.ok[i] || addrs[i] == "" {
			m.ExcludedRows++
			continue
		}
		p := period.Start(dates[i])
		a := addrs[i]
		if f, ok := first[a]; !ok || p.Before(f) {
			first[a] = p
		}
		if activity[a] == nil {
			activity[a] = make(map[time.Time]struct{})
		}
		activity[a][p] = struct{}{}
		if p.After(last) {
			last = p
		}
	}
	qerr := joinQuality(dc.quality(dateCol, roleDate))
	if len(first) == 0 {
		m.Warning = emptyWarning("cohorts", "no rows with a parseable date and an address")
		return m, qerr
	}

	members := make(map[time.Time][]string)
	for a, p := range first {
		members[p] = append(members[p], a)
	}
	starts := make([]time.Time, 0, len(members))
	for p := range members {
		starts = append(starts, p)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	for _, start := range starts {
		addrsIn := members[start]
		span := period.Offset(start, last) + 1
		c := Cohort{Start: start, Size: len(addrsIn), Active: make([]int, span), Retention: make([]float64, span)}
		for _, a := range addrsIn {
			for p := range activity[a] {
				c.Active[period.Offset(start, p)]++
			}
		}
		for k, n := range c.Active {
			c.Retention[k] = float64(n) / float64(c.Size)
		}
		if span-1 > m.MaxOffset {
			m.MaxOffset = span - 1
		}
		m.Cohorts = append(m.Cohorts, c)
	}
	return m, qerr
}
