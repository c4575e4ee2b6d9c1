package session

import (
	"fmt"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/KaramelBytes/chainpulse/internal/classify"
)

// entry is a memoized result and the error that came with it.
type entry struct {
	val any
	err error
}

// cache memoizes derived results for one session. It is not safe for
// concurrent use; Session serializes access.
type cache struct {
	entries map[string]entry
	hits    int
	misses  int
}

func newCache() *cache {
	return &cache{entries: make(map[string]entry)}
}

func (c *cache) reset() {
	c.entries = make(map[string]entry)
	c.hits, c.misses = 0, 0
}

// cacheKey identifies a derived result by source table, roles, operation
// and parameters.
func cacheKey(tableID string, roles classify.Assignment, op string, params ...any) string {
	return fmt.Sprintf("%s|%q|%q|%q|%s|%v", tableID, roles.Date, roles.Address, roles.Value, op, params)
}

// memo returns a clone of the cached value for key, computing it first if
// needed. Clones keep callers from mutating cached state.
func memo[T any](c *cache, key string, compute func() (T, error), clone func(T) T) (T, error) {
	if e, ok := c.entries[key]; ok {
		c.hits++
		return clone(e.val.(T)), e.err
	}
	c.misses++
	v, err := compute()
	c.entries[key] = entry{val: clone(v), err: err}
	return v, err
}

func cloneWarning(w *analytics.EmptyResultWarning) *analytics.EmptyResultWarning {
	if w == nil {
		return nil
	}
	cp := *w
	return &cp
}

func cloneKPIs(k analytics.KPISet) analytics.KPISet {
	k.Warning = cloneWarning(k.Warning)
	return k
}

func cloneTimeSeries(ts analytics.TimeSeries) analytics.TimeSeries {
	ts.Points = cloneSlice(ts.Points)
	ts.VolumeMA = cloneSlice(ts.VolumeMA)
	ts.CountMA = cloneSlice(ts.CountMA)
	ts.Cumulative = cloneSlice(ts.Cumulative)
	ts.Warning = cloneWarning(ts.Warning)
	return ts
}

func cloneRanking(r analytics.Ranking) analytics.Ranking {
	r.Entries = cloneSlice(r.Entries)
	r.Warning = cloneWarning(r.Warning)
	return r
}

func cloneCohorts(m analytics.CohortMatrix) analytics.CohortMatrix {
	if m.Cohorts != nil {
		cs := make([]analytics.Cohort, len(m.Cohorts))
		for i, c := range m.Cohorts {
			c.Active = cloneSlice(c.Active)
			c.Retention = cloneSlice(c.Retention)
			cs[i] = c
		}
		m.Cohorts = cs
	}
	m.Warning = cloneWarning(m.Warning)
	return m
}

func cloneHistogram(h analytics.Histogram) analytics.Histogram {
	h.Bins = cloneSlice(h.Bins)
	h.Warning = cloneWarning(h.Warning)
	return h
}

// cloneSlice copies s, preserving nil and empty-but-non-nil.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
