// Package session holds one source table per user session together with its
// column roles and a cache of derived analytics.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/KaramelBytes/chainpulse/internal/classify"
	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/google/uuid"
)

// Options configures a new session.
type Options struct {
	Classify classify.Options
	// Roles overrides classifier output per non-empty field.
	Roles classify.Assignment
	// Defaults used by DefaultParams.
	TopN     int
	MAWindow int
	Period   analytics.Period
	Bins     int
}

// Params selects what a dashboard shows.
type Params struct {
	Window     analytics.Window            `json:"window"`
	TimeSeries analytics.TimeSeriesOptions `json:"timeseries"`
	TopN       int                         `json:"top_n"`
	Period     analytics.Period            `json:"period"`
	Histogram  analytics.HistogramOptions  `json:"histogram"`
}

// Session owns a source table, its role assignment and a derived-result cache.
// All methods are safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	id       string
	source   *table.Table
	opts     Options
	explain  classify.Result
	roles    classify.Assignment
	cache    *cache
	windows  map[string]windowed
	created  time.Time
	lastUsed time.Time
}

type windowed struct {
	t   *table.Table
	err error
}

// New classifies t and returns a session over it.
func New(t *table.Table, opts Options) *Session {
	now := time.Now()
	s := &Session{
		id:       uuid.NewString(),
		opts:     opts,
		cache:    newCache(),
		windows:  make(map[string]windowed),
		created:  now,
		lastUsed: now,
	}
	s.load(t, s.opts.Roles)
	return s
}

func (s *Session) load(t *table.Table, override classify.Assignment) {
	s.source = t
	s.explain = classify.Explain(t, s.opts.Classify)
	s.roles = classify.Override(s.explain.Assignment, override)
	s.invalidate()
}

func (s *Session) invalidate() {
	s.cache.reset()
	s.windows = make(map[string]windowed)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Table returns the source table.
func (s *Session) Table() *table.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Roles returns the current role assignment.
func (s *Session) Roles() classify.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roles
}

// Classification returns the classifier explanation for the source table.
func (s *Session) Classification() classify.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.explain
}

// Missing lists roles that still need a column.
func (s *Session) Missing() []classify.Role {
	return classify.Missing(s.Roles())
}

// SetRoles applies manual role overrides. Every named column must exist.
func (s *Session) SetRoles(override classify.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range classify.Roles {
		col := override.Get(r)
		if col != "" && !s.source.Has(col) {
			return &analytics.ColumnResolutionError{Role: string(r), Column: col}
		}
	}
	next := classify.Override(s.roles, override)
	if next != s.roles {
		s.roles = next
		s.invalidate()
	}
	return nil
}

// Replace swaps the source table, re-classifying it and dropping the cache.
// Manual overrides from Options still apply when their columns exist; the
// others fall back to the classifier.
func (s *Session) Replace(t *table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keep classify.Assignment
	for _, r := range classify.Roles {
		if col := s.opts.Roles.Get(r); col != "" && t.Has(col) {
			keep.Set(r, col)
		}
	}
	s.load(t, keep)
}

// LastUsed reports when the session last served a request.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// CacheStats returns cache hits and misses since the last invalidation.
func (s *Session) CacheStats() (hits, misses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.hits, s.cache.misses
}

// DefaultParams returns the dashboard parameters implied by the session options.
func (s *Session) DefaultParams() Params {
	return DefaultParams(s.opts)
}

// DefaultParams returns the dashboard parameters implied by opts.
func DefaultParams(opts Options) Params {
	p := Params{
		Window:     analytics.Window{Preset: analytics.All},
		TimeSeries: analytics.DefaultTimeSeriesOptions(),
		TopN:       opts.TopN,
		Period:     opts.Period,
		Histogram:  analytics.HistogramOptions{Bins: opts.Bins},
	}
	if p.TopN <= 0 {
		p.TopN = analytics.DefaultTopN
	}
	if opts.MAWindow > 0 {
		p.TimeSeries.Window = opts.MAWindow
	}
	if p.Period == "" {
		p.Period = analytics.Week
	}
	if p.Histogram.Bins <= 0 {
		p.Histogram.Bins = analytics.DefaultBins
	}
	return p
}

// touch must be called with mu held.
func (s *Session) touch() {
	s.lastUsed = time.Now()
}

// window returns the source filtered by w. Must be called with mu held.
func (s *Session) window(w analytics.Window) (*table.Table, error) {
	key := w.Key()
	if e, ok := s.windows[key]; ok {
		return e.t, e.err
	}
	t, err := analytics.ApplyWindow(s.source, s.roles.Date, w)
	s.windows[key] = windowed{t: t, err: err}
	return t, err
}

// run windows the source and memoizes op over the result.
func run[T any](s *Session, w analytics.Window, op string, params []any, compute func(*table.Table, classify.Assignment) (T, error), clone func(T) T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	var zero T
	t, werr := s.window(w)
	if werr != nil && !analytics.IsPartial(werr) {
		return zero, werr
	}
	roles := s.roles
	key := cacheKey(s.source.ID(), roles, op, append([]any{w.Key()}, params...)...)
	v, err := memo(s.cache, key, func() (T, error) { return compute(t, roles) }, clone)
	if werr != nil {
		err = combine(werr, err)
	}
	return v, err
}

// combine joins a window quality error with an aggregator error unless the
// latter is a resolution failure.
func combine(werr, err error) error {
	if err == nil {
		return werr
	}
	var cre *analytics.ColumnResolutionError
	if errors.As(err, &cre) {
		return err
	}
	return errors.Join(werr, err)
}

// KPIs computes the KPI set over the windowed table.
func (s *Session) KPIs(w analytics.Window) (analytics.KPISet, error) {
	return run(s, w, "kpis", nil, func(t *table.Table, r classify.Assignment) (analytics.KPISet, error) {
		return analytics.ComputeKPIs(t, r.Date, r.Address, r.Value)
	}, cloneKPIs)
}

// TimeSeries builds the bucketed volume series over the windowed table.
func (s *Session) TimeSeries(w analytics.Window, opts analytics.TimeSeriesOptions) (analytics.TimeSeries, error) {
	return run(s, w, "timeseries", []any{opts}, func(t *table.Table, r classify.Assignment) (analytics.TimeSeries, error) {
		return analytics.BuildTimeSeries(t, r.Date, r.Value, opts)
	}, cloneTimeSeries)
}

// TopEntities ranks addresses over the windowed table.
func (s *Session) TopEntities(w analytics.Window, n int) (analytics.Ranking, error) {
	return run(s, w, "top", []any{n}, func(t *table.Table, r classify.Assignment) (analytics.Ranking, error) {
		return analytics.BuildTopEntities(t, r.Address, r.Value, n)
	}, cloneRanking)
}

// Cohorts builds the retention matrix over the windowed table.
func (s *Session) Cohorts(w analytics.Window, period analytics.Period) (analytics.CohortMatrix, error) {
	return run(s, w, "cohorts", []any{period}, func(t *table.Table, r classify.Assignment) (analytics.CohortMatrix, error) {
		return analytics.BuildCohortRetention(t, r.Date, r.Address, period)
	}, cloneCohorts)
}

// Histogram bins the value column over the windowed table.
func (s *Session) Histogram(w analytics.Window, opts analytics.HistogramOptions) (analytics.Histogram, error) {
	return run(s, w, "histogram", []any{opts}, func(t *table.Table, r classify.Assignment) (analytics.Histogram, error) {
		return analytics.BuildHistogram(t, r.Value, opts)
	}, cloneHistogram)
}

// WindowRows reports how many rows the window keeps.
func (s *Session) WindowRows(w analytics.Window) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, _ := s.window(w)
	if t == nil {
		return 0
	}
	return t.Len()
}

func (s *Session) String() string {
	t := s.Table()
	return fmt.Sprintf("session %s (%s)", s.id, t)
}
