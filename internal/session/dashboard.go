package session

import (
	"errors"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/KaramelBytes/chainpulse/internal/classify"
)

// Dashboard bundles every derived result for one set of parameters.
type Dashboard struct {
	SessionID   string                        `json:"session_id"`
	Source      string                        `json:"source"`
	Rows        int                           `json:"rows"`
	WindowRows  int                           `json:"window_rows"`
	Roles       classify.Assignment           `json:"roles"`
	Protocol    string                        `json:"protocol"`
	Params      Params                        `json:"params"`
	KPIs        analytics.KPISet              `json:"kpis"`
	TimeSeries  analytics.TimeSeries          `json:"timeseries"`
	Top         analytics.Ranking             `json:"top"`
	Cohorts     analytics.CohortMatrix        `json:"cohorts"`
	Histogram   analytics.Histogram           `json:"histogram"`
	Warnings    []string                      `json:"warnings,omitempty"`
	Issues      []*analytics.DataQualityError `json:"issues,omitempty"`
	GeneratedAt time.Time                     `json:"generated_at"`
}

// Partial reports whether any component was computed over a subset of rows.
func (d *Dashboard) Partial() bool { return len(d.Issues) > 0 }

// Dashboard computes all components for p. A ColumnResolutionError aborts
// with a nil dashboard. Data quality problems are collected on the dashboard
// and also returned joined, so callers can tell the result is partial.
func (s *Session) Dashboard(p Params) (*Dashboard, error) {
	def := s.DefaultParams()
	// Unset series options mean the defaults, including MA and cumulative.
	// Once any field is set the booleans are taken as given.
	if p.TimeSeries == (analytics.TimeSeriesOptions{}) {
		p.TimeSeries = def.TimeSeries
	}
	if p.TopN <= 0 {
		p.TopN = def.TopN
	}
	if p.Period == "" {
		p.Period = def.Period
	}
	if p.TimeSeries.Granularity == "" {
		p.TimeSeries.Granularity = analytics.Day
	}
	if p.TimeSeries.Window <= 0 {
		p.TimeSeries.Window = def.TimeSeries.Window
	}
	if p.Histogram.Bins <= 0 {
		p.Histogram.Bins = def.Histogram.Bins
	}
	if p.Window.Preset == "" {
		p.Window.Preset = analytics.All
	}

	t := s.Table()
	d := &Dashboard{
		SessionID:   s.ID(),
		Source:      t.Name(),
		Rows:        t.Len(),
		Roles:       s.Roles(),
		Protocol:    s.Classification().Protocol.Protocol,
		Params:      p,
		GeneratedAt: time.Now().UTC(),
	}

	var errs []error
	var err error
	if d.KPIs, err = s.KPIs(p.Window); err != nil {
		errs = append(errs, err)
	}
	if d.TimeSeries, err = s.TimeSeries(p.Window, p.TimeSeries); err != nil {
		errs = append(errs, err)
	}
	if d.Top, err = s.TopEntities(p.Window, p.TopN); err != nil {
		errs = append(errs, err)
	}
	if d.Cohorts, err = s.Cohorts(p.Window, p.Period); err != nil {
		errs = append(errs, err)
	}
	if d.Histogram, err = s.Histogram(p.Window, p.Histogram); err != nil {
		errs = append(errs, err)
	}
	for _, e := range errs {
		var cre *analytics.ColumnResolutionError
		if errors.As(e, &cre) {
			return nil, cre
		}
	}
	d.WindowRows = s.WindowRows(p.Window)

	seen := map[string]bool{}
	for _, e := range errs {
		for _, dq := range analytics.QualityIssues(e) {
			k := dq.Role + "|" + dq.Column
			if seen[k] {
				continue
			}
			seen[k] = true
			d.Issues = append(d.Issues, dq)
		}
	}
	for _, w := range []*analytics.EmptyResultWarning{d.KPIs.Warning, d.TimeSeries.Warning, d.Top.Warning, d.Cohorts.Warning, d.Histogram.Warning} {
		if w != nil {
			d.Warnings = append(d.Warnings, w.String())
		}
	}
	if len(d.Issues) == 0 {
		return d, nil
	}
	joined := make([]error, len(d.Issues))
	for i, dq := range d.Issues {
		joined[i] = dq
	}
	return d, errors.Join(joined...)
}
