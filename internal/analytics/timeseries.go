package analytics

import (
	"sort"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/shopspring/decimal"
)

// DefaultMAWindow is the trailing moving-average window in periods.
const DefaultMAWindow = 7

// TimeSeriesOptions controls BuildTimeSeries.
type TimeSeriesOptions struct {
	Granularity   Period `json:"granularity"`
	MovingAverage bool   `json:"moving_average"`
	Window        int    `json:"window"`
	Cumulative    bool   `json:"cumulative"`
	FillGaps      bool   `json:"fill_gaps"`
}

// DefaultTimeSeriesOptions returns daily buckets with MA7 and cumulative volume.
func DefaultTimeSeriesOptions() TimeSeriesOptions {
	return TimeSeriesOptions{Granularity: Day, MovingAverage: true, Window: DefaultMAWindow, Cumulative: true}
}

// Point is one bucket of a time series.
type Point struct {
	Date   time.Time `json:"date"`
	Volume float64   `json:"volume"`
	Count  int       `json:"count"`
}

// TimeSeries is an ascending series of buckets. VolumeMA, CountMA and
// Cumulative are aligned with Points by index when requested.
type TimeSeries struct {
	Granularity Period    `json:"granularity"`
	Window      int       `json:"window,omitempty"`
	Points      []Point   `json:"points"`
	VolumeMA    []float64 `json:"volume_ma,omitempty"`
	CountMA     []float64 `json:"count_ma,omitempty"`
	Cumulative  []float64 `json:"cumulative,omitempty"`
	DroppedRows int       `json:"dropped_rows"`

	Warning *EmptyResultWarning `json:"warning,omitempty"`
}

// Volumes returns the volume of each point.
func (ts TimeSeries) Volumes() []float64 {
	out := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = p.Volume
	}
	return out
}

// BuildTimeSeries buckets rows whose date and value both coerce.
//
// The moving average uses a shorter window at the start of the series:
// point i averages points max(0, i-w+1) through i. Gap filling inserts
// zero buckets between the first and last bucket and never interpolates.
func BuildTimeSeries(t *table.Table, dateCol, valueCol string, opts TimeSeriesOptions) (TimeSeries, error) {
	if opts.Granularity == "" {
		opts.Granularity = Day
	}
	if opts.Window <= 0 {
		opts.Window = DefaultMAWindow
	}
	ts := TimeSeries{Granularity: opts.Granularity, Points: []Point{}}
	if opts.MovingAverage {
		ts.Window = opts.Window
	}
	if t.Len() == 0 {
		ts.Warning = emptyWarning("timeseries", "table has no rows")
		return ts, nil
	}
	di, err := resolve(t, roleDate, dateCol)
	if err != nil {
		return TimeSeries{}, err
	}
	vi, err := resolve(t, roleValue, valueCol)
	if err != nil {
		return TimeSeries{}, err
	}
	dates, dc := times(t, di)
	vals, vc := numbers(t, vi)

	type bucket struct {
		vol   decimal.Decimal
		count int
	}
	buckets := make(map[time.Time]*bucket)
	for i := 0; i < t.Len(); i++ {
		if !dc.ok[i] || !vc.ok[i] {
			ts.DroppedRows++
			continue
		}
		key := opts.Granularity.Start(dates[i])
		b := buckets[key]
		if b == nil {
			b = &bucket{vol: decimal.Zero}
			buckets[key] = b
		}
		b.vol = b.vol.Add(decimal.NewFromFloat(vals[i]))
		b.count++
	}
	qerr := joinQuality(dc.quality(dateCol, roleDate), vc.quality(valueCol, roleValue))

	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	if opts.FillGaps && len(keys) > 1 {
		var filled []time.Time
		for d := keys[0]; !d.After(keys[len(keys)-1]); d = opts.Granularity.Next(d) {
			filled = append(filled, d)
		}
		keys = filled
	}
	for _, k := range keys {
		p := Point{Date: k}
		if b := buckets[k]; b != nil {
			p.Volume = b.vol.InexactFloat64()
			p.Count = b.count
		}
		ts.Points = append(ts.Points, p)
	}
	if len(ts.Points) == 0 {
		ts.Warning = emptyWarning("timeseries", "no rows with both a parseable date and value")
		return ts, qerr
	}

	if opts.MovingAverage {
		counts := make([]float64, len(ts.Points))
		for i, p := range ts.Points {
			counts[i] = float64(p.Count)
		}
		ts.VolumeMA = MovingAverage(ts.Volumes(), opts.Window)
		ts.CountMA = MovingAverage(counts, opts.Window)
	}
	if opts.Cumulative {
		ts.Cumulative = make([]float64, len(ts.Points))
		run := decimal.Zero
		for i, p := range ts.Points {
			run = run.Add(decimal.NewFromFloat(p.Volume))
			ts.Cumulative[i] = run.InexactFloat64()
		}
	}
	return ts, qerr
}

// MovingAverage is a trailing mean with a shorter window at the start.
// The result has the same length as xs.
func MovingAverage(xs []float64, window int) []float64 {
	if window <= 0 {
		window = 1
	}
	out := make([]float64, len(xs))
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}
