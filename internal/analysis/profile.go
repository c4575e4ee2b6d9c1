package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

// Column kinds inferred by Profile.
const (
	KindNumeric     = "numeric"
	KindDatetime    = "datetime"
	KindCategorical = "categorical"
	KindText        = "text"
	KindUnknown     = "unknown"
)

// maxTracked caps the distinct values remembered per column.
const maxTracked = 100000

// Options controls profiling behavior.
type Options struct {
	// MaxRows limits rows profiled; 0 means unlimited.
	MaxRows int
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
	// Number pins locale separators; zero value auto-detects.
	Number table.NumberFormat
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		MaxRows:          100000,
		SampleRows:       5,
		Outliers:         true,
		OutlierThreshold: 3.5,
	}
}

// Report is a markdown-friendly profile of a table.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Samples   [][]string
	Warnings  []string
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string
	NonNull int
	Missing int
	Unique  int
	// Share of non-null cells that parsed as each type.
	NumericRatio  float64
	DatetimeRatio float64
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical top values
	TopValues    []CategoryCount
	ExampleTexts []string
}

// UniqueRatio is distinct values over non-null cells.
func (c ColumnSummary) UniqueRatio() float64 {
	if c.NonNull == 0 {
		return 0
	}
	return float64(c.Unique) / float64(c.NonNull)
}

type CategoryCount struct {
	Value string
	Count int
}

// Profile infers per-column kinds and statistics in a single pass over t.
func Profile(t *table.Table, opt Options) *Report {
	rep := &Report{Name: t.Name(), Rows: t.Len()}
	ncol := t.Width()
	if ncol == 0 {
		return rep
	}

	type colAcc struct {
		nonNil int
		miss   int
		// numeric stats via Welford
		n      int
		mean   float64
		m2     float64
		min    float64
		max    float64
		numCnt int
		dtCnt  int
		txtCnt int
		vals   []float64
		seen   map[string]int
		exText []string
	}
	cols := make([]*colAcc, ncol)
	for i := range cols {
		cols[i] = &colAcc{min: math.Inf(1), max: math.Inf(-1), seen: make(map[string]int)}
	}

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	sampleRows := opt.SampleRows
	if sampleRows < 0 {
		sampleRows = 0
	}

	for i := 0; i < t.Len() && rep.Processed < maxRows; i++ {
		rep.Processed++
		if len(rep.Samples) < sampleRows {
			rep.Samples = append(rep.Samples, t.Row(i))
		}
		for j := 0; j < ncol; j++ {
			v := t.Cell(i, j)
			c := cols[j]
			if v == "" {
				c.miss++
				continue
			}
			c.nonNil++
			if len(c.seen) < maxTracked || c.seen[v] > 0 {
				c.seen[v]++
			}
			if x, ok := table.ParseNumberWith(v, opt.Number); ok {
				c.numCnt++
				c.n++
				if x < c.min {
					c.min = x
				}
				if x > c.max {
					c.max = x
				}
				delta := x - c.mean
				c.mean += delta / float64(c.n)
				c.m2 += delta * (x - c.mean)
				if opt.Outliers {
					c.vals = append(c.vals, x)
				}
				continue
			}
			if _, ok := table.ParseTime(v); ok {
				c.dtCnt++
				continue
			}
			c.txtCnt++
			if len(c.exText) < 3 {
				c.exText = append(c.exText, v)
			}
		}
	}

	rep.Cols = make([]ColumnSummary, 0, ncol)
	names := t.Columns()
	for idx, c := range cols {
		s := ColumnSummary{Name: names[idx], NonNull: c.nonNil, Missing: c.miss, Unique: len(c.seen)}
		if c.nonNil > 0 {
			s.NumericRatio = float64(c.numCnt) / float64(c.nonNil)
			s.DatetimeRatio = float64(c.dtCnt) / float64(c.nonNil)
		}
		switch {
		case c.numCnt > 0 && c.numCnt >= c.dtCnt && c.numCnt >= c.txtCnt:
			s.Kind = KindNumeric
			s.Min, s.Max, s.Mean = c.min, c.max, c.mean
			if c.n > 1 {
				s.Std = math.Sqrt(c.m2 / float64(c.n-1))
			}
			if opt.Outliers && len(c.vals) >= 8 {
				s.OutlierThreshold = opt.OutlierThreshold
				if s.OutlierThreshold <= 0 {
					s.OutlierThreshold = 3.5
				}
				s.OutliersCount, s.OutliersMaxAbsZ = robustOutliers(c.vals, s.OutlierThreshold)
			}
		case c.dtCnt > 0 && c.dtCnt >= c.txtCnt:
			s.Kind = KindDatetime
		case c.txtCnt > 0 && len(c.seen) <= maxCategories(c.nonNil):
			s.Kind = KindCategorical
			s.TopValues = topValues(c.seen, 8)
		case c.txtCnt > 0:
			s.Kind = KindText
			s.ExampleTexts = c.exText
		default:
			s.Kind = KindUnknown
		}
		rep.Cols = append(rep.Cols, s)
	}

	if rep.Processed < rep.Rows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", rep.Processed, rep.Rows))
	}
	return rep
}

// Column returns the summary for name.
func (r *Report) Column(name string) (ColumnSummary, bool) {
	for _, c := range r.Cols {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSummary{}, false
}

// maxCategories treats low-cardinality text as categorical.
func maxCategories(nonNull int) int {
	lim := nonNull / 2
	if lim < 20 {
		lim = 20
	}
	return lim
}

func topValues(seen map[string]int, k int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(seen))
	for v, n := range seen {
		tops = append(tops, CategoryCount{Value: v, Count: n})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > k {
		tops = tops[:k]
	}
	return tops
}

func robustOutliers(vals []float64, thr float64) (int, float64) {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	var cnt int
	maxAbsZ := 0.0
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			cnt++
		}
		if az > maxAbsZ {
			maxAbsZ = az
		}
	}
	return cnt, maxAbsZ
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
