package analytics

import (
	"math"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

const (
	// DefaultBins is the histogram bin count used when none is given.
	DefaultBins = 50
	// MaxBins caps the bin count; larger requests are clamped.
	MaxBins = 1000
)

// HistogramOptions controls BuildHistogram.
type HistogramOptions struct {
	Bins  int  `json:"bins"`
	Log10 bool `json:"log10"`
}

// Bin is a half-open interval [Lower, Upper); the last bin is closed.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram is an equal-width distribution of the value column. With Log10
// the bin edges are in log10 space.
type Histogram struct {
	Bins    []Bin   `json:"bins"`
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Log10   bool    `json:"log10"`
	Skipped int     `json:"skipped"`

	Warning *EmptyResultWarning `json:"warning,omitempty"`
}

// BuildHistogram bins coercible values. In Log10 mode values <= 0 are skipped.
func BuildHistogram(t *table.Table, valueCol string, opts HistogramOptions) (Histogram, error) {
	bins := opts.Bins
	if bins <= 0 {
		bins = DefaultBins
	}
	if bins > MaxBins {
		bins = MaxBins
	}
	h := Histogram{Bins: []Bin{}, Log10: opts.Log10}
	if t.Len() == 0 {
		h.Warning = emptyWarning("histogram", "table has no rows")
		return h, nil
	}
	vi, err := resolve(t, roleValue, valueCol)
	if err != nil {
		return Histogram{}, err
	}
	raw, vc := numbers(t, vi)
	qerr := joinQuality(vc.quality(valueCol, roleValue))

	xs := make([]float64, 0, len(raw))
	for i, v := range raw {
		if !vc.ok[i] {
			h.Skipped++
			continue
		}
		if opts.Log10 {
			if v <= 0 {
				h.Skipped++
				continue
			}
			v = math.Log10(v)
		}
		xs = append(xs, v)
	}
	if len(xs) == 0 {
		h.Warning = emptyWarning("histogram", "no values to bin")
		return h, qerr
	}
	h.Min, h.Max = xs[0], xs[0]
	for _, x := range xs {
		h.Min = math.Min(h.Min, x)
		h.Max = math.Max(h.Max, x)
	}
	h.Count = len(xs)
	if h.Min == h.Max {
		h.Bins = append(h.Bins, Bin{Lower: h.Min, Upper: h.Max, Count: len(xs)})
		return h, qerr
	}
	width := (h.Max - h.Min) / float64(bins)
	h.Bins = make([]Bin, bins)
	for i := range h.Bins {
		h.Bins[i].Lower = h.Min + float64(i)*width
		h.Bins[i].Upper = h.Min + float64(i+1)*width
	}
	h.Bins[bins-1].Upper = h.Max
	for _, x := range xs {
		idx := int((x - h.Min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		h.Bins[idx].Count++
	}
	return h, qerr
}
