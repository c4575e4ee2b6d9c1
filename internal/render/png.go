package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("no data to chart")

// Chart kinds accepted by PNG.
const (
	ChartTimeSeries = "timeseries"
	ChartTop        = "top"
	ChartHistogram  = "histogram"
)

const (
	pngWidth  = 1280
	pngHeight = 640
	maxTicks  = 10
)

var (
	volumeColor = drawing.ColorFromHex("4e79a7")
	maColor     = drawing.ColorFromHex("f28e2b")
	gridColor   = drawing.ColorFromHex("efefef")
)

// PNG renders one chart kind from ts, r or h.
func PNG(kind string, ts analytics.TimeSeries, r analytics.Ranking, h analytics.Histogram) ([]byte, error) {
	switch kind {
	case ChartTimeSeries:
		return TimeSeriesPNG(ts)
	case ChartTop:
		return TopEntitiesPNG(r)
	case ChartHistogram:
		return HistogramPNG(h)
	}
	return nil, fmt.Errorf("unknown chart %q (want %s, %s or %s)", kind, ChartTimeSeries, ChartTop, ChartHistogram)
}

// TimeSeriesPNG draws bucket volume with its moving average when present.
func TimeSeriesPNG(ts analytics.TimeSeries) ([]byte, error) {
	n := len(ts.Points)
	if n == 0 {
		return nil, ErrNoData
	}
	vol := ts.Volumes()
	ma := ts.VolumeMA
	// A continuous series needs two points; one bucket is drawn as a flat
	// segment across the single tick.
	if n == 1 {
		vol = []float64{vol[0], vol[0]}
		if len(ma) == 1 {
			ma = []float64{ma[0], ma[0]}
		}
	}
	xs := make([]float64, len(vol))
	for i := range xs {
		xs[i] = float64(i)
	}
	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Volume",
			XValues: xs,
			YValues: vol,
			Style:   chart.Style{StrokeColor: volumeColor, FillColor: volumeColor.WithAlpha(60), StrokeWidth: 2},
		},
	}
	lo, hi := bounds(vol)
	if len(ts.VolumeMA) == n {
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("MA%d", ts.Window),
			XValues: xs,
			YValues: ma,
			Style:   chart.Style{StrokeColor: maColor, StrokeWidth: 2},
		})
		mlo, mhi := bounds(ma)
		lo, hi = math.Min(lo, mlo), math.Max(hi, mhi)
	}

	step := (n + maxTicks - 1) / maxTicks
	var ticks []chart.Tick
	for i := 0; i < n; i += step {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: ts.Points[i].Date.Format(dateLayout)})
	}

	graph := chart.Chart{
		Title:      fmt.Sprintf("Volume by %s", ts.Granularity),
		Width:      pngWidth,
		Height:     pngHeight,
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}, FillColor: drawing.ColorWhite},
		XAxis: chart.XAxis{
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: 0, Max: float64(len(xs) - 1)},
		},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: usdFormatter,
			GridMajorStyle: chart.Style{StrokeColor: gridColor, StrokeWidth: 1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return renderPNG(graph.Render)
}

// TopEntitiesPNG draws the ranking as bars.
func TopEntitiesPNG(r analytics.Ranking) ([]byte, error) {
	if len(r.Entries) == 0 {
		return nil, ErrNoData
	}
	bars := make([]chart.Value, len(r.Entries))
	vals := make([]float64, len(r.Entries))
	for i, e := range r.Entries {
		bars[i] = chart.Value{Value: e.TotalValue, Label: e.Display, Style: chart.Style{FillColor: volumeColor, StrokeColor: volumeColor}}
		vals[i] = e.TotalValue
	}
	return barPNG(fmt.Sprintf("Top %d addresses by value", r.N), bars, vals, 60)
}

// HistogramPNG draws the value distribution.
func HistogramPNG(h analytics.Histogram) ([]byte, error) {
	if len(h.Bins) == 0 {
		return nil, ErrNoData
	}
	bars := make([]chart.Value, len(h.Bins))
	vals := make([]float64, len(h.Bins))
	for i, b := range h.Bins {
		label := ""
		if i%5 == 0 {
			label = binEdge(b.Lower, h.Log10)
		}
		bars[i] = chart.Value{Value: float64(b.Count), Label: label, Style: chart.Style{FillColor: maColor, StrokeColor: maColor}}
		vals[i] = float64(b.Count)
	}
	title := "Value distribution"
	if h.Log10 {
		title += " (log10)"
	}
	return barPNG(title, bars, vals, 16)
}

func barPNG(title string, bars []chart.Value, vals []float64, barWidth int) ([]byte, error) {
	const spacing = 8
	lo, hi := bounds(vals)
	bc := chart.BarChart{
		Title:      title,
		Width:      max(pngWidth, len(bars)*(barWidth+spacing)+200),
		Height:     pngHeight,
		BarWidth:   barWidth,
		BarSpacing: spacing,
		Bars:       bars,
		Background: chart.Style{Padding: chart.Box{Top: 50, Bottom: 120}, FillColor: drawing.ColorWhite},
		XAxis:      chart.Style{TextRotationDegrees: 60},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: math.Min(0, lo), Max: hi},
			GridMajorStyle: chart.Style{StrokeColor: gridColor, StrokeWidth: 1},
		},
	}
	return renderPNG(bc.Render)
}

func renderPNG(render func(chart.RendererProvider, io.Writer) error) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("error rendering chart: %w", err)
	}
	return buf.Bytes(), nil
}

// bounds returns a non-degenerate [lo, hi] covering xs and zero.
func bounds(xs []float64) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi-lo < 1e-9 {
		hi = lo + 1
	}
	return lo, hi * 1.05
}

func usdFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return analytics.FormatUSD(f)
	}
	return ""
}
