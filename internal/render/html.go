package render

import (
	"fmt"
	"io"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// DashboardHTML writes a self-contained page with every dashboard chart.
func DashboardHTML(w io.Writer, d *session.Dashboard) error {
	page := components.NewPage()
	page.PageTitle = "chainpulse: " + d.Source
	page.SetLayout(components.PageFlexLayout)

	ts := d.TimeSeries
	dates := make([]string, len(ts.Points))
	for i, p := range ts.Points {
		dates[i] = p.Date.Format(dateLayout)
	}

	volume := charts.NewLine()
	volume.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Volume by %s", ts.Granularity), Subtitle: kpiSubtitle(d.KPIs)}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	volume.SetXAxis(dates).AddSeries("Volume", lineData(ts.Volumes()))
	if len(ts.VolumeMA) > 0 {
		volume.AddSeries(fmt.Sprintf("MA%d", ts.Window), lineData(ts.VolumeMA))
	}
	page.AddCharts(volume)

	if len(ts.Cumulative) > 0 {
		cum := charts.NewLine()
		cum.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Cumulative volume"}))
		cum.SetXAxis(dates).AddSeries("Cumulative", lineData(ts.Cumulative))
		page.AddCharts(cum)
	}

	counts := make([]opts.BarData, len(ts.Points))
	for i, p := range ts.Points {
		counts[i] = opts.BarData{Value: p.Count}
	}
	txs := charts.NewBar()
	txs.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Transactions"}))
	txs.SetXAxis(dates).AddSeries("Transactions", counts)
	page.AddCharts(txs)

	labels := make([]string, len(d.Top.Entries))
	values := make([]opts.BarData, len(d.Top.Entries))
	for i, e := range d.Top.Entries {
		labels[i] = e.Display
		values[i] = opts.BarData{Name: e.Address, Value: e.TotalValue}
	}
	top := charts.NewBar()
	top.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Top %d addresses", d.Top.N)}))
	top.SetXAxis(labels).AddSeries("Total value", values)
	page.AddCharts(top)

	page.AddCharts(cohortHeatmap(d.Cohorts))

	binLabels := make([]string, len(d.Histogram.Bins))
	binCounts := make([]opts.BarData, len(d.Histogram.Bins))
	for i, b := range d.Histogram.Bins {
		binLabels[i] = binEdge(b.Lower, d.Histogram.Log10)
		binCounts[i] = opts.BarData{Value: b.Count}
	}
	hist := charts.NewBar()
	hist.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Value distribution"}))
	hist.SetXAxis(binLabels).AddSeries("Rows", binCounts)
	page.AddCharts(hist)

	return page.Render(w)
}

func cohortHeatmap(cm analytics.CohortMatrix) *charts.HeatMap {
	offsets := make([]string, cm.MaxOffset+1)
	for o := range offsets {
		offsets[o] = fmt.Sprintf("+%d", o)
	}
	if len(cm.Cohorts) == 0 {
		offsets = nil
	}
	starts := make([]string, len(cm.Cohorts))
	var cells []opts.HeatMapData
	for y, c := range cm.Cohorts {
		starts[y] = c.Start.Format(dateLayout)
		for x, r := range c.Retention {
			cells = append(cells, opts.HeatMapData{Value: [3]interface{}{x, y, float64(int(r*1000)) / 10}})
		}
	}
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Retention by %s (%%)", cm.Period)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: starts}),
		charts.WithVisualMapOpts(opts.VisualMap{Min: 0, Max: 100, InRange: &opts.VisualMapInRange{Color: []string{"#f7fbff", "#08519c"}}}),
	)
	hm.SetXAxis(offsets).AddSeries("retention", cells)
	return hm
}

func lineData(xs []float64) []opts.LineData {
	out := make([]opts.LineData, len(xs))
	for i, x := range xs {
		out[i] = opts.LineData{Value: x}
	}
	return out
}

func kpiSubtitle(k analytics.KPISet) string {
	return fmt.Sprintf("Total %s, %d txs, %d addresses", analytics.FormatUSD(k.TotalVolume), k.TransactionCount, k.UniqueAddresses)
}
