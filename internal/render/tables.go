package render

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Tables renders the dashboard as boxed terminal tables.
func Tables(d *session.Dashboard) string {
	sections := []string{kpiTable(d), seriesTable(d.TimeSeries), rankingTable(d.Top), cohortTable(d.Cohorts)}
	if n := notes(d); len(n) > 0 {
		sections = append(sections, "Notes:\n- "+strings.Join(n, "\n- "))
	}
	return strings.Join(sections, "\n\n") + "\n"
}

func newWriter(title string) table.Writer {
	t := table.NewWriter()
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)
	return t
}

func kpiTable(d *session.Dashboard) string {
	k := d.KPIs
	t := newWriter("KPIs")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Total volume", analytics.FormatUSD(k.TotalVolume)},
		{"Transactions", k.TransactionCount},
		{"Unique addresses", k.UniqueAddresses},
		{"Active days", k.ActiveDays},
		{"Avg transaction", analytics.FormatUSD(k.AvgTransaction)},
		{"Avg daily volume", analytics.FormatUSD(k.AvgDailyVolume)},
		{"Avg daily transactions", fmt.Sprintf("%.2f", k.AvgDailyTransactions)},
	})
	if !k.FirstDate.IsZero() {
		t.AppendRow(table.Row{"Date range", fmt.Sprintf("%s to %s", k.FirstDate.Format(dateLayout), k.LastDate.Format(dateLayout))})
	}
	return t.Render()
}

func seriesTable(ts analytics.TimeSeries) string {
	t := newWriter(fmt.Sprintf("Activity by %s", ts.Granularity))
	header := table.Row{"Date", "Volume", "Txs"}
	if len(ts.VolumeMA) > 0 {
		header = append(header, fmt.Sprintf("MA%d", ts.Window))
	}
	if len(ts.Cumulative) > 0 {
		header = append(header, "Cumulative")
	}
	t.AppendHeader(header)
	start := 0
	if len(ts.Points) > seriesTail {
		start = len(ts.Points) - seriesTail
	}
	for i := start; i < len(ts.Points); i++ {
		p := ts.Points[i]
		row := table.Row{p.Date.Format(dateLayout), analytics.FormatUSD(p.Volume), p.Count}
		if len(ts.VolumeMA) > 0 {
			row = append(row, analytics.FormatUSD(ts.VolumeMA[i]))
		}
		if len(ts.Cumulative) > 0 {
			row = append(row, analytics.FormatUSD(ts.Cumulative[i]))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func rankingTable(r analytics.Ranking) string {
	t := newWriter(fmt.Sprintf("Top %d addresses", r.N))
	t.AppendHeader(table.Row{"#", "Address", "Total value", "Txs", "Share"})
	for i, e := range r.Entries {
		t.AppendRow(table.Row{i + 1, e.Display, analytics.FormatUSD(e.TotalValue), e.TxCount, fmt.Sprintf("%.1f%%", e.Share*100)})
	}
	return t.Render()
}

func cohortTable(cm analytics.CohortMatrix) string {
	t := newWriter(fmt.Sprintf("Retention by %s", cm.Period))
	header := table.Row{"Cohort", "Size"}
	for o := 0; o <= cm.MaxOffset && len(cm.Cohorts) > 0; o++ {
		header = append(header, fmt.Sprintf("+%d", o))
	}
	t.AppendHeader(header)
	for _, c := range cm.Cohorts {
		row := table.Row{c.Start.Format(dateLayout), c.Size}
		for o := 0; o <= cm.MaxOffset; o++ {
			if o < len(c.Retention) {
				row = append(row, fmt.Sprintf("%.0f%%", c.Retention[o]*100))
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	return t.Render()
}
