// Package render turns a session dashboard into Markdown, terminal tables,
// PNG charts and an HTML page.
package render

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/KaramelBytes/chainpulse/internal/session"
)

// seriesTail is how many trailing buckets the text renderers show.
const seriesTail = 14

const dateLayout = "2006-01-02"

// Markdown renders the dashboard as sectioned plain Markdown.
func Markdown(d *session.Dashboard) string {
	var b strings.Builder
	k := d.KPIs

	b.WriteString("[KPIS]\n")
	if d.Source != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", d.Source))
	}
	if d.WindowRows != d.Rows {
		b.WriteString(fmt.Sprintf("Rows: %d (window %s: %d)\n", d.Rows, windowLabel(d.Params.Window), d.WindowRows))
	} else {
		b.WriteString(fmt.Sprintf("Rows: %d\n", d.Rows))
	}
	b.WriteString(fmt.Sprintf("Roles: date=%s, address=%s, value=%s\n", orDash(d.Roles.Date), orDash(d.Roles.Address), orDash(d.Roles.Value)))
	if d.Protocol != "" && d.Protocol != "generic" {
		b.WriteString(fmt.Sprintf("Protocol: %s\n", d.Protocol))
	}
	b.WriteString(fmt.Sprintf("- Total volume: %s\n", analytics.FormatUSD(k.TotalVolume)))
	b.WriteString(fmt.Sprintf("- Transactions: %d\n", k.TransactionCount))
	if k.UniqueAddressesEstimated {
		b.WriteString(fmt.Sprintf("- Unique addresses: ~%d (estimated)\n", k.UniqueAddresses))
	} else {
		b.WriteString(fmt.Sprintf("- Unique addresses: %d\n", k.UniqueAddresses))
	}
	b.WriteString(fmt.Sprintf("- Active days: %d\n", k.ActiveDays))
	if !k.FirstDate.IsZero() {
		b.WriteString(fmt.Sprintf("- Date range: %s to %s (%d days)\n", k.FirstDate.Format(dateLayout), k.LastDate.Format(dateLayout), k.DateRangeDays))
	}
	b.WriteString(fmt.Sprintf("- Avg transaction: %s\n", analytics.FormatUSD(k.AvgTransaction)))
	b.WriteString(fmt.Sprintf("- Avg daily volume: %s\n", analytics.FormatUSD(k.AvgDailyVolume)))
	b.WriteString(fmt.Sprintf("- Avg daily transactions: %.2f\n", k.AvgDailyTransactions))

	ts := d.TimeSeries
	b.WriteString("\n[DAILY ACTIVITY]\n")
	if len(ts.Points) == 0 {
		b.WriteString("No data.\n")
	} else {
		start := 0
		if len(ts.Points) > seriesTail {
			start = len(ts.Points) - seriesTail
			b.WriteString(fmt.Sprintf("Last %d of %d %s buckets.\n", seriesTail, len(ts.Points), ts.Granularity))
		}
		b.WriteString("| date | volume | txs |")
		if len(ts.VolumeMA) > 0 {
			b.WriteString(fmt.Sprintf(" volume MA%d |", ts.Window))
		}
		if len(ts.Cumulative) > 0 {
			b.WriteString(" cumulative |")
		}
		b.WriteString("\n| --- | --- | --- |")
		if len(ts.VolumeMA) > 0 {
			b.WriteString(" --- |")
		}
		if len(ts.Cumulative) > 0 {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for i := start; i < len(ts.Points); i++ {
			p := ts.Points[i]
			b.WriteString(fmt.Sprintf("| %s | %s | %d |", p.Date.Format(dateLayout), analytics.FormatUSD(p.Volume), p.Count))
			if len(ts.VolumeMA) > 0 {
				b.WriteString(fmt.Sprintf(" %s |", analytics.FormatUSD(ts.VolumeMA[i])))
			}
			if len(ts.Cumulative) > 0 {
				b.WriteString(fmt.Sprintf(" %s |", analytics.FormatUSD(ts.Cumulative[i])))
			}
			b.WriteString("\n")
		}
	}

	top := d.Top
	b.WriteString("\n[TOP ADDRESSES]\n")
	if len(top.Entries) == 0 {
		b.WriteString("No data.\n")
	} else {
		b.WriteString(fmt.Sprintf("Top %d of %d addresses.\n", top.N, top.DistinctAddresses))
		b.WriteString("| # | address | total value | txs | share |\n| --- | --- | --- | --- | --- |\n")
		for i, e := range top.Entries {
			b.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %.1f%% |\n", i+1, e.Display, analytics.FormatUSD(e.TotalValue), e.TxCount, e.Share*100))
		}
	}

	cm := d.Cohorts
	b.WriteString("\n[COHORT RETENTION]\n")
	if len(cm.Cohorts) == 0 {
		b.WriteString("No data.\n")
	} else {
		b.WriteString(fmt.Sprintf("Cohorts by first %s; columns are %s offsets.\n", cm.Period, cm.Period))
		b.WriteString("| cohort | size |")
		for o := 0; o <= cm.MaxOffset; o++ {
			b.WriteString(fmt.Sprintf(" %d |", o))
		}
		b.WriteString("\n| --- | --- |")
		for o := 0; o <= cm.MaxOffset; o++ {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, c := range cm.Cohorts {
			b.WriteString(fmt.Sprintf("| %s | %d |", c.Start.Format(dateLayout), c.Size))
			for o := 0; o <= cm.MaxOffset; o++ {
				if o < len(c.Retention) {
					b.WriteString(fmt.Sprintf(" %.0f%% |", c.Retention[o]*100))
				} else {
					b.WriteString("  |")
				}
			}
			b.WriteString("\n")
		}
	}

	h := d.Histogram
	b.WriteString("\n[VALUE DISTRIBUTION]\n")
	if len(h.Bins) == 0 {
		b.WriteString("No data.\n")
	} else {
		scale := "linear"
		if h.Log10 {
			scale = "log10"
		}
		b.WriteString(fmt.Sprintf("%d values in %d %s bins, min %s, max %s.\n", h.Count, len(h.Bins), scale, analytics.FormatUSD(h.Min), analytics.FormatUSD(h.Max)))
		peak := 0
		for i, bin := range h.Bins {
			if bin.Count > h.Bins[peak].Count {
				peak = i
			}
		}
		pb := h.Bins[peak]
		b.WriteString(fmt.Sprintf("Most common range: %s to %s (%d).\n", binEdge(pb.Lower, h.Log10), binEdge(pb.Upper, h.Log10), pb.Count))
	}

	notes := notes(d)
	if len(notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range notes {
			b.WriteString("- " + n + "\n")
		}
	}
	return b.String()
}

// notes collects warnings and data-quality diagnostics.
func notes(d *session.Dashboard) []string {
	var out []string
	for _, dq := range d.Issues {
		line := fmt.Sprintf("%s column %q: %d of %d values could not be parsed", dq.Role, dq.Column, dq.Unparseable, dq.Total)
		if len(dq.Samples) > 0 {
			line += fmt.Sprintf(" (e.g. %s)", strings.Join(quoteAll(dq.Samples), ", "))
		}
		out = append(out, line)
	}
	out = append(out, d.Warnings...)
	if d.KPIs.DroppedRows > 0 {
		out = append(out, fmt.Sprintf("%d rows without a usable value were excluded from totals", d.KPIs.DroppedRows))
	}
	if d.Cohorts.ExcludedRows > 0 {
		out = append(out, fmt.Sprintf("%d rows without a date or address were excluded from cohorts", d.Cohorts.ExcludedRows))
	}
	return out
}

func binEdge(v float64, log10 bool) string {
	if log10 {
		return fmt.Sprintf("1e%.2f", v)
	}
	return analytics.FormatUSD(v)
}

func windowLabel(w analytics.Window) string {
	if w.Preset != analytics.Custom {
		return string(w.Preset)
	}
	var start, end string
	if !w.Start.IsZero() {
		start = w.Start.Format(dateLayout)
	}
	if !w.End.IsZero() {
		end = w.End.Format(dateLayout)
	}
	return start + ".." + end
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func quoteAll(xs []string) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = fmt.Sprintf("%q", x)
	}
	return out
}
