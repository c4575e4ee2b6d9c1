package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/KaramelBytes/chainpulse/internal/classify"
	"github.com/KaramelBytes/chainpulse/internal/ingest"
	"github.com/KaramelBytes/chainpulse/internal/render"
	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/KaramelBytes/chainpulse/internal/source"
	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/spf13/cobra"
)

// sourceFlags are shared by every command that reads a table.
type sourceFlags struct {
	query      string
	delimiter  string
	sheet      string
	maxRows    int
	latest     bool
	dateCol    string
	addressCol string
	valueCol   string
	noProtocol bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.query, "query", "", "SQL for postgres:// and clickhouse:// sources")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX: sheet name (default first sheet)")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "maximum rows to read (default from config, 0 = config value)")
	cmd.Flags().BoolVar(&f.latest, "latest", false, "dune: use the stored latest result instead of executing")
	cmd.Flags().StringVar(&f.dateCol, "date-col", "", "override the date column")
	cmd.Flags().StringVar(&f.addressCol, "address-col", "", "override the address column")
	cmd.Flags().StringVar(&f.valueCol, "value-col", "", "override the value column")
	cmd.Flags().BoolVar(&f.noProtocol, "no-protocol", false, "skip protocol template detection")
}

func (f *sourceFlags) roles() classify.Assignment {
	return classify.Assignment{Date: f.dateCol, Address: f.addressCol, Value: f.valueCol}
}

func (f *sourceFlags) ingestOptions() (ingest.Options, error) {
	opt := ingest.Options{Sheet: f.sheet, MaxRows: f.maxRows}
	if opt.MaxRows == 0 && cfg != nil {
		opt.MaxRows = cfg.MaxRows
	}
	d, err := parseDelimiter(f.delimiter)
	if err != nil {
		return opt, err
	}
	opt.Delimiter = d
	return opt, nil
}

func (f *sourceFlags) open(ctx context.Context, ref string) (*table.Table, error) {
	opt, err := f.ingestOptions()
	if err != nil {
		return nil, err
	}
	return source.Open(ctx, ref, source.Options{
		Ingest: opt,
		Query:  f.query,
		Dune:   newDuneClient(),
		Latest: f.latest,
	})
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	}
	return 0, fmt.Errorf("unsupported --delimiter: %s", s)
}

// sessionOptions applies config defaults and role overrides.
func sessionOptions(roles classify.Assignment, useProtocol bool) session.Options {
	opts := session.Options{
		Roles:    roles,
		Classify: classify.Options{UseProtocol: useProtocol},
	}
	if cfg == nil {
		return opts
	}
	opts.Classify.DateHints = cfg.DateHints
	opts.Classify.AddressHints = cfg.AddressHints
	opts.Classify.ValueHints = cfg.ValueHints
	opts.TopN = cfg.DefaultTopN
	opts.MAWindow = cfg.MovingAverageWindow
	opts.Bins = cfg.HistogramBins
	if p, err := analytics.ParsePeriod(cfg.CohortPeriod); err == nil {
		opts.Period = p
	}
	return opts
}

// paramFlags select what the dashboard shows.
type paramFlags struct {
	top         int
	window      string
	start       string
	end         string
	period      string
	granularity string
	maWindow    int
	fillGaps    bool
	noMA        bool
	bins        int
	logHist     bool
}

func (f *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.top, "top", 0, "number of top addresses (default from config)")
	cmd.Flags().StringVar(&f.window, "window", "", "time window: all|7d|30d|90d")
	cmd.Flags().StringVar(&f.start, "start", "", "window start date (YYYY-MM-DD, implies custom window)")
	cmd.Flags().StringVar(&f.end, "end", "", "window end date (YYYY-MM-DD, implies custom window)")
	cmd.Flags().StringVar(&f.period, "period", "", "cohort period: day|week|month")
	cmd.Flags().StringVar(&f.granularity, "granularity", "", "time series bucket: day|week|month")
	cmd.Flags().IntVar(&f.maWindow, "ma-window", 0, "moving average window in buckets (default from config)")
	cmd.Flags().BoolVar(&f.fillGaps, "fill-gaps", false, "emit zero buckets for days without activity")
	cmd.Flags().BoolVar(&f.noMA, "no-ma", false, "disable the moving average")
	cmd.Flags().IntVar(&f.bins, "bins", 0, "histogram bins (default from config)")
	cmd.Flags().BoolVar(&f.logHist, "log-hist", false, "histogram over log10 of values")
}

// apply overlays flags that were set on base.
func (f *paramFlags) apply(base session.Params) (session.Params, error) {
	p := base
	if f.window != "" || f.start != "" || f.end != "" {
		w, err := analytics.ParseWindow(f.window, f.start, f.end)
		if err != nil {
			return p, err
		}
		p.Window = w
	}
	if f.top > 0 {
		p.TopN = f.top
	}
	if f.period != "" {
		per, err := analytics.ParsePeriod(f.period)
		if err != nil {
			return p, err
		}
		p.Period = per
	}
	if f.granularity != "" {
		g, err := analytics.ParsePeriod(f.granularity)
		if err != nil {
			return p, err
		}
		p.TimeSeries.Granularity = g
	}
	if f.maWindow > 0 {
		p.TimeSeries.Window = f.maWindow
	}
	if f.fillGaps {
		p.TimeSeries.FillGaps = true
	}
	if f.noMA {
		p.TimeSeries.MovingAverage = false
	}
	if f.bins > analytics.MaxBins {
		return p, fmt.Errorf("--bins must be at most %d, got %d", analytics.MaxBins, f.bins)
	}
	if f.bins > 0 {
		p.Histogram.Bins = f.bins
	}
	if f.logHist {
		p.Histogram.Log10 = true
	}
	return p, nil
}

// outputFlags choose how a dashboard is written.
type outputFlags struct {
	format string
	output string
	html   string
	pngDir string
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "markdown", "output format: markdown|table|json")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().StringVar(&f.html, "html", "", "also write an HTML dashboard to this path")
	cmd.Flags().StringVar(&f.pngDir, "png-dir", "", "also write PNG charts into this directory")
}

func formatDashboard(d *session.Dashboard, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return render.Markdown(d), nil
	case "table":
		return render.Tables(d), nil
	case "json":
		b, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal dashboard: %w", err)
		}
		return string(b) + "\n", nil
	}
	return "", fmt.Errorf("unsupported --format: %s (use markdown|table|json)", format)
}

func (f *outputFlags) write(d *session.Dashboard) error {
	out, err := formatDashboard(d, f.format)
	if err != nil {
		return err
	}
	if f.output != "" {
		if err := os.WriteFile(f.output, []byte(out), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("✓ Wrote dashboard to %s\n", f.output)
	} else {
		fmt.Print(out)
	}
	if f.html != "" {
		fh, err := os.Create(f.html)
		if err != nil {
			return fmt.Errorf("create html: %w", err)
		}
		if err := render.DashboardHTML(fh, d); err != nil {
			fh.Close()
			return fmt.Errorf("render html: %w", err)
		}
		if err := fh.Close(); err != nil {
			return fmt.Errorf("write html: %w", err)
		}
		fmt.Printf("✓ Wrote HTML dashboard to %s\n", f.html)
	}
	if f.pngDir != "" {
		if err := os.MkdirAll(f.pngDir, 0o755); err != nil {
			return err
		}
		for _, kind := range []string{render.ChartTimeSeries, render.ChartTop, render.ChartHistogram} {
			b, err := render.PNG(kind, d.TimeSeries, d.Top, d.Histogram)
			if errors.Is(err, render.ErrNoData) {
				fmt.Printf("⚠ Skipped %s chart: no data\n", kind)
				continue
			}
			if err != nil {
				return err
			}
			path := filepath.Join(f.pngDir, kind+".png")
			if err := os.WriteFile(path, b, 0o644); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Printf("✓ Wrote %s\n", path)
		}
	}
	return nil
}

// buildDashboard runs the pipeline. Partial results are reported on stderr
// and still returned.
func buildDashboard(s *session.Session, p session.Params) (*session.Dashboard, error) {
	d, err := s.Dashboard(p)
	if d == nil {
		return nil, err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Partial result: %v\n", err)
	}
	return d, nil
}
