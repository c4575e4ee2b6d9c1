package cmd

import (
	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/spf13/cobra"
)

var (
	anaSource sourceFlags
	anaParams paramFlags
	anaOutput outputFlags
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <source>",
	Short: "Compute KPIs, activity, rankings, cohorts and distribution for one source",
	Long: `Analyze a transaction table and print a dashboard.

<source> is a CSV/TSV/XLSX file (optionally .gz, .lz4 or .zip), dune:<query-id|preset>[?k=v],
postgres://...#<SQL> or clickhouse://...#<SQL>.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := anaSource.open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		s := session.New(t, sessionOptions(anaSource.roles(), !anaSource.noProtocol))
		p, err := anaParams.apply(s.DefaultParams())
		if err != nil {
			return err
		}
		d, err := buildDashboard(s, p)
		if err != nil {
			return err
		}
		return anaOutput.write(d)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaSource.register(analyzeCmd)
	anaParams.register(analyzeCmd)
	anaOutput.register(analyzeCmd)
}
