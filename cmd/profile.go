package cmd

import (
	"fmt"
	"os"

	"github.com/KaramelBytes/chainpulse/internal/analysis"
	"github.com/spf13/cobra"
)

var (
	profSource     sourceFlags
	profSampleRows int
	profOutliers   bool
	profOutlierThr float64
	profOutput     string
)

var profileCmd = &cobra.Command{
	Use:   "profile <source>",
	Short: "Profile every column: kinds, missing values, numeric stats and top values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := profSource.open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		opt.SampleRows = profSampleRows
		if cmd.Flags().Changed("outliers") {
			opt.Outliers = profOutliers
		}
		if profOutlierThr > 0 {
			opt.OutlierThreshold = profOutlierThr
		}
		md := analysis.Profile(t, opt).Markdown()
		if profOutput != "" {
			if err := os.WriteFile(profOutput, []byte(md), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote profile to %s\n", profOutput)
			return nil
		}
		fmt.Println(md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profSource.register(profileCmd)
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 5, "number of sample rows to include")
	profileCmd.Flags().BoolVar(&profOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	profileCmd.Flags().StringVarP(&profOutput, "output", "o", "", "write the profile to a file instead of stdout")
}
