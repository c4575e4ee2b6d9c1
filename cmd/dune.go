package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/dune"
	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/spf13/cobra"
)

var (
	duneParams []string
	duneLatest bool
	duneOutput string
	dunePreset string
)

var duneCmd = &cobra.Command{
	Use:   "dune",
	Short: "Run Dune Analytics queries and list presets",
}

var duneRunCmd = &cobra.Command{
	Use:   "run [query-id|preset]",
	Short: "Execute a Dune query and write its result as CSV",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newDuneClient()
		if client == nil {
			return fmt.Errorf("dune_api_key is not set (use 'chainpulse config set dune_api_key <key>' or DUNE_API_KEY)")
		}
		ref := dunePreset
		if len(args) == 1 {
			ref = args[0]
		}
		if ref == "" {
			return fmt.Errorf("give a query id or --preset (see 'chainpulse dune presets')")
		}
		id, err := dune.ResolveQueryID(ref)
		if err != nil {
			return err
		}
		params, err := dune.ParseParams(duneParams)
		if err != nil {
			return err
		}
		var t *table.Table
		if duneLatest {
			t, err = client.LatestResult(cmd.Context(), id)
		} else {
			fmt.Fprintf(os.Stderr, "Executing query %d...\n", id)
			t, err = client.RunQuery(cmd.Context(), id, params)
		}
		if err != nil {
			return err
		}
		if duneOutput == "" {
			return writeCSV(os.Stdout, t)
		}
		f, err := os.Create(duneOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		if err := writeCSV(f, t); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("✓ Wrote %d rows to %s\n", t.Len(), duneOutput)
		return nil
	},
}

var dunePresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List built-in Dune query presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range dune.Presets() {
			fmt.Printf("- %s (query %d): %s\n", p.Key, p.QueryID, p.Description)
			fmt.Printf("    columns: %s\n", strings.Join(p.Columns, ", "))
		}
		return nil
	},
}

func writeCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for i := 0; i < t.Len(); i++ {
		if err := cw.Write(t.Row(i)); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func init() {
	rootCmd.AddCommand(duneCmd)
	duneCmd.AddCommand(duneRunCmd)
	duneCmd.AddCommand(dunePresetsCmd)
	duneRunCmd.Flags().StringArrayVar(&duneParams, "param", nil, "query parameter key=value (repeatable)")
	duneRunCmd.Flags().BoolVar(&duneLatest, "latest", false, "fetch the stored latest result instead of executing")
	duneRunCmd.Flags().StringVar(&dunePreset, "preset", "", "run a built-in preset by name")
	duneRunCmd.Flags().StringVarP(&duneOutput, "output", "o", "", "write CSV to this file instead of stdout")
}
