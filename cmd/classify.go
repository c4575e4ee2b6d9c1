package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/classify"
	"github.com/spf13/cobra"
)

var clsSource sourceFlags

var classifyCmd = &cobra.Command{
	Use:   "classify <source>",
	Short: "Show which columns play the date, address and value roles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := clsSource.open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		opts := sessionOptions(clsSource.roles(), !clsSource.noProtocol).Classify
		res := classify.Explain(t, opts)
		manual := clsSource.roles()
		final := classify.Override(res.Assignment, manual)

		fmt.Printf("Source: %s (%d rows, %d columns)\n", t.Name(), t.Len(), t.Width())
		fmt.Printf("Columns: %s\n", strings.Join(t.Columns(), ", "))
		if res.Protocol.Protocol != "generic" {
			fmt.Printf("Protocol: %s (score %d)\n", res.Protocol.Protocol, res.Protocol.Score)
		} else {
			fmt.Println("Protocol: generic")
		}
		for _, r := range classify.Roles {
			col := final.Get(r)
			switch {
			case col == "":
				fmt.Printf("✗ %-7s unassigned\n", r)
			case manual.Get(r) != "":
				fmt.Printf("✓ %-7s %s (manual)\n", r, col)
			default:
				fmt.Printf("✓ %-7s %s (rule %s)\n", r, col, res.MatchedBy[r])
			}
		}
		if missing := classify.Missing(final); len(missing) > 0 {
			names := make([]string, len(missing))
			for i, m := range missing {
				names[i] = string(m)
			}
			fmt.Printf("⚠ Missing roles: %s. Set them with --date-col/--address-col/--value-col.\n", strings.Join(names, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	clsSource.register(classifyCmd)
}
