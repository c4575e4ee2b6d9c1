package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/render"
	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/KaramelBytes/chainpulse/internal/utils"
	"github.com/spf13/cobra"
)

var (
	abSource sourceFlags
	abParams paramFlags
	abOutDir string
	abQuiet  bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze many files with progress, writing one dashboard per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		seen := map[string]struct{}{}
		for _, arg := range args {
			matches, _ := filepath.Glob(arg)
			if len(matches) == 0 {
				// treat as literal path if exists
				if _, err := os.Stat(arg); err == nil {
					matches = []string{arg}
				}
			}
			for _, m := range matches {
				if _, ok := seen[m]; ok {
					continue
				}
				seen[m] = struct{}{}
				files = append(files, m)
			}
		}
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		sort.Strings(files)

		if abOutDir != "" {
			if err := utils.EnsureDir(abOutDir); err != nil {
				return err
			}
		}

		total := len(files)
		failed := 0
		for i, path := range files {
			if !abQuiet {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			md, err := batchDashboard(cmd, path)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
				continue
			}
			if abOutDir == "" {
				if !abQuiet {
					fmt.Println(md)
				}
				continue
			}
			base := filepath.Base(path)
			safe := strings.TrimSuffix(base, filepath.Ext(base))
			outFile := filepath.Join(abOutDir, safe+".dashboard.md")
			if cand := utils.UniquePath(outFile); cand != outFile {
				if !abQuiet {
					fmt.Printf("⚠ Detected existing dashboard, writing to %s to avoid overwrite.\n", filepath.Base(cand))
				}
				outFile = cand
			}
			if err := utils.SafeWriteFile(outFile, []byte(md)); err != nil {
				return fmt.Errorf("write dashboard: %w", err)
			}
			if !abQuiet {
				fmt.Printf("✓ Wrote %s\n", outFile)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, total)
		}
		return nil
	},
}

func batchDashboard(cmd *cobra.Command, path string) (string, error) {
	t, err := abSource.open(cmd.Context(), path)
	if err != nil {
		return "", err
	}
	s := session.New(t, sessionOptions(abSource.roles(), !abSource.noProtocol))
	p, err := abParams.apply(s.DefaultParams())
	if err != nil {
		return "", err
	}
	d, err := buildDashboard(s, p)
	if err != nil {
		return "", err
	}
	return render.Markdown(d), nil
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abSource.register(analyzeBatchCmd)
	abParams.register(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for <name>.dashboard.md files (default: print to stdout)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
