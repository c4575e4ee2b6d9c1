package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cfgpkg "github.com/KaramelBytes/chainpulse/internal/config"
	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/KaramelBytes/chainpulse/internal/utils"
	"github.com/KaramelBytes/chainpulse/internal/view"
	"github.com/spf13/cobra"
)

var (
	viewSourceFlags sourceFlags
	viewParamFlags  paramFlags
	viewDesc        string
	viewRunParams   paramFlags
	viewRunOutput   outputFlags
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Save and replay dashboard configurations",
}

var viewSaveCmd = &cobra.Command{
	Use:   "save <name> <source>",
	Short: "Save a source, role overrides and dashboard parameters under a name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := viewsDir()
		if err != nil {
			return err
		}
		v, err := view.Load(dir, args[0])
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if v, err = view.New(dir, args[0], args[1]); err != nil {
				return err
			}
		}
		v.Source = args[1]
		v.Description = viewDesc
		v.Query = viewSourceFlags.query
		v.Roles = viewSourceFlags.roles()
		base := session.DefaultParams(sessionOptions(v.Roles, true))
		if v.Params, err = viewParamFlags.apply(base); err != nil {
			return err
		}
		if err := v.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Saved view '%s' at %s\n", v.Name, v.RootDir())
		return nil
	},
}

var viewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved views",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := viewsDir()
		if err != nil {
			return err
		}
		views, err := view.List(dir)
		if err != nil {
			return err
		}
		if len(views) == 0 {
			fmt.Println("(no views)")
			return nil
		}
		for _, v := range views {
			fmt.Printf("- %s: %s (updated %s)\n", v.Name, v.Source, v.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var viewShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a saved view as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := viewsDir()
		if err != nil {
			return err
		}
		v, err := view.Load(dir, args[0])
		if err != nil {
			return err
		}
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

var viewRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Load a view's source and print its dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := viewsDir()
		if err != nil {
			return err
		}
		v, err := view.Load(dir, args[0])
		if err != nil {
			return err
		}
		src := sourceFlags{query: v.Query}
		t, err := src.open(cmd.Context(), v.Source)
		if err != nil {
			return err
		}
		s := session.New(t, v.Options(sessionOptions(src.roles(), true)))
		p, err := viewRunParams.apply(v.Params)
		if err != nil {
			return err
		}
		d, err := buildDashboard(s, p)
		if err != nil {
			return err
		}
		return viewRunOutput.write(d)
	},
}

func viewsDir() (string, error) {
	if cfg != nil && cfg.ViewsDir != "" {
		return cfg.ViewsDir, nil
	}
	dir, err := cfgpkg.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "views"), nil
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.AddCommand(viewSaveCmd, viewListCmd, viewShowCmd, viewRunCmd)

	viewSaveCmd.Flags().StringVarP(&viewDesc, "desc", "d", "", "view description")
	viewSaveCmd.Flags().StringVar(&viewSourceFlags.query, "query", "", "SQL for postgres:// and clickhouse:// sources")
	viewSaveCmd.Flags().StringVar(&viewSourceFlags.dateCol, "date-col", "", "override the date column")
	viewSaveCmd.Flags().StringVar(&viewSourceFlags.addressCol, "address-col", "", "override the address column")
	viewSaveCmd.Flags().StringVar(&viewSourceFlags.valueCol, "value-col", "", "override the value column")
	viewParamFlags.register(viewSaveCmd)

	viewRunParams.register(viewRunCmd)
	viewRunOutput.register(viewRunCmd)
}
